package dashboard

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"perfdash-backend/internal/model"
)

var ErrNotFound = errors.New("not found")

// Service renders read-only views over a fixed Dataset.
type Service struct {
	data    Dataset
	started time.Time
}

// NewService snapshots data. Relative update times are anchored at started.
func NewService(data Dataset, started time.Time) *Service {
	return &Service{data: data, started: started}
}

// MachineCard is a machine as listed on the dashboard.
type MachineCard struct {
	MachineSnapshot
	LastUpdate time.Time `json:"lastUpdate"`
}

// StatusSlice is one slice of the status distribution chart.
type StatusSlice struct {
	Status model.MachineStatus `json:"status"`
	Count  int                 `json:"count"`
}

// EfficiencyBar is one bar of the efficiency chart.
type EfficiencyBar struct {
	Name       string  `json:"name"`
	Efficiency float64 `json:"efficiency"`
}

// Summary is the home dashboard.
type Summary struct {
	TotalMachines      int             `json:"totalMachines"`
	ActiveMachines     int             `json:"activeMachines"`
	AverageEfficiency  float64         `json:"averageEfficiency"`
	AlertsCount        int             `json:"alertsCount"`
	StatusDistribution []StatusSlice   `json:"statusDistribution"`
	Efficiency         []EfficiencyBar `json:"efficiency"`
	Machines           []MachineCard   `json:"machines"`
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func (s *Service) Summary() Summary {
	sum := Summary{
		TotalMachines: len(s.data.Machines),
		Efficiency:    []EfficiencyBar{},
		Machines:      make([]MachineCard, 0, len(s.data.Machines)),
	}

	counts := map[model.MachineStatus]int{}
	var total float64
	for _, m := range s.data.Machines {
		counts[m.Status]++
		if m.Status == model.MachineActive {
			sum.ActiveMachines++
			total += m.Efficiency
		}
		if m.Efficiency > 0 {
			sum.Efficiency = append(sum.Efficiency, EfficiencyBar{Name: m.ShortName, Efficiency: m.Efficiency})
		}
		sum.Machines = append(sum.Machines, MachineCard{MachineSnapshot: m, LastUpdate: s.started.Add(-m.UpdatedAgo)})
	}
	if sum.ActiveMachines > 0 {
		sum.AverageEfficiency = round1(total / float64(sum.ActiveMachines))
	}
	sum.AlertsCount = counts[model.MachineMaintenance]

	for _, st := range []model.MachineStatus{model.MachineActive, model.MachineMaintenance, model.MachineInactive} {
		sum.StatusDistribution = append(sum.StatusDistribution, StatusSlice{Status: st, Count: counts[st]})
	}
	return sum
}

// Months returns the monthly series in calendar order.
func (s *Service) Months() []MonthStats {
	return append([]MonthStats(nil), s.data.Months...)
}

// Delta is the change against the previous month.
type Delta struct {
	Efficiency float64 `json:"efficiency"`
	Downtime   float64 `json:"downtime"`
	Production int     `json:"production"`
}

// MachineRef links to a machine drill-down.
type MachineRef struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// MonthReport is the monthly analysis of one month.
type MonthReport struct {
	MonthStats
	// Previous is nil for the first month of the series.
	Previous *Delta       `json:"vsPreviousMonth"`
	Machines []MachineRef `json:"machines"`
}

func (s *Service) monthIndex(name string) int {
	for i, m := range s.data.Months {
		if strings.EqualFold(m.Month, name) {
			return i
		}
	}
	return -1
}

func (s *Service) Month(name string) (MonthReport, error) {
	i := s.monthIndex(name)
	if i < 0 {
		return MonthReport{}, fmt.Errorf("month %q: %w", name, ErrNotFound)
	}
	cur := s.data.Months[i]
	report := MonthReport{MonthStats: cur, Machines: make([]MachineRef, 0, len(s.data.Details))}
	if i > 0 {
		prev := s.data.Months[i-1]
		report.Previous = &Delta{
			Efficiency: round1(cur.Efficiency - prev.Efficiency),
			Downtime:   round1(cur.Downtime - prev.Downtime),
			Production: cur.Production - prev.Production,
		}
	}
	for _, d := range s.data.Details {
		report.Machines = append(report.Machines, MachineRef{Key: d.Key, Name: d.Name})
	}
	return report, nil
}

// MachineReport is the drill-down of a machine within a month.
type MachineReport struct {
	MachineMonth
	Month             string  `json:"month"`
	AverageEfficiency float64 `json:"averageEfficiency"`
	TotalCycles       int     `json:"totalCycles"`
}

// MachineDetail returns the drill-down of a machine. The month must exist in
// the series, but the dataset holds a single daily series per machine, so
// every month reports the same data under its own month label.
func (s *Service) MachineDetail(month, key string) (MachineReport, error) {
	i := s.monthIndex(month)
	if i < 0 {
		return MachineReport{}, fmt.Errorf("month %q: %w", month, ErrNotFound)
	}
	for _, d := range s.data.Details {
		if !strings.EqualFold(d.Key, key) {
			continue
		}
		report := MachineReport{MachineMonth: d, Month: s.data.Months[i].Month}
		var total float64
		for _, p := range d.Data {
			total += p.Efficiency
			report.TotalCycles += p.Cycles
		}
		if len(d.Data) > 0 {
			report.AverageEfficiency = round1(total / float64(len(d.Data)))
		}
		return report, nil
	}
	return MachineReport{}, fmt.Errorf("machine %q: %w", key, ErrNotFound)
}
