package dashboard

import (
	"time"

	"perfdash-backend/internal/model"
)

// MachineSnapshot is the latest reading of a machine on the floor.
type MachineSnapshot struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	ShortName  string              `json:"shortName"`
	Status     model.MachineStatus `json:"status"`
	Efficiency float64             `json:"efficiency"`
	// UpdatedAgo is how long before service start the reading was taken.
	UpdatedAgo time.Duration `json:"-"`
}

// MonthStats aggregates one month of production.
type MonthStats struct {
	Month      string  `json:"month"`
	Efficiency float64 `json:"efficiency"`
	Downtime   float64 `json:"downtime"`
	Production int     `json:"production"`
}

// DailyPoint is one sampled day of a machine.
type DailyPoint struct {
	Day        int     `json:"day"`
	Efficiency float64 `json:"efficiency"`
	Cycles     int     `json:"cycles"`
}

// MachineMonth is the drill-down data of one machine. It is not split by
// month.
type MachineMonth struct {
	Key          string       `json:"key"`
	Name         string       `json:"name"`
	Data         []DailyPoint `json:"data"`
	Observations []string     `json:"observations"`
}

// Dataset is everything the dashboard and monthly views render.
type Dataset struct {
	Machines []MachineSnapshot
	Months   []MonthStats
	Details  []MachineMonth
}

// DefaultDataset is the demo plant.
func DefaultDataset() Dataset {
	return Dataset{
		Machines: []MachineSnapshot{
			{ID: "1", Name: "Cutting Machine A1", ShortName: "Cutting A1", Status: model.MachineActive, Efficiency: 94.5, UpdatedAgo: 2 * time.Minute},
			{ID: "2", Name: "Hydraulic Press B2", ShortName: "Press B2", Status: model.MachineActive, Efficiency: 87.2, UpdatedAgo: 5 * time.Minute},
			{ID: "3", Name: "CNC Lathe C3", ShortName: "Lathe C3", Status: model.MachineMaintenance, Efficiency: 0, UpdatedAgo: 2 * time.Hour},
			{ID: "4", Name: "Milling Machine D4", ShortName: "Milling D4", Status: model.MachineActive, Efficiency: 91.8, UpdatedAgo: time.Minute},
			{ID: "5", Name: "Welder E5", ShortName: "Welder E5", Status: model.MachineInactive, Efficiency: 0, UpdatedAgo: 24 * time.Hour},
		},
		Months: []MonthStats{
			{Month: "Jan", Efficiency: 89, Downtime: 12, Production: 450},
			{Month: "Feb", Efficiency: 92, Downtime: 8, Production: 480},
			{Month: "Mar", Efficiency: 87, Downtime: 15, Production: 420},
			{Month: "Apr", Efficiency: 94, Downtime: 6, Production: 510},
			{Month: "May", Efficiency: 91, Downtime: 9, Production: 495},
			{Month: "Jun", Efficiency: 96, Downtime: 4, Production: 530},
		},
		Details: []MachineMonth{
			{
				Key:  "cutting-a1",
				Name: "Cutting Machine A1",
				Data: []DailyPoint{
					{Day: 1, Efficiency: 94, Cycles: 28},
					{Day: 5, Efficiency: 92, Cycles: 26},
					{Day: 10, Efficiency: 96, Cycles: 30},
					{Day: 15, Efficiency: 89, Cycles: 24},
					{Day: 20, Efficiency: 98, Cycles: 32},
					{Day: 25, Efficiency: 91, Cycles: 27},
					{Day: 30, Efficiency: 95, Cycles: 29},
				},
				Observations: []string{
					"Excellent performance on day 20, reaching 98% efficiency",
					"Performance dropped on day 15, likely due to maintenance",
					"Monthly average of 93.6% efficiency, above the 90% target",
				},
			},
			{
				Key:  "press-b2",
				Name: "Hydraulic Press B2",
				Data: []DailyPoint{
					{Day: 1, Efficiency: 87, Cycles: 35},
					{Day: 5, Efficiency: 89, Cycles: 37},
					{Day: 10, Efficiency: 85, Cycles: 33},
					{Day: 15, Efficiency: 91, Cycles: 39},
					{Day: 20, Efficiency: 88, Cycles: 36},
					{Day: 25, Efficiency: 93, Cycles: 41},
					{Day: 30, Efficiency: 90, Cycles: 38},
				},
				Observations: []string{
					"Improving trend over the month",
					"Best performance on day 25 with 93% efficiency",
					"Review the day 25 settings so they can be replicated",
				},
			},
		},
	}
}
