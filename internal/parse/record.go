package parse

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidRecord wraps every problem found while building a record.
var ErrInvalidRecord = errors.New("invalid record")

// Field is a destination field of the import.
type Field string

const (
	FieldMachineName  Field = "machine_name"
	FieldCycleTime    Field = "cycle_time"
	FieldEfficiency   Field = "efficiency"
	FieldRecordedAt   Field = "recorded_at"
	FieldObservations Field = "observations"
)

// SystemField is a Field with its display label and required flag.
type SystemField struct {
	Key      Field  `json:"key"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

// SystemFields lists the import destinations in display order.
func SystemFields() []SystemField {
	return []SystemField{
		{Key: FieldMachineName, Label: "Machine Name", Required: true},
		{Key: FieldCycleTime, Label: "Cycle Time (min)", Required: true},
		{Key: FieldEfficiency, Label: "Efficiency (%)", Required: false},
		{Key: FieldRecordedAt, Label: "Timestamp", Required: true},
		{Key: FieldObservations, Label: "Notes", Required: false},
	}
}

// LookupField returns the system field with the given key.
func LookupField(key Field) (SystemField, bool) {
	for _, f := range SystemFields() {
		if f.Key == key {
			return f, true
		}
	}
	return SystemField{}, false
}

// PerformanceRecord is one mapped row with typed values.
type PerformanceRecord struct {
	MachineName  string    `json:"machineName"`
	CycleTime    float64   `json:"cycleTime"`
	Efficiency   *float64  `json:"efficiency,omitempty"`
	RecordedAt   time.Time `json:"recordedAt"`
	Observations string    `json:"observations,omitempty"`
}

// BuildRecord converts mapped values into a PerformanceRecord. Problems that
// make the row unusable are returned as an error wrapping ErrInvalidRecord.
// Warnings describe optional values that were missing.
func BuildRecord(values map[Field]string) (PerformanceRecord, []string, error) {
	var (
		rec      PerformanceRecord
		problems []string
		warnings []string
	)

	rec.MachineName = strings.TrimSpace(values[FieldMachineName])
	if rec.MachineName == "" {
		problems = append(problems, "missing machine name")
	}

	if raw := strings.TrimSpace(values[FieldCycleTime]); raw == "" {
		problems = append(problems, "missing cycle time")
	} else if v, err := ParseNumber(raw); err != nil || v <= 0 {
		problems = append(problems, fmt.Sprintf("invalid cycle time %q", raw))
	} else {
		rec.CycleTime = v
	}

	if raw := strings.TrimSpace(values[FieldEfficiency]); raw == "" {
		warnings = append(warnings, "efficiency not provided")
	} else if v, err := ParseNumber(raw); err != nil {
		problems = append(problems, fmt.Sprintf("invalid efficiency %q", raw))
	} else if v < 0 || v > 100 {
		problems = append(problems, "efficiency out of range (0-100%)")
	} else {
		rec.Efficiency = &v
	}

	if raw := strings.TrimSpace(values[FieldRecordedAt]); raw == "" {
		problems = append(problems, "missing timestamp")
	} else if t, err := ParseTimestamp(raw); err != nil {
		problems = append(problems, fmt.Sprintf("invalid timestamp %q", raw))
	} else {
		rec.RecordedAt = t
	}

	rec.Observations = strings.TrimSpace(values[FieldObservations])

	if len(problems) > 0 {
		return PerformanceRecord{}, warnings, fmt.Errorf("%w: %s", ErrInvalidRecord, strings.Join(problems, "; "))
	}
	return rec, warnings, nil
}
