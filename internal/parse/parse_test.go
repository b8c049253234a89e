package parse

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadTable(t *testing.T) {
	input := "\ufeffMachine Name,Cycle Time,Efficiency,Timestamp,Notes\n" +
		"Machine A1,45,94.5,2024-06-15 10:30,Excellent run\n" +
		"\n" +
		"Press B2,30,,2024-06-15 11:00,\"Normal, steady\"\n"

	table, err := ReadTable(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, table.Columns, 5)
	assert.Equal(t, Column{Name: "Machine Name", Type: TypeText, Sample: "Machine A1"}, table.Columns[0])
	assert.Equal(t, TypeNumber, table.Columns[1].Type)
	assert.Equal(t, TypeNumber, table.Columns[2].Type)
	assert.Equal(t, TypeDate, table.Columns[3].Type)
	assert.Equal(t, TypeText, table.Columns[4].Type)

	require.Len(t, table.Rows, 2)
	assert.Equal(t, 2, table.Rows[0].Line)
	assert.Equal(t, 4, table.Rows[1].Line, "blank lines still count")
	assert.Equal(t, "Normal, steady", table.Rows[1].Values[4])

	assert.Equal(t, 1, table.Index("Cycle Time"))
	assert.Equal(t, -1, table.Index("missing"))

	preview := table.Records(1)
	require.Len(t, preview, 1)
	assert.Equal(t, "Machine A1", preview[0]["Machine Name"])
	assert.Len(t, table.Records(0), 2)
}

func TestReadTable_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty file", "", ErrEmptyFile},
		{"empty header", "a,,c\n1,2,3\n", ErrEmptyHeader},
		{"duplicate header", "a,b,a\n1,2,3\n", ErrDuplicateHeader},
		{"short row", "a,b,c\n1,2\n", ErrFieldCount},
		{"long row", "a,b\n1,2,3\n", ErrFieldCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadTable(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReadTable_HeaderOnly(t *testing.T) {
	table, err := ReadTable(strings.NewReader("a,b\n"))
	require.NoError(t, err)
	assert.Empty(t, table.Rows)
	assert.Equal(t, TypeText, table.Columns[0].Type)
	assert.Empty(t, table.Columns[0].Sample)
}

func TestInferType(t *testing.T) {
	tests := map[string]ColumnType{
		"45":               TypeNumber,
		"94.5":             TypeNumber,
		"87,2":             TypeNumber,
		"-3":               TypeNumber,
		"2024-06-15":       TypeDate,
		"2024-06-15 10:30": TypeDate,
		"15/06/2024":       TypeDate,
		"Machine A1":       TypeText,
		"NaN":              TypeText,
		"Inf":              TypeText,
		"-infinity":        TypeText,
		"":                 TypeText,
	}
	for sample, want := range tests {
		assert.Equal(t, want, InferType(sample), sample)
	}
}

func TestBuildRecord(t *testing.T) {
	rec, warnings, err := BuildRecord(map[Field]string{
		FieldMachineName:  " Machine A1 ",
		FieldCycleTime:    "45",
		FieldEfficiency:   "94.5",
		FieldRecordedAt:   "2024-06-15 10:30",
		FieldObservations: "Excellent run",
	})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "Machine A1", rec.MachineName)
	assert.Equal(t, 45.0, rec.CycleTime)
	require.NotNil(t, rec.Efficiency)
	assert.Equal(t, 94.5, *rec.Efficiency)
	assert.Equal(t, time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC), rec.RecordedAt)
}

func TestBuildRecord_WarnsOnMissingEfficiency(t *testing.T) {
	rec, warnings, err := BuildRecord(map[Field]string{
		FieldMachineName: "Press B2",
		FieldCycleTime:   "30",
		FieldRecordedAt:  "2024-06-15",
	})
	require.NoError(t, err)
	assert.Nil(t, rec.Efficiency)
	assert.Equal(t, []string{"efficiency not provided"}, warnings)
}

func TestBuildRecord_Errors(t *testing.T) {
	tests := []struct {
		name    string
		values  map[Field]string
		message string
	}{
		{"missing name", map[Field]string{FieldCycleTime: "1", FieldEfficiency: "5", FieldRecordedAt: "2024-06-15"}, "missing machine name"},
		{"zero cycle", map[Field]string{FieldMachineName: "x", FieldCycleTime: "0", FieldEfficiency: "5", FieldRecordedAt: "2024-06-15"}, `invalid cycle time "0"`},
		{"text cycle", map[Field]string{FieldMachineName: "x", FieldCycleTime: "fast", FieldEfficiency: "5", FieldRecordedAt: "2024-06-15"}, `invalid cycle time "fast"`},
		{"efficiency range", map[Field]string{FieldMachineName: "x", FieldCycleTime: "1", FieldEfficiency: "120", FieldRecordedAt: "2024-06-15"}, "efficiency out of range (0-100%)"},
		{"nan cycle", map[Field]string{FieldMachineName: "x", FieldCycleTime: "NaN", FieldEfficiency: "5", FieldRecordedAt: "2024-06-15"}, `invalid cycle time "NaN"`},
		{"infinite cycle", map[Field]string{FieldMachineName: "x", FieldCycleTime: "+Inf", FieldEfficiency: "5", FieldRecordedAt: "2024-06-15"}, `invalid cycle time "+Inf"`},
		{"nan efficiency", map[Field]string{FieldMachineName: "x", FieldCycleTime: "1", FieldEfficiency: "NaN", FieldRecordedAt: "2024-06-15"}, `invalid efficiency "NaN"`},
		{"bad timestamp", map[Field]string{FieldMachineName: "x", FieldCycleTime: "1", FieldEfficiency: "5", FieldRecordedAt: "yesterday"}, `invalid timestamp "yesterday"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := BuildRecord(tt.values)
			require.ErrorIs(t, err, ErrInvalidRecord)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestParseNumber_RejectsNonFinite(t *testing.T) {
	for _, s := range []string{"NaN", "nan", "Inf", "-Inf", "infinity", "1e400"} {
		_, err := ParseNumber(s)
		assert.Error(t, err, s)
	}
	v, err := ParseNumber(" 87,2 ")
	require.NoError(t, err)
	assert.Equal(t, 87.2, v)
}

func TestLookupField(t *testing.T) {
	f, ok := LookupField(FieldCycleTime)
	require.True(t, ok)
	assert.True(t, f.Required)

	_, ok = LookupField("speed")
	assert.False(t, ok)
}
