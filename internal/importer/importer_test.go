package importer

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perfdash-backend/config"
	"perfdash-backend/internal/jobs"
	"perfdash-backend/internal/logger"
	"perfdash-backend/internal/parse"
)

const sampleCSV = "Machine Name,Cycle Time,Efficiency,Timestamp,Notes\n" +
	"Machine A1,45,94.5,2024-06-15 10:30,Excellent performance\n" +
	"Press B2,30,120,2024-06-15 11:00,Normal operation\n" +
	"Lathe C3,60,,2024-06-15 11:30,Preventive maintenance\n"

func newTestManager(t *testing.T, delay time.Duration) *Manager {
	runner := jobs.NewRunner(logger.Nop(), time.Minute, nil)
	t.Cleanup(func() { _ = runner.Shutdown(context.Background()) })

	cfg := config.Default().Import
	return NewManager(cfg, delay, runner, nil, nil, logger.Nop())
}

func mapAll(t *testing.T, m *Manager, id string) {
	mapping := map[parse.Field]string{
		parse.FieldMachineName:  "Machine Name",
		parse.FieldCycleTime:    "Cycle Time",
		parse.FieldEfficiency:   "Efficiency",
		parse.FieldRecordedAt:   "Timestamp",
		parse.FieldObservations: "Notes",
	}
	for field, column := range mapping {
		_, err := m.UpdateMapping(id, field, column)
		require.NoError(t, err)
	}
}

func TestManager_LoadRejectsWrongExtension(t *testing.T) {
	m := newTestManager(t, time.Millisecond)
	s := m.Create()
	assert.Equal(t, StateEmpty, s.State)

	_, err := m.Load(s.ID, "data.xlsx", strings.NewReader(sampleCSV))
	assert.ErrorIs(t, err, ErrInvalidFileType)

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, StateEmpty, got.State)
	assert.Empty(t, got.Columns)
}

func TestManager_LoadAcceptsUppercaseExtension(t *testing.T) {
	m := newTestManager(t, time.Millisecond)
	s := m.Create()

	got, err := m.Load(s.ID, "EXPORT.CSV", strings.NewReader(sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, StateLoaded, got.State)
	assert.Equal(t, 3, got.RowCount)
	require.Len(t, got.Columns, 5)
	assert.Equal(t, parse.TypeNumber, got.Columns[1].Type)
	assert.Equal(t, parse.TypeDate, got.Columns[3].Type)
	assert.Len(t, got.Preview, 3)

	require.Len(t, got.Mapping, len(parse.SystemFields()))
	for _, r := range got.Mapping {
		assert.Empty(t, r.CSVColumn)
	}
}

func TestManager_LoadRejectsMalformedAndLargeFiles(t *testing.T) {
	m := newTestManager(t, time.Millisecond)
	s := m.Create()

	_, err := m.Load(s.ID, "dup.csv", strings.NewReader("a,a\n1,2\n"))
	assert.ErrorIs(t, err, ErrMalformedFile)
	assert.ErrorIs(t, err, parse.ErrDuplicateHeader)

	m.cfg.MaxFileBytes = 10
	_, err = m.Load(s.ID, "big.csv", strings.NewReader(sampleCSV))
	assert.ErrorIs(t, err, ErrFileTooLarge)

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, StateEmpty, got.State)
}

func TestManager_UpdateMapping(t *testing.T) {
	m := newTestManager(t, time.Millisecond)
	s := m.Create()

	_, err := m.UpdateMapping(s.ID, parse.FieldMachineName, "Machine Name")
	assert.ErrorIs(t, err, ErrInvalidState, "nothing loaded yet")

	_, err = m.Load(s.ID, "data.csv", strings.NewReader(sampleCSV))
	require.NoError(t, err)

	got, err := m.UpdateMapping(s.ID, parse.FieldMachineName, "Machine Name")
	require.NoError(t, err)
	assert.Equal(t, StateMapped, got.State)
	assert.Equal(t, "Machine Name", got.Mapping[0].CSVColumn)

	_, err = m.UpdateMapping(s.ID, "speed", "Machine Name")
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = m.UpdateMapping(s.ID, parse.FieldCycleTime, "Duration")
	assert.ErrorIs(t, err, ErrUnknownColumn)

	got, err = m.UpdateMapping(s.ID, parse.FieldMachineName, "")
	require.NoError(t, err)
	assert.Empty(t, got.Mapping[0].CSVColumn)
}

func TestManager_ImportRefusedWithUnmappedRequiredField(t *testing.T) {
	m := newTestManager(t, time.Millisecond)
	s := m.Create()
	_, err := m.Load(s.ID, "data.csv", strings.NewReader(sampleCSV))
	require.NoError(t, err)

	_, err = m.UpdateMapping(s.ID, parse.FieldMachineName, "Machine Name")
	require.NoError(t, err)
	_, err = m.UpdateMapping(s.ID, parse.FieldCycleTime, "Cycle Time")
	require.NoError(t, err)

	_, task, err := m.Import(s.ID)
	require.ErrorIs(t, err, ErrIncompleteMapping)
	assert.Contains(t, err.Error(), string(parse.FieldRecordedAt))
	assert.Nil(t, task)

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, StateMapped, got.State)
	assert.Empty(t, got.TaskID)
}

func TestManager_ImportComputesTally(t *testing.T) {
	m := newTestManager(t, 10*time.Millisecond)
	s := m.Create()
	_, err := m.Load(s.ID, "data.csv", strings.NewReader(sampleCSV))
	require.NoError(t, err)
	mapAll(t, m, s.ID)

	snap, task, err := m.Import(s.ID)
	require.NoError(t, err)
	assert.Equal(t, StateImporting, snap.State)
	assert.Equal(t, task.ID, snap.TaskID)

	_, _, err = m.Import(s.ID)
	assert.ErrorIs(t, err, ErrInvalidState, "already importing")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, task.Wait(ctx))

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, StateResulted, got.State)
	require.NotNil(t, got.Result)
	assert.Equal(t, 3, got.Result.Total)
	assert.Equal(t, 2, got.Result.Success)
	assert.Equal(t, 1, got.Result.Errors)
	assert.Equal(t, 1, got.Result.Warnings)
	assert.Contains(t, got.Result.ErrorDetails, Detail{Row: 3, Severity: SeverityError, Message: "efficiency out of range (0-100%)"})
	assert.Contains(t, got.Result.ErrorDetails, Detail{Row: 4, Severity: SeverityWarning, Message: "efficiency not provided"})
	assert.Len(t, got.Result.Records, 2)
}

func TestManager_ImportNonFiniteNumbers(t *testing.T) {
	m := newTestManager(t, time.Millisecond)
	s := m.Create()
	content := "Machine Name,Cycle Time,Efficiency,Timestamp,Notes\n" +
		"Machine A1,NaN,NaN,2024-06-15 10:30,x\n" +
		"Press B2,Inf,90,2024-06-15 11:00,y\n"
	loaded, err := m.Load(s.ID, "data.csv", strings.NewReader(content))
	require.NoError(t, err)
	for _, col := range loaded.Columns {
		if col.Name == "Cycle Time" {
			assert.Equal(t, parse.TypeText, col.Type)
		}
	}
	mapAll(t, m, s.ID)

	_, task, err := m.Import(s.ID)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, task.Wait(ctx))

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Result)
	assert.Equal(t, 0, got.Result.Success)
	assert.Equal(t, 2, got.Result.Errors)

	_, err = json.Marshal(got)
	assert.NoError(t, err)
	_, err = json.Marshal(task.Info())
	assert.NoError(t, err)
}

func TestManager_ResetCancelsImport(t *testing.T) {
	m := newTestManager(t, time.Hour)
	s := m.Create()
	_, err := m.Load(s.ID, "data.csv", strings.NewReader(sampleCSV))
	require.NoError(t, err)
	mapAll(t, m, s.ID)

	_, task, err := m.Import(s.ID)
	require.NoError(t, err)

	got, err := m.Reset(s.ID)
	require.NoError(t, err)
	assert.Equal(t, StateEmpty, got.State)

	assert.ErrorIs(t, task.Wait(context.Background()), jobs.ErrCancelled)
	got, err = m.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, StateEmpty, got.State, "cancellation hook must not resurrect the import")
}

func TestManager_Delete(t *testing.T) {
	m := newTestManager(t, time.Millisecond)
	s := m.Create()

	m.Delete(s.ID)
	m.Delete(s.ID)

	_, err := m.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = m.Load(s.ID, "data.csv", strings.NewReader(sampleCSV))
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestTally_UnmappedOptionalFields(t *testing.T) {
	table, err := parse.ReadTable(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	res := Tally(table, []Rule{
		{SystemField: parse.FieldMachineName, CSVColumn: "Machine Name", Required: true},
		{SystemField: parse.FieldCycleTime, CSVColumn: "Cycle Time", Required: true},
		{SystemField: parse.FieldRecordedAt, CSVColumn: "Timestamp", Required: true},
	})
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 3, res.Success)
	assert.Equal(t, 0, res.Errors)
	assert.Equal(t, 3, res.Warnings)
}

func TestWriteTemplate(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTemplate(&buf))
	content := buf.String()

	rows, err := csv.NewReader(strings.NewReader(content)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Machine Name", "Cycle Time", "Efficiency", "Timestamp", "Notes"}, rows[0])

	// A filled-in template imports cleanly.
	table, err := parse.ReadTable(strings.NewReader(content))
	require.NoError(t, err)
	rules := make([]Rule, 0, len(parse.SystemFields()))
	for i, f := range parse.SystemFields() {
		rules = append(rules, Rule{SystemField: f.Key, CSVColumn: rows[0][i], Required: f.Required})
	}
	res := Tally(table, rules)
	assert.Equal(t, 2, res.Success)
	assert.Empty(t, res.ErrorDetails)
}
