package parse

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	ErrEmptyFile       = errors.New("file has no header row")
	ErrEmptyHeader     = errors.New("empty column name")
	ErrDuplicateHeader = errors.New("duplicate column name")
	ErrFieldCount      = errors.New("wrong number of fields")
)

// ColumnType is the inferred type of a CSV column.
type ColumnType string

const (
	TypeText   ColumnType = "text"
	TypeNumber ColumnType = "number"
	TypeDate   ColumnType = "date"
)

// Column describes one header cell and a sample of its data.
type Column struct {
	Name   string     `json:"name"`
	Type   ColumnType `json:"type"`
	Sample string     `json:"sample"`
}

// Row is one data row. Line is the row's line in the file, header on line 1.
type Row struct {
	Line   int
	Values []string
}

// Table is a parsed CSV upload.
type Table struct {
	Columns []Column
	Rows    []Row
}

// Index returns the position of the named column, or -1.
func (t Table) Index(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Records returns the first n rows keyed by column name. n <= 0 returns all.
func (t Table) Records(n int) []map[string]string {
	rows := t.Rows
	if n > 0 && len(rows) > n {
		rows = rows[:n]
	}
	out := make([]map[string]string, 0, len(rows))
	for _, r := range rows {
		rec := make(map[string]string, len(t.Columns))
		for i, c := range t.Columns {
			rec[c.Name] = r.Values[i]
		}
		out = append(out, rec)
	}
	return out
}

const bom = "\ufeff"

// ReadTable reads a header row and every data row. Blank lines are skipped.
// A row whose field count differs from the header is rejected.
func ReadTable(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Table{}, ErrEmptyFile
	}
	if err != nil {
		return Table{}, fmt.Errorf("read header: %w", err)
	}

	seen := make(map[string]bool, len(header))
	columns := make([]Column, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, bom)
		}
		name := strings.TrimSpace(h)
		if name == "" {
			return Table{}, fmt.Errorf("column %d: %w", i+1, ErrEmptyHeader)
		}
		if seen[name] {
			return Table{}, fmt.Errorf("%w: %q", ErrDuplicateHeader, name)
		}
		seen[name] = true
		columns[i] = Column{Name: name, Type: TypeText}
	}

	var rows []Row
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("read row: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if len(record) != len(columns) {
			return Table{}, fmt.Errorf("line %d: %w: got %d, want %d", line, ErrFieldCount, len(record), len(columns))
		}
		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}
		rows = append(rows, Row{Line: line, Values: record})
	}

	for i := range columns {
		for _, r := range rows {
			if r.Values[i] != "" {
				columns[i].Sample = r.Values[i]
				columns[i].Type = InferType(r.Values[i])
				break
			}
		}
	}

	return Table{Columns: columns, Rows: rows}, nil
}

// InferType classifies a sample value: number, then date, then text.
func InferType(sample string) ColumnType {
	s := strings.TrimSpace(sample)
	if s == "" {
		return TypeText
	}
	if _, err := ParseNumber(s); err == nil {
		return TypeNumber
	}
	if _, err := ParseTimestamp(s); err == nil {
		return TypeDate
	}
	return TypeText
}

// ErrNotFinite rejects NaN and infinities, which have no JSON encoding.
var ErrNotFinite = errors.New("number is not finite")

// ParseNumber accepts a decimal point or a single decimal comma. Only finite
// values are returned.
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q: %w", s, ErrNotFinite)
	}
	return v, nil
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
	"02/01/2006 15:04",
	"02/01/2006",
}

// ParseTimestamp tries the layouts seen in machine exports.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
