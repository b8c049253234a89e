package importer

import (
	"strings"

	"perfdash-backend/internal/parse"
)

// Severity of a row detail.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Detail describes a problem on one file line.
type Detail struct {
	Row      int    `json:"row"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// Result is the outcome of an import.
type Result struct {
	Total        int                       `json:"total"`
	Success      int                       `json:"success"`
	Errors       int                       `json:"errors"`
	Warnings     int                       `json:"warnings"`
	ErrorDetails []Detail                  `json:"errorDetails"`
	Records      []parse.PerformanceRecord `json:"records"`
}

// Tally converts every row through the mapping and counts the outcome.
// A row with an error is not imported. Warnings do not reject a row.
func Tally(table parse.Table, rules []Rule) Result {
	index := make(map[parse.Field]int, len(rules))
	for _, r := range rules {
		if r.CSVColumn == "" {
			continue
		}
		if i := table.Index(r.CSVColumn); i >= 0 {
			index[r.SystemField] = i
		}
	}

	res := Result{
		Total:        len(table.Rows),
		ErrorDetails: []Detail{},
		Records:      []parse.PerformanceRecord{},
	}
	for _, row := range table.Rows {
		values := make(map[parse.Field]string, len(index))
		for field, i := range index {
			values[field] = row.Values[i]
		}

		rec, warnings, err := parse.BuildRecord(values)
		for _, w := range warnings {
			res.Warnings++
			res.ErrorDetails = append(res.ErrorDetails, Detail{Row: row.Line, Severity: SeverityWarning, Message: w})
		}
		if err != nil {
			res.Errors++
			msg := strings.TrimPrefix(err.Error(), parse.ErrInvalidRecord.Error()+": ")
			res.ErrorDetails = append(res.ErrorDetails, Detail{Row: row.Line, Severity: SeverityError, Message: msg})
			continue
		}
		res.Success++
		res.Records = append(res.Records, rec)
	}
	return res
}
