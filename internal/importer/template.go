package importer

import (
	"encoding/csv"
	"io"
)

// TemplateFileName is the download name of the import template.
const TemplateFileName = "import_template.csv"

var templateRows = [][]string{
	{"Machine Name", "Cycle Time", "Efficiency", "Timestamp", "Notes"},
	{"Machine A1", "45", "94.5", "2024-06-15 10:30", "Excellent performance"},
	{"Press B2", "30", "87.2", "2024-06-15 11:00", "Normal operation"},
}

// WriteTemplate writes a CSV the user can fill in and upload.
func WriteTemplate(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(templateRows); err != nil {
		return err
	}
	return cw.Error()
}
