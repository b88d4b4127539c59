package output

import (
	"encoding/json"

	"github.com/jedib0t/go-pretty/v6/table"
)

// TableFormatter renders payloads as an ASCII table.
type TableFormatter struct{}

// Format renders a payload as a table.
func (f *TableFormatter) Format(title string, payload json.RawMessage) (string, error) {
	if len(payload) == 0 {
		return "", nil
	}

	data, err := tabulate(title, payload)
	if err != nil {
		return "", err
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	if data.Title != "" {
		t.SetTitle(data.Title)
	}
	t.AppendHeader(toRow(data.Header))
	for _, row := range data.Rows {
		t.AppendRow(toRow(row))
	}
	if data.Footer != "" {
		footer := make([]string, len(data.Header))
		if len(footer) > 0 {
			footer[len(footer)-1] = data.Footer
		}
		t.AppendFooter(toRow(footer))
	}

	return t.Render(), nil
}

func toRow(values []string) table.Row {
	row := make(table.Row, len(values))
	for i, value := range values {
		row[i] = value
	}
	return row
}
