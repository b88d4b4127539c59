package output

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// maxFallbackColumns caps the columns guessed for list kinds without a
// curated column set.
const maxFallbackColumns = 6

// listColumns are the columns shown for list payloads, keyed by their
// "kind" field. Nested fields use dot paths.
var listColumns = map[string][]string{
	"search#companies":             {"company_number", "title", "company_status", "company_type", "date_of_creation", "address_snippet"},
	"search#officers":              {"title", "appointment_count", "description", "address_snippet"},
	"search#disqualified-officers": {"title", "description", "address_snippet"},
	"officer-list":                 {"name", "officer_role", "appointed_on", "resigned_on", "nationality", "occupation"},
	"filing-history":               {"date", "category", "type", "description", "transaction_id"},
	"personal-appointment":         {"appointed_to.company_number", "appointed_to.company_name", "appointed_to.company_status", "officer_role", "appointed_on", "resigned_on"},
	"charges":                      {"charge_code", "status", "classification.description", "created_on", "delivered_on"},
}

// skippedFields never make useful table cells.
var skippedFields = map[string]bool{
	"links": true,
	"etag":  true,
	"kind":  true,
}

// tabular is the table-shaped view shared by the table and markdown
// formatters.
type tabular struct {
	Title  string
	Header []string
	Rows   [][]string
	Footer string
}

// tabulate turns a payload into rows. Payloads with an "items" array become
// one row per item; any other object becomes field/value pairs.
func tabulate(title string, payload json.RawMessage) (*tabular, error) {
	value, err := decode(payload)
	if err != nil {
		return nil, err
	}

	object, ok := value.(map[string]any)
	if !ok {
		return &tabular{
			Title:  title,
			Header: []string{"Value"},
			Rows:   [][]string{{cell(value)}},
		}, nil
	}

	if items, ok := object["items"].([]any); ok {
		return tabulateList(title, object, items), nil
	}
	return tabulateObject(title, object), nil
}

func tabulateList(title string, object map[string]any, items []any) *tabular {
	kind, _ := object["kind"].(string)
	columns, ok := listColumns[kind]
	if !ok {
		columns = guessColumns(items)
	}

	t := &tabular{Title: title, Header: headerLabels(columns)}
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			t.Rows = append(t.Rows, []string{cell(raw)})
			continue
		}
		row := make([]string, len(columns))
		for i, column := range columns {
			row[i] = cell(lookup(item, column))
		}
		t.Rows = append(t.Rows, row)
	}

	t.Footer = listFooter(object, len(items))
	return t
}

func tabulateObject(title string, object map[string]any) *tabular {
	pairs := map[string]string{}
	flatten("", object, pairs)

	keys := make([]string, 0, len(pairs))
	for key := range pairs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	t := &tabular{Title: title, Header: []string{"Field", "Value"}}
	for _, key := range keys {
		t.Rows = append(t.Rows, []string{key, pairs[key]})
	}
	return t
}

// guessColumns picks the scalar fields of the first object item.
func guessColumns(items []any) []string {
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		var columns []string
		for key, value := range item {
			if skippedFields[key] || !isScalar(value) {
				continue
			}
			columns = append(columns, key)
		}
		sort.Strings(columns)
		if len(columns) > maxFallbackColumns {
			columns = columns[:maxFallbackColumns]
		}
		return columns
	}
	return nil
}

func listFooter(object map[string]any, shown int) string {
	total, ok := object["total_results"]
	if !ok {
		total, ok = object["total_count"]
	}
	if !ok {
		return fmt.Sprintf("%d items", shown)
	}
	return fmt.Sprintf("%d of %s results", shown, cell(total))
}

func flatten(prefix string, value any, out map[string]string) {
	switch v := value.(type) {
	case map[string]any:
		for key, item := range v {
			if skippedFields[key] {
				continue
			}
			path := key
			if prefix != "" {
				path = prefix + "." + key
			}
			flatten(path, item, out)
		}
	default:
		out[prefix] = cell(v)
	}
}

func lookup(object map[string]any, path string) any {
	var current any = object
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[part]
	}
	return current
}

func isScalar(value any) bool {
	switch value.(type) {
	case map[string]any, []any:
		return false
	default:
		return true
	}
}

// cell renders a decoded JSON value as a single table cell.
func cell(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "yes"
		}
		return "no"
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if !isScalar(item) {
				return fmt.Sprintf("[%d items]", len(v))
			}
			parts = append(parts, cell(item))
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		return fmt.Sprintf("{%d fields}", len(v))
	default:
		return fmt.Sprint(v)
	}
}

func headerLabels(columns []string) []string {
	labels := make([]string, len(columns))
	for i, column := range columns {
		if idx := strings.LastIndex(column, "."); idx >= 0 {
			column = column[idx+1:]
		}
		if column == "" {
			continue
		}
		labels[i] = strings.ToUpper(column[:1]) + strings.ReplaceAll(column[1:], "_", " ")
	}
	return labels
}
