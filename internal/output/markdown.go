package output

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MarkdownFormatter renders payloads as a markdown table.
type MarkdownFormatter struct{}

// Format renders a payload as Markdown.
func (f *MarkdownFormatter) Format(title string, payload json.RawMessage) (string, error) {
	if len(payload) == 0 {
		return "", nil
	}

	data, err := tabulate(title, payload)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if data.Title != "" {
		sb.WriteString(fmt.Sprintf("## %s\n\n", escapeMarkdownCell(data.Title)))
	}

	writeMarkdownRow(&sb, data.Header)
	separators := make([]string, len(data.Header))
	for i := range separators {
		separators[i] = "---"
	}
	writeMarkdownRow(&sb, separators)
	for _, row := range data.Rows {
		writeMarkdownRow(&sb, row)
	}

	if data.Footer != "" {
		sb.WriteString(fmt.Sprintf("\n_%s_\n", data.Footer))
	}
	return sb.String(), nil
}

func writeMarkdownRow(sb *strings.Builder, cells []string) {
	escaped := make([]string, len(cells))
	for i, value := range cells {
		escaped[i] = escapeMarkdownCell(value)
	}
	sb.WriteString("| " + strings.Join(escaped, " | ") + " |\n")
}

func escapeMarkdownCell(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.ReplaceAll(value, "|", "\\|")
}
