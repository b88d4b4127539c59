// Package output renders registry payloads for the terminal.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// Formatter renders one registry payload. title names the resource and is
// used by the human-readable formats only.
type Formatter interface {
	Format(title string, payload json.RawMessage) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatYAML), "yml":
		return FormatYAML, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatYAML:
		return &YAMLFormatter{}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

// IgnoredNotice is printed in place of a payload when the response status was
// suppressed by an ignore list.
func IgnoredNotice(title string, status int) string {
	return fmt.Sprintf("%s: response status %d ignored, no data", title, status)
}

// EmptyNotice is printed for a response that carried no body.
func EmptyNotice(title string, status int) string {
	return fmt.Sprintf("%s: response status %d, no data", title, status)
}

// decode parses a payload keeping numbers exact.
func decode(payload json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return value, nil
}
