package output

import (
	"bytes"
	"encoding/json"
)

// JSONFormatter renders payloads as JSON.
type JSONFormatter struct {
	Indent bool
}

// Format re-indents the payload without decoding it, so field order and
// number formatting are preserved.
func (f *JSONFormatter) Format(_ string, payload json.RawMessage) (string, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	var err error
	if f.Indent {
		err = json.Indent(&buf, payload, "", "  ")
	} else {
		err = json.Compact(&buf, payload)
	}
	if err != nil {
		return "", err
	}

	return buf.String(), nil
}
