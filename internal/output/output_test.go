package output

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var companySearch = json.RawMessage(`{
  "items": [
    {
      "address_snippet": "1 High Street, London",
      "company_number": "12345",
      "company_status": "active",
      "company_type": "ltd",
      "date_of_creation": "2001-01-01",
      "kind": "searchresults#company",
      "links": {"self": "/company/12345"},
      "title": "PYTHON LTD"
    }
  ],
  "items_per_page": 20,
  "kind": "search#companies",
  "page_number": 1,
  "start_index": 0,
  "total_results": 1
}`)

var companyProfile = json.RawMessage(`{
  "company_name": "PIPE|LINE LTD",
  "company_number": "12345",
  "can_file": true,
  "registered_office_address": {"locality": "London", "postal_code": "N1 1AA"},
  "sic_codes": ["62012", "62020"],
  "links": {"self": "/company/12345"}
}`)

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("yml")
	require.NoError(t, err)
	require.Equal(t, FormatYAML, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func TestTableFormatterList(t *testing.T) {
	rendered, err := NewFormatter(FormatTable).Format("Company search", companySearch)
	require.NoError(t, err)
	require.Contains(t, rendered, "COMPANY NUMBER")
	require.Contains(t, rendered, "PYTHON LTD")
	require.Contains(t, strings.ToLower(rendered), "1 of 1 results")
	require.NotContains(t, rendered, "/company/12345")
}

func TestTableFormatterObject(t *testing.T) {
	rendered, err := NewFormatter(FormatTable).Format("Company profile", companyProfile)
	require.NoError(t, err)
	require.Contains(t, rendered, "registered_office_address.postal_code")
	require.Contains(t, rendered, "N1 1AA")
	require.Contains(t, rendered, "62012, 62020")
	require.Contains(t, rendered, "yes")
}

func TestJSONFormatterPreservesPayload(t *testing.T) {
	rendered, err := NewFormatter(FormatJSON).Format("", json.RawMessage(`{"b":1,"a":2.50}`))
	require.NoError(t, err)
	require.Equal(t, "{\n  \"b\": 1,\n  \"a\": 2.50\n}", rendered)

	compact, err := (&JSONFormatter{}).Format("", json.RawMessage("{ \"a\" : 1 }"))
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, compact)
}

func TestYAMLFormatter(t *testing.T) {
	rendered, err := NewFormatter(FormatYAML).Format("", companyProfile)
	require.NoError(t, err)
	require.Contains(t, rendered, "company_number: \"12345\"")
	require.Contains(t, rendered, "can_file: true")
	require.Contains(t, rendered, "postal_code: N1 1AA")

	rendered, err = NewFormatter(FormatYAML).Format("", companySearch)
	require.NoError(t, err)
	require.Contains(t, rendered, "total_results: 1")
}

func TestMarkdownFormatter(t *testing.T) {
	rendered, err := NewFormatter(FormatMarkdown).Format("Company search", companySearch)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(rendered, "## Company search"))
	require.Contains(t, rendered, "| Company number | Title | Company status |")
	require.Contains(t, rendered, "| 12345 | PYTHON LTD | active |")
	require.Contains(t, rendered, "_1 of 1 results_")
}

func TestMarkdownEscaping(t *testing.T) {
	rendered, err := NewFormatter(FormatMarkdown).Format("pipe|test", companyProfile)
	require.NoError(t, err)
	require.Contains(t, rendered, "pipe\\|test")
	require.Contains(t, rendered, "PIPE\\|LINE LTD")
}

func TestUnknownListKindGuessesColumns(t *testing.T) {
	payload := json.RawMessage(`{"items":[{"name":"A","nested":{"x":1},"notified_on":"2020-01-01","links":{}}],"total_results":3}`)
	data, err := tabulate("", payload)
	require.NoError(t, err)
	require.Equal(t, []string{"Name", "Notified on"}, data.Header)
	require.Equal(t, [][]string{{"A", "2020-01-01"}}, data.Rows)
	require.Equal(t, "1 of 3 results", data.Footer)
}

func TestInvalidPayload(t *testing.T) {
	_, err := NewFormatter(FormatTable).Format("x", json.RawMessage(`{not json`))
	require.Error(t, err)
}

func TestEmptyNotice(t *testing.T) {
	require.Equal(t, "Company profile: response status 204, no data", EmptyNotice("Company profile", 204))
}

func TestIgnoredNotice(t *testing.T) {
	require.Equal(t, "Company profile: response status 404 ignored, no data", IgnoredNotice("Company profile", 404))
}
