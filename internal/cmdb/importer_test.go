package cmdb

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV(t *testing.T) {
	payload := `Server Name,IP Address,Operating System
web-01,10.0.1.10,Windows Server 2016
app-01,10.0.1.20,Ubuntu 22.04
`
	extract, err := Parse(FormatCSV, strings.NewReader(payload))
	require.NoError(t, err)

	assert.Equal(t, []string{"Server Name", "IP Address", "Operating System"}, extract.Columns)
	require.Len(t, extract.Rows, 2)
	assert.Equal(t, "web-01", extract.Rows[0]["Server Name"])
	assert.Equal(t, "10.0.1.20", extract.Rows[1]["IP Address"])
}

func TestParseCSVEmpty(t *testing.T) {
	_, err := Parse(FormatCSV, strings.NewReader(""))
	assert.Error(t, err)
}

func TestParseJSON(t *testing.T) {
	payload := `[
		{"hostname": "web-01", "cpu_cores": 4, "virtual": true},
		{"hostname": "app-01", "cpu_cores": 8}
	]`
	extract, err := Parse(FormatJSON, strings.NewReader(payload))
	require.NoError(t, err)

	require.Len(t, extract.Rows, 2)
	assert.Equal(t, "web-01", extract.Rows[0]["hostname"])
	assert.Equal(t, "4", extract.Rows[0]["cpu_cores"])
	assert.Equal(t, "true", extract.Rows[0]["virtual"])
	assert.Contains(t, extract.Columns, "hostname")
	assert.Contains(t, extract.Columns, "cpu_cores")
}

func TestParseUnsupportedFormat(t *testing.T) {
	_, err := Parse("xml", strings.NewReader("<assets/>"))
	assert.Error(t, err)
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, DetectFormat([]byte(`  [{"a":1}]`)))
	assert.Equal(t, FormatJSON, DetectFormat([]byte(`{"a":1}`)))
	assert.Equal(t, FormatCSV, DetectFormat([]byte("host,ip\nweb-01,10.0.0.1")))
}

func TestSampleValues(t *testing.T) {
	extract := &RawExtract{
		Columns: []string{"host", "owner"},
		Rows: []map[string]string{
			{"host": "web-01", "owner": ""},
			{"host": "app-01", "owner": "platform"},
		},
	}
	samples := extract.SampleValues()
	assert.Equal(t, "web-01", samples["host"])
	assert.Equal(t, "platform", samples["owner"])
}
