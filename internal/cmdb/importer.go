package cmdb

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// RawExtract is a parsed CMDB export before any mapping or cleansing.
type RawExtract struct {
	Columns []string
	Rows    []map[string]string
}

// Formats accepted by Parse.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// Parse reads a CMDB export in the given format. JSON payloads must be an
// array of flat objects; nested values are rendered back to JSON strings.
func Parse(format string, r io.Reader) (*RawExtract, error) {
	switch strings.ToLower(format) {
	case FormatCSV:
		return parseCSV(r)
	case FormatJSON:
		return parseJSON(r)
	default:
		return nil, fmt.Errorf("unsupported import format %q", format)
	}
}

// DetectFormat guesses csv or json from the payload's first non-space byte.
func DetectFormat(data []byte) string {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		return FormatJSON
	}
	return FormatCSV
}

func parseCSV(r io.Reader) (*RawExtract, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty CSV payload")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}

	extract := &RawExtract{Columns: columns}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d: %w", len(extract.Rows)+2, err)
		}
		row := make(map[string]string, len(columns))
		for i, col := range columns {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		extract.Rows = append(extract.Rows, row)
	}
	return extract, nil
}

func parseJSON(r io.Reader) (*RawExtract, error) {
	var objects []map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&objects); err != nil {
		return nil, fmt.Errorf("failed to parse JSON payload: %w", err)
	}

	extract := &RawExtract{}
	seen := make(map[string]bool)
	for _, obj := range objects {
		row := make(map[string]string, len(obj))
		for k, raw := range obj {
			if !seen[k] {
				seen[k] = true
				extract.Columns = append(extract.Columns, k)
			}
			var s string
			if err := json.Unmarshal(raw, &s); err == nil {
				row[k] = s
			} else {
				// numbers, booleans, nested objects: keep the JSON text
				row[k] = strings.Trim(string(raw), "\n")
			}
		}
		extract.Rows = append(extract.Rows, row)
	}
	return extract, nil
}

// SampleValues returns the first non-empty value per column, used to give the
// field mapping crew context beyond the column name.
func (e *RawExtract) SampleValues() map[string]string {
	samples := make(map[string]string, len(e.Columns))
	for _, col := range e.Columns {
		for _, row := range e.Rows {
			if v := strings.TrimSpace(row[col]); v != "" {
				samples[col] = v
				break
			}
		}
	}
	return samples
}
