package csvimport

import (
	"encoding/csv"
	"strings"
)

// Column set of the import format. The first four are mandatory.
var csvHeaders = []string{"date", "equity", "daily_pnl", "total_pnl", "copiers", "aum", "notes"}

var requiredHeaders = []string{"date", "equity", "daily_pnl", "total_pnl"}

// Summary counts a parse run. InvalidRows counts individual field
// errors, not distinct bad rows.
type Summary struct {
	TotalRows   int `json:"totalRows"`
	ValidRows   int `json:"validRows"`
	InvalidRows int `json:"invalidRows"`
}

// ParseResult is the outcome of parsing one uploaded file.
type ParseResult struct {
	Success bool              `json:"success"`
	Rows    []Row             `json:"data"`
	Errors  []ValidationError `json:"errors"`
	Summary Summary           `json:"summary"`
}

// ParseCSV parses and validates a full CSV document. A malformed file
// yields a single file-level error; row problems are collected per
// field and never abort the run.
func ParseCSV(content string) ParseResult {
	reader := csv.NewReader(strings.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return ParseResult{
			Errors:  []ValidationError{{Row: 0, Field: "file", Message: err.Error()}},
			Summary: Summary{InvalidRows: 1},
		}
	}
	if len(records) == 0 {
		return ParseResult{Success: true}
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var (
		rows []Row
		errs []ValidationError
	)
	for i, record := range records[1:] {
		raw := make(map[string]string, len(header))
		for col, name := range header {
			if col < len(record) {
				raw[name] = strings.TrimSpace(record[col])
			}
		}
		// header occupies line 1
		row, rowErrs := ValidateRow(raw, i+2)
		if len(rowErrs) > 0 {
			errs = append(errs, rowErrs...)
			continue
		}
		rows = append(rows, row)
	}

	return ParseResult{
		Success: len(errs) == 0,
		Rows:    rows,
		Errors:  errs,
		Summary: Summary{
			TotalRows:   len(records) - 1,
			ValidRows:   len(rows),
			InvalidRows: len(errs),
		},
	}
}

// HeaderCheck reports missing required columns and unknown extras.
type HeaderCheck struct {
	Valid   bool     `json:"valid"`
	Missing []string `json:"missing"`
	Extra   []string `json:"extra"`
}

// ValidateHeaders inspects only the first line of the document.
func ValidateHeaders(content string) HeaderCheck {
	firstLine, _, _ := strings.Cut(content, "\n")
	headers := strings.Split(firstLine, ",")
	seen := make(map[string]bool, len(headers))
	known := make(map[string]bool, len(csvHeaders))
	for _, h := range csvHeaders {
		known[h] = true
	}

	var extra []string
	for _, h := range headers {
		name := strings.ToLower(strings.TrimSpace(h))
		seen[name] = true
		if name != "" && !known[name] {
			extra = append(extra, name)
		}
	}
	var missing []string
	for _, h := range requiredHeaders {
		if !seen[h] {
			missing = append(missing, h)
		}
	}
	return HeaderCheck{Valid: len(missing) == 0, Missing: missing, Extra: extra}
}

// Template returns a downloadable one-example CSV template.
func Template() string {
	return strings.Join(csvHeaders, ",") + "\n" +
		`2024-01-07,312.45,12.45,12.45,0,0,"Primera semana"`
}
