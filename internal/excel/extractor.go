// Package excel extracts structural metadata (sheets, fields, inferred types,
// row counts) from spreadsheet files.
package excel

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/excel-reporter/backend/internal/models"
)

// Candidate pairs a filename with the raw bytes to parse.
type Candidate struct {
	Name string
	Data []byte
}

// ExtractBatch produces one FileMetadata per candidate. A parse failure for
// one file is recorded in that file's entry and never aborts the rest of the
// batch.
func ExtractBatch(candidates []Candidate) map[string]models.FileMetadata {
	metadata := make(map[string]models.FileMetadata, len(candidates))
	for _, c := range candidates {
		fm, err := Extract(c.Data)
		if err != nil {
			fmt.Printf("[Extract] error processing %s: %v\n", c.Name, err)
			metadata[c.Name] = models.FileMetadata{Error: err.Error()}
			continue
		}
		metadata[c.Name] = fm
	}
	return metadata
}

// Extract parses spreadsheet bytes into per-sheet metadata. Parsing is
// deterministic: the same bytes always yield the same result.
func Extract(data []byte) (models.FileMetadata, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return models.FileMetadata{}, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	sheetNames := f.GetSheetList()
	if len(sheetNames) == 0 {
		return models.FileMetadata{}, fmt.Errorf("spreadsheet has no sheets")
	}

	fm := models.FileMetadata{
		SheetNames: sheetNames,
		Sheets:     make(map[string]models.SheetMetadata, len(sheetNames)),
	}

	for _, sheet := range sheetNames {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return models.FileMetadata{}, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		fm.Sheets[sheet] = sheetMetadata(rows)
	}
	return fm, nil
}

// sheetMetadata derives field names, per-field type tags, and the data row
// count from raw rows. The first row is the header; blank header cells get a
// positional Column_N name.
func sheetMetadata(rows [][]string) models.SheetMetadata {
	if len(rows) == 0 {
		return models.SheetMetadata{
			Fields:   []string{},
			Types:    map[string]string{},
			RowCount: 0,
		}
	}

	fields := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Column_%d", i+1)
		}
		fields[i] = h
	}

	dataRows := rows[1:]
	types := make(map[string]string, len(fields))
	for col, field := range fields {
		if _, dup := types[field]; dup {
			// duplicate header names share the first column's inference
			continue
		}
		types[field] = inferColumnType(dataRows, col)
	}

	return models.SheetMetadata{
		Fields:   fields,
		Types:    types,
		RowCount: len(dataRows),
	}
}

// ReadSheetRows re-reads a stored artifact and returns the data rows of one
// sheet, padded/truncated to the header width so downstream table loading
// sees rectangular data.
func ReadSheetRows(path, sheet string) ([]string, [][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Column_%d", i+1)
		}
		headers[i] = h
	}

	data := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		r := make([]string, len(headers))
		copy(r, row)
		data = append(data, r)
	}
	return headers, data, nil
}
