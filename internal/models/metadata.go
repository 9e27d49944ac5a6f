package models

// SheetMetadata describes the structure of a single worksheet.
type SheetMetadata struct {
	Fields   []string          `json:"fields"`
	Types    map[string]string `json:"types"`
	RowCount int               `json:"rowCount"` // data rows, header excluded
}

// FileMetadata is the extraction result for one uploaded file. Exactly one of
// Sheets or Error is populated: a parse failure leaves Sheets nil and records
// the reason so sibling files in the same batch are unaffected.
type FileMetadata struct {
	SheetNames []string                 `json:"sheetNames,omitempty"`
	Sheets     map[string]SheetMetadata `json:"sheets,omitempty"`
	Error      string                   `json:"error,omitempty"`
}

// MergedFields returns the union of field names across all sheets in workbook
// order, de-duplicated while preserving first-seen order.
func (m *FileMetadata) MergedFields() []string {
	seen := make(map[string]struct{})
	var merged []string
	for _, sheet := range m.SheetNames {
		sm, ok := m.Sheets[sheet]
		if !ok {
			continue
		}
		for _, f := range sm.Fields {
			if _, dup := seen[f]; dup {
				continue
			}
			seen[f] = struct{}{}
			merged = append(merged, f)
		}
	}
	return merged
}

// TotalRows sums the data row counts of all sheets.
func (m *FileMetadata) TotalRows() int {
	total := 0
	for _, sm := range m.Sheets {
		total += sm.RowCount
	}
	return total
}

// MergedTypes flattens the per-sheet type maps into a single field->type
// signature. The first sheet to define a field wins, matching MergedFields.
func (m *FileMetadata) MergedTypes() map[string]string {
	types := make(map[string]string)
	for _, sheet := range m.SheetNames {
		sm, ok := m.Sheets[sheet]
		if !ok {
			continue
		}
		for _, f := range sm.Fields {
			if _, dup := types[f]; dup {
				continue
			}
			if t, ok := sm.Types[f]; ok {
				types[f] = t
			}
		}
	}
	return types
}
