package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/excel-reporter/backend/internal/models"
)

const systemPrompt = `You are an Excel data analysis specialist. Analyze ONE file at a time:
identify key reporting fields (metrics like Cost, Quantity, Revenue) and join
fields that link to other files (like Company Code, Product ID). Respond with
JSON: {"file_purpose": "...", "fields": {"Name": {"type": "...", "role": "join_field|reporting_field"}}}.
Keep responses concise.`

// FieldRole classifies one column for reporting.
type FieldRole struct {
	Type string `json:"type"`
	Role string `json:"role"`
}

// FieldAnalysis is the structured outcome of a successful analysis.
type FieldAnalysis struct {
	FilePurpose string               `json:"file_purpose"`
	Fields      map[string]FieldRole `json:"fields"`
}

// Analysis is the two-outcome contract: either Structured is set, or the
// model's output did not decode and Raw carries the text for display.
// Callers can always tell which outcome they received.
type Analysis struct {
	Structured *FieldAnalysis `json:"structured,omitempty"`
	Raw        string         `json:"raw"`
	Provider   ProviderInfo   `json:"provider"`
}

// IsStructured reports whether the model produced a decodable field mapping.
func (a *Analysis) IsStructured() bool {
	return a.Structured != nil
}

// Analyzer runs the field-role analysis for one record at a time.
type Analyzer struct {
	provider Provider
}

func New(provider Provider) *Analyzer {
	return &Analyzer{provider: provider}
}

// AnalyzeFile asks the collaborator to classify the record's fields given the
// user's description. Transport failures are hard errors; a reply that is not
// valid JSON is a soft success carrying the raw text.
func (a *Analyzer) AnalyzeFile(ctx context.Context, rec *models.AnnotationRecord, userInput string) (*Analysis, error) {
	resp, info, err := a.provider.Generate(ctx, GenerateRequest{
		System: systemPrompt,
		Prompt: buildPrompt(rec, userInput),
	})
	if err != nil {
		return nil, fmt.Errorf("analysis conversation failed: %w", err)
	}

	result := &Analysis{Raw: resp.Text, Provider: info}
	if fa := decodeAnalysis(resp.Text); fa != nil {
		result.Structured = fa
	}
	return result, nil
}

func buildPrompt(rec *models.AnnotationRecord, userInput string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n", rec.OriginalName)
	fmt.Fprintf(&b, "Fields found:\n")
	for _, f := range rec.Fields {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	fmt.Fprintf(&b, "Record count: %d\n", rec.RecordCount)
	if rec.Description != "" {
		fmt.Fprintf(&b, "Stored description: %s\n", rec.Description)
	}
	fmt.Fprintf(&b, "User description: %s\n", userInput)
	b.WriteString("\nPlease analyze this file and identify field roles.")
	return b.String()
}

func decodeAnalysis(raw string) *FieldAnalysis {
	raw = stripCodeFence(strings.TrimSpace(raw))
	if raw == "" {
		return nil
	}
	var fa FieldAnalysis
	if err := json.Unmarshal([]byte(raw), &fa); err != nil {
		return nil
	}
	if fa.FilePurpose == "" && len(fa.Fields) == 0 {
		return nil
	}
	return &fa
}

func stripCodeFence(s string) string {
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
