package analyzer

import (
	"context"
	"encoding/json"
	"strings"
)

// MockProvider returns deterministic structured output so handler flows can
// run without network access or API keys.
type MockProvider struct{}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	_ = ctx
	fields := map[string]FieldRole{}
	for _, line := range strings.Split(req.Prompt, "\n") {
		if name, ok := strings.CutPrefix(strings.TrimSpace(line), "- "); ok {
			role := "reporting_field"
			if strings.Contains(strings.ToLower(name), "code") || strings.Contains(strings.ToLower(name), "id") {
				role = "join_field"
			}
			fields[name] = FieldRole{Type: "string", Role: role}
		}
	}
	out, _ := json.Marshal(FieldAnalysis{
		FilePurpose: "Deterministic mock analysis",
		Fields:      fields,
	})
	return GenerateResponse{Text: string(out)}, ProviderInfo{Name: "mock", Model: "mock-analyzer-v1"}, nil
}
