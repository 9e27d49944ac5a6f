// Package analyzer wraps the external LLM collaborator that maps spreadsheet
// fields to reporting roles. The collaborator is fallible and slow; callers
// own timeouts via the context they pass in.
package analyzer

import "context"

// ProviderInfo identifies which backend produced a response.
type ProviderInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
}

// GenerateRequest is a single prompt exchange.
type GenerateRequest struct {
	System string `json:"system"`
	Prompt string `json:"prompt"`
}

// GenerateResponse carries the raw model output.
type GenerateResponse struct {
	Text string `json:"text"`
}

// Provider is the pluggable LLM backend.
type Provider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error)
}
