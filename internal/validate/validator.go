// Package validate applies batch and per-file upload policy to candidate
// spreadsheet files before any parsing happens.
package validate

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Candidate is a single uploaded file awaiting validation. Only the declared
// attributes are inspected here; content is never read.
type Candidate struct {
	Name        string
	Size        int64
	ContentType string
}

// RejectedFile pairs a filename with every policy violation it accumulated.
type RejectedFile struct {
	Filename string   `json:"filename"`
	Reasons  []string `json:"reasons"`
}

// Outcome partitions a candidate batch. A file appears in exactly one of
// Accepted/Rejected; a non-empty BatchErrors list means nothing was accepted.
type Outcome struct {
	Accepted    []Candidate    `json:"-"`
	Rejected    []RejectedFile `json:"rejectedFiles"`
	BatchErrors []string       `json:"errors"`
}

// AcceptedNames lists accepted filenames for response payloads.
func (o *Outcome) AcceptedNames() []string {
	names := make([]string, 0, len(o.Accepted))
	for _, c := range o.Accepted {
		names = append(names, c.Name)
	}
	return names
}

// Policy holds the configurable upload constraints.
type Policy struct {
	MaxFiles             int      `yaml:"maxFiles"`
	MaxFileSize          int64    `yaml:"maxFileSize"`
	AllowedExtensions    []string `yaml:"allowedExtensions"`
	AcceptedMIMEPrefixes []string `yaml:"acceptedMimePrefixes"`

	// Content types treated as "not declared"; curl and many browsers send
	// application/octet-stream for anything binary.
	UnspecifiedContentTypes []string `yaml:"unspecifiedContentTypes"`
}

// DefaultPolicy mirrors the stock upload constraints: at most 5 files of up
// to 50 MiB each, Excel extensions and MIME types only.
func DefaultPolicy() Policy {
	return Policy{
		MaxFiles:          5,
		MaxFileSize:       50 * 1024 * 1024,
		AllowedExtensions: []string{".xlsx", ".xls"},
		AcceptedMIMEPrefixes: []string{
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			"application/vnd.ms-excel",
		},
		UnspecifiedContentTypes: []string{"", "application/octet-stream"},
	}
}

// ValidateBatch checks the whole batch against the policy. The count limit is
// checked first and short-circuits: per-file checks are skipped entirely when
// the batch is over-sized.
func (p Policy) ValidateBatch(files []Candidate) Outcome {
	var out Outcome

	if len(files) > p.MaxFiles {
		out.BatchErrors = append(out.BatchErrors,
			fmt.Sprintf("maximum %d files allowed, got %d", p.MaxFiles, len(files)))
		return out
	}

	for _, f := range files {
		reasons := p.checkFile(f)
		if len(reasons) > 0 {
			out.Rejected = append(out.Rejected, RejectedFile{Filename: f.Name, Reasons: reasons})
			continue
		}
		out.Accepted = append(out.Accepted, f)
	}
	return out
}

func (p Policy) checkFile(f Candidate) []string {
	var reasons []string

	if f.Size > p.MaxFileSize {
		reasons = append(reasons, fmt.Sprintf("file size %.1fMB exceeds %dMB limit",
			float64(f.Size)/(1024*1024), p.MaxFileSize/(1024*1024)))
	}

	ext := strings.ToLower(filepath.Ext(f.Name))
	if !contains(p.AllowedExtensions, ext) {
		reasons = append(reasons, fmt.Sprintf("file must have one of the extensions: %s",
			strings.Join(p.AllowedExtensions, ", ")))
	}

	if !p.isUnspecified(f.ContentType) && !p.hasAcceptedPrefix(f.ContentType) {
		reasons = append(reasons, fmt.Sprintf("invalid spreadsheet content type: %s", f.ContentType))
	}

	return reasons
}

func (p Policy) isUnspecified(contentType string) bool {
	for _, s := range p.UnspecifiedContentTypes {
		if contentType == s {
			return true
		}
	}
	return false
}

func (p Policy) hasAcceptedPrefix(contentType string) bool {
	for _, prefix := range p.AcceptedMIMEPrefixes {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
