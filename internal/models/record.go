package models

import "time"

// ConversationStatus reflects where a record's annotation dialogue stands.
type ConversationStatus string

const (
	ConversationStarted    ConversationStatus = "started"
	ConversationInProgress ConversationStatus = "in_progress"
	ConversationCompleted  ConversationStatus = "completed"
)

// ConversationEntry is one answered step in the annotation dialogue.
type ConversationEntry struct {
	Step      int       `json:"step"`
	Prompt    string    `json:"prompt"`
	Reply     string    `json:"reply"`
	Timestamp time.Time `json:"timestamp"`
}

// AnnotationRecord is the durable, progressively filled-in description of one
// ingested spreadsheet: extraction-derived structure plus the semantics the
// user supplies step by step. Created once at ingestion and mutated only by
// the conversation state machine afterwards.
type AnnotationRecord struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"originalName"`
	ArtifactID   string    `json:"artifactId"`
	StoredPath   string    `json:"storedPath"`
	UploadedAt   time.Time `json:"uploadedAt"`
	Size         int64     `json:"size"`

	// Derived from extraction.
	Fields      []string          `json:"fields"` // merged across sheets, first-seen order
	RecordCount int               `json:"recordCount"`
	Types       map[string]string `json:"types"`

	// User-supplied, one field group per conversation step.
	Confirmed   bool   `json:"confirmed"`
	Description string `json:"description"`
	ProcessName string `json:"processName"`

	History   []ConversationEntry `json:"history"`
	Completed bool                `json:"completed"`
}

// Clone returns a deep copy so store readers never alias the live record.
func (r *AnnotationRecord) Clone() *AnnotationRecord {
	cp := *r
	cp.Fields = append([]string(nil), r.Fields...)
	cp.History = append([]ConversationEntry(nil), r.History...)
	if r.Types != nil {
		cp.Types = make(map[string]string, len(r.Types))
		for k, v := range r.Types {
			cp.Types[k] = v
		}
	}
	return &cp
}
