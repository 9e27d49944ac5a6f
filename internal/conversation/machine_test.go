package conversation

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/excel-reporter/backend/internal/models"
	"github.com/excel-reporter/backend/internal/records"
)

func newMachineWithRecord(t *testing.T) (*Machine, string) {
	t.Helper()

	store, err := records.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	id, err := store.Create(&models.AnnotationRecord{
		OriginalName: "inventory.xlsx",
		UploadedAt:   time.Now(),
		Fields:       []string{"Item", "Cost", "Qty"},
		RecordCount:  120,
		Types:        map[string]string{"Item": "string", "Cost": "float", "Qty": "integer"},
		History:      []models.ConversationEntry{},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return NewMachine(store), id
}

func TestAdvance_StepZeroReturnsFirstPrompt(t *testing.T) {
	m, id := newMachineWithRecord(t)

	res, err := m.Advance(id, 0, "")
	if err != nil {
		t.Fatalf("Advance(0): %v", err)
	}
	if res.Status != models.ConversationStarted {
		t.Errorf("status = %s, want started", res.Status)
	}
	for _, want := range []string{"inventory.xlsx", "Item, Cost, Qty", "120"} {
		if !strings.Contains(res.Prompt, want) {
			t.Errorf("prompt %q missing %q", res.Prompt, want)
		}
	}
	if len(res.Record.History) != 0 {
		t.Error("step 0 must not mutate the record")
	}
}

func TestAdvance_ConfirmationAccepted(t *testing.T) {
	m, id := newMachineWithRecord(t)

	res, err := m.Advance(id, 1, "yes, looks right")
	if err != nil {
		t.Fatalf("Advance(1): %v", err)
	}
	if !res.Record.Confirmed {
		t.Error("Confirmed not set")
	}
	if res.Status != models.ConversationInProgress {
		t.Errorf("status = %s, want in_progress", res.Status)
	}
	if len(res.Record.History) != 1 {
		t.Fatalf("history len = %d, want 1", len(res.Record.History))
	}
	if res.Record.History[0].Reply != "yes, looks right" {
		t.Errorf("history reply = %q", res.Record.History[0].Reply)
	}
	if !strings.Contains(res.Prompt, "What does inventory.xlsx represent?") {
		t.Errorf("next prompt = %q", res.Prompt)
	}
}

func TestAdvance_ConfirmationRejected(t *testing.T) {
	m, id := newMachineWithRecord(t)

	_, err := m.Advance(id, 1, "nope")
	if !errors.Is(err, ErrConfirmationRejected) {
		t.Fatalf("err = %v, want ErrConfirmationRejected", err)
	}

	// record unchanged, step retryable
	res, err := m.Advance(id, 1, "correct")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(res.Record.History) != 1 {
		t.Errorf("history len = %d, want 1 (rejected reply must not be recorded)", len(res.Record.History))
	}
}

func TestAdvance_EmptyDescriptionRejected(t *testing.T) {
	m, id := newMachineWithRecord(t)

	if _, err := m.Advance(id, 1, "yes"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := m.Advance(id, 2, "   "); !errors.Is(err, ErrEmptyReply) {
		t.Fatalf("err = %v, want ErrEmptyReply", err)
	}
}

func TestAdvance_FullFlow(t *testing.T) {
	m, id := newMachineWithRecord(t)

	steps := []struct {
		step  int
		reply string
	}{
		{1, "yes"},
		{2, "monthly inventory snapshot"},
		{3, "warehouse-report"},
	}

	var last *Result
	for _, s := range steps {
		res, err := m.Advance(id, s.step, s.reply)
		if err != nil {
			t.Fatalf("Advance(%d): %v", s.step, err)
		}
		last = res
	}

	if last.Status != models.ConversationCompleted {
		t.Errorf("status = %s, want completed", last.Status)
	}
	if last.Prompt != CompletionMessage {
		t.Errorf("prompt = %q, want completion message", last.Prompt)
	}

	rec := last.Record
	if !rec.Confirmed || rec.Description != "monthly inventory snapshot" ||
		rec.ProcessName != "warehouse-report" || !rec.Completed {
		t.Errorf("final record = %+v", rec)
	}
	if len(rec.History) != 3 {
		t.Errorf("history len = %d, want 3", len(rec.History))
	}
	for i, e := range rec.History {
		if e.Step != i+1 {
			t.Errorf("history[%d].Step = %d", i, e.Step)
		}
	}
}

func TestAdvance_ReplayPastEndIsIdempotent(t *testing.T) {
	m, id := newMachineWithRecord(t)

	for _, s := range []struct {
		step  int
		reply string
	}{{1, "yes"}, {2, "sales"}, {3, "q3-sales"}} {
		if _, err := m.Advance(id, s.step, s.reply); err != nil {
			t.Fatalf("Advance(%d): %v", s.step, err)
		}
	}

	res, err := m.Advance(id, 4, "anything")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.Prompt != CompletionMessage || res.Status != models.ConversationCompleted {
		t.Errorf("replay result = %+v", res)
	}
	if len(res.Record.History) != 3 {
		t.Error("replay must not append history")
	}
}

func TestAdvance_StepOutOfRangeBeforeCompletion(t *testing.T) {
	m, id := newMachineWithRecord(t)

	if _, err := m.Advance(id, 4, "x"); !errors.Is(err, ErrStepOutOfRange) {
		t.Fatalf("err = %v, want ErrStepOutOfRange", err)
	}
	if _, err := m.Advance(id, -1, "x"); !errors.Is(err, ErrStepOutOfRange) {
		t.Fatalf("negative step err = %v, want ErrStepOutOfRange", err)
	}
}

func TestAdvance_UnknownRecord(t *testing.T) {
	m, _ := newMachineWithRecord(t)

	if _, err := m.Advance("no-such-id", 0, ""); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestIsAffirmative(t *testing.T) {
	tests := []struct {
		reply string
		want  bool
	}{
		{"yes", true},
		{"Yes, looks right", true},
		{"OK", true},
		{"looks good to me", true},
		{"confirmed", true},
		{"nope", false},
		{"no", false},
		{"wrong fields", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isAffirmative(tt.reply); got != tt.want {
			t.Errorf("isAffirmative(%q) = %v, want %v", tt.reply, got, tt.want)
		}
	}
}
