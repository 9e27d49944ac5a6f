package conversation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/excel-reporter/backend/internal/models"
	"github.com/excel-reporter/backend/internal/records"
)

// ErrConfirmationRejected signals that the reply at the confirmation step did
// not contain an affirmative token. The record is unchanged and the caller
// should retry the same step.
var ErrConfirmationRejected = errors.New("confirmation not recognized as affirmative")

// ErrEmptyReply signals a blank reply at a free-text step. Retryable, record
// unchanged.
var ErrEmptyReply = errors.New("reply must not be empty")

// ErrStepOutOfRange signals a step index past the end of an unfinished
// conversation.
var ErrStepOutOfRange = errors.New("step index out of range")

// Result is what one transition call returns to the caller.
type Result struct {
	Prompt string                    `json:"prompt"`
	Status models.ConversationStatus `json:"status"`
	Record *models.AnnotationRecord  `json:"record"`
}

// Machine advances annotation records through the fixed step sequence,
// persisting each accepted transition before returning the next prompt.
type Machine struct {
	store records.Store
	now   func() time.Time
}

// NewMachine wires the machine to a record store.
func NewMachine(store records.Store) *Machine {
	return &Machine{store: store, now: time.Now}
}

// Advance performs one transition for (record id, step index, reply).
//
// Step 0 starts a session: the step-1 prompt is returned without mutating the
// record. Steps 1..StepCount validate the reply, write the target field,
// append a history entry, and persist before the next prompt is returned. A step index past StepCount on a completed record is an
// idempotent no-op replay.
func (m *Machine) Advance(id string, stepIndex int, reply string) (*Result, error) {
	if stepIndex < 0 {
		return nil, fmt.Errorf("%w: %d", ErrStepOutOfRange, stepIndex)
	}

	if stepIndex == 0 {
		rec, err := m.store.Get(id)
		if err != nil {
			return nil, err
		}
		return &Result{
			Prompt: promptFor(stepConfirm, rec),
			Status: models.ConversationStarted,
			Record: rec,
		}, nil
	}

	if stepIndex > StepCount {
		rec, err := m.store.Get(id)
		if err != nil {
			return nil, err
		}
		if !rec.Completed {
			return nil, fmt.Errorf("%w: %d (conversation has %d steps)", ErrStepOutOfRange, stepIndex, StepCount)
		}
		return &Result{
			Prompt: CompletionMessage,
			Status: models.ConversationCompleted,
			Record: rec,
		}, nil
	}

	var nextPrompt string
	var status models.ConversationStatus

	updated, err := m.store.Update(id, func(rec *models.AnnotationRecord) error {
		prompt, st, err := Transition(rec, stepIndex, reply, m.now())
		if err != nil {
			return err
		}
		nextPrompt = prompt
		status = st
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Result{Prompt: nextPrompt, Status: status, Record: updated}, nil
}

// Transition applies one step to the record in place and returns the next
// prompt and resulting status. It is a pure function of (record, step, reply,
// now); persistence is the caller's job. Validation failures leave the record
// untouched.
func Transition(rec *models.AnnotationRecord, stepIndex int, reply string, now time.Time) (string, models.ConversationStatus, error) {
	if stepIndex < 1 || stepIndex > StepCount {
		return "", "", fmt.Errorf("%w: %d", ErrStepOutOfRange, stepIndex)
	}

	trimmed := strings.TrimSpace(reply)

	switch stepIndex {
	case stepConfirm:
		if !isAffirmative(trimmed) {
			return "", "", ErrConfirmationRejected
		}
		rec.Confirmed = true
	case stepDescribe:
		if trimmed == "" {
			return "", "", ErrEmptyReply
		}
		rec.Description = trimmed
	case stepFinalize:
		// completes unconditionally; the reply names the process
		rec.ProcessName = trimmed
		rec.Completed = true
	}

	rec.History = append(rec.History, models.ConversationEntry{
		Step:      stepIndex,
		Prompt:    promptFor(stepIndex, rec),
		Reply:     reply,
		Timestamp: now,
	})

	if stepIndex == StepCount {
		return CompletionMessage, models.ConversationCompleted, nil
	}
	return promptFor(stepIndex+1, rec), models.ConversationInProgress, nil
}
