// Package conversation drives the fixed, ordered annotation dialogue over a
// record. The machine holds no session state: each call re-derives its
// position from the caller-supplied step index, so any worker can serve any
// step.
package conversation

import (
	"fmt"
	"strings"

	"github.com/excel-reporter/backend/internal/models"
)

// StepCount is the fixed number of annotation steps.
const StepCount = 3

const (
	stepConfirm  = 1
	stepDescribe = 2
	stepFinalize = 3
)

// CompletionMessage is returned once the final step has been answered.
const CompletionMessage = "All annotation steps are complete. This file is ready for reporting."

// step is one entry in the static step table: a prompt builder plus the
// record field the accepted reply lands in.
type step struct {
	number int
	name   string
	prompt func(rec *models.AnnotationRecord) string
}

var stepTable = [StepCount]step{
	{
		number: stepConfirm,
		name:   "confirmation",
		prompt: func(rec *models.AnnotationRecord) string {
			return fmt.Sprintf(
				"I found the following fields in %s: %s (%d records). Does this look right?",
				rec.OriginalName, strings.Join(rec.Fields, ", "), rec.RecordCount)
		},
	},
	{
		number: stepDescribe,
		name:   "description",
		prompt: func(rec *models.AnnotationRecord) string {
			return fmt.Sprintf(
				"Great. What does %s represent? (e.g. \"monthly inventory\", \"sales records\")",
				rec.OriginalName)
		},
	},
	{
		number: stepFinalize,
		name:   "finalization",
		prompt: func(rec *models.AnnotationRecord) string {
			return fmt.Sprintf(
				"Last step: give this dataset a short process name to finish annotating %s.",
				rec.OriginalName)
		},
	},
}

// affirmativeTokens are matched case-insensitively as substrings of the
// confirmation reply.
var affirmativeTokens = []string{"yes", "y", "correct", "right", "confirmed", "ok", "looks good"}

func isAffirmative(reply string) bool {
	lowered := strings.ToLower(reply)
	for _, tok := range affirmativeTokens {
		if strings.Contains(lowered, tok) {
			return true
		}
	}
	return false
}

func promptFor(stepNumber int, rec *models.AnnotationRecord) string {
	return stepTable[stepNumber-1].prompt(rec)
}
