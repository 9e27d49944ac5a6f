// handlers_conversation.go - the step-driven annotation conversation
package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/excel-reporter/backend/internal/conversation"
	"github.com/excel-reporter/backend/internal/records"
)

type advanceRequest struct {
	RecordID string `json:"recordId"`
	Step     int    `json:"step"`
	Reply    string `json:"reply"`
}

// HandleConversationAdvance performs one conversation transition. Step 0
// starts a session and returns the first prompt; steps 1..3 consume the reply
// and persist the record before the next prompt is returned.
//
// Rejected replies come back as 422 so the client can retry the same step;
// out-of-range steps are 400.
func (h *Handler) HandleConversationAdvance(c echo.Context) error {
	var req advanceRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.RecordID == "" {
		return NewValidationError("recordId")
	}

	result, err := h.machine.Advance(req.RecordID, req.Step, req.Reply)
	if err != nil {
		switch {
		case errors.Is(err, records.ErrNotFound):
			return NewNotFoundError("record", req.RecordID)
		case errors.Is(err, conversation.ErrConfirmationRejected),
			errors.Is(err, conversation.ErrEmptyReply):
			return NewUnprocessableError("reply was not accepted for this step", err)
		case errors.Is(err, conversation.ErrStepOutOfRange):
			return NewBadRequestError("step index out of range", err)
		default:
			return NewInternalError("failed to advance conversation", err)
		}
	}

	return c.JSON(http.StatusOK, result)
}
