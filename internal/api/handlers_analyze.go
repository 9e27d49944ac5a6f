// handlers_analyze.go - LLM-backed field role analysis
package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/excel-reporter/backend/internal/records"
)

type analyzeRequest struct {
	UserInput string `json:"userInput"`
}

// HandleAnalyzeRecord asks the analysis collaborator to classify the record's
// fields as reporting or join fields. The response is structured when the
// model returned decodable JSON and raw text otherwise; transport failures
// surface as 503.
func (h *Handler) HandleAnalyzeRecord(c echo.Context) error {
	if h.analyzer == nil {
		return NewServiceUnavailableError("analysis is not configured")
	}

	id := c.Param("id")
	rec, err := h.records.Get(id)
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			return NewNotFoundError("record", id)
		}
		return NewInternalError("failed to load record", err)
	}

	var req analyzeRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	analysis, err := h.analyzer.AnalyzeFile(c.Request().Context(), rec, req.UserInput)
	if err != nil {
		return NewServiceUnavailableError("analysis provider unavailable: " + err.Error())
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"recordId":   id,
		"structured": analysis.IsStructured(),
		"analysis":   analysis,
	})
}
