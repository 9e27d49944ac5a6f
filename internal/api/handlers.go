package api

import (
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/labstack/echo/v4"

	"github.com/excel-reporter/backend/internal/analyzer"
	"github.com/excel-reporter/backend/internal/conversation"
	"github.com/excel-reporter/backend/internal/records"
	"github.com/excel-reporter/backend/internal/storage"
	"github.com/excel-reporter/backend/internal/tables"
	"github.com/excel-reporter/backend/internal/validate"
)

// Handler handles API requests.
type Handler struct {
	store    storage.Store
	records  records.Store
	machine  *conversation.Machine
	analyzer *analyzer.Analyzer
	tables   *tables.Manager

	policyMu sync.RWMutex
	policy   validate.Policy
}

// NewHandler creates a new API handler.
func NewHandler(store storage.Store, recordStore records.Store, an *analyzer.Analyzer, tableMgr *tables.Manager, policy validate.Policy) *Handler {
	return &Handler{
		store:    store,
		records:  recordStore,
		machine:  conversation.NewMachine(recordStore),
		analyzer: an,
		tables:   tableMgr,
		policy:   policy,
	}
}

// LoadPolicyFile replaces the active validation policy from a YAML override
// file if one exists; a missing file leaves the configured policy in place.
func (h *Handler) LoadPolicyFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	policy, err := validate.LoadPolicyFile(path)
	if err != nil {
		return fmt.Errorf("failed to load validation policy: %w", err)
	}
	h.policyMu.Lock()
	h.policy = policy
	h.policyMu.Unlock()
	return nil
}

func (h *Handler) currentPolicy() validate.Policy {
	h.policyMu.RLock()
	defer h.policyMu.RUnlock()
	return h.policy
}

// HandleHealth returns server health status.
func (h *Handler) HandleHealth(c echo.Context) error {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":      "healthy",
		"environment": env,
	})
}

// HandleGetValidationRules returns the active upload policy.
func (h *Handler) HandleGetValidationRules(c echo.Context) error {
	policy := h.currentPolicy()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"maxFiles":             policy.MaxFiles,
		"maxFileSizeBytes":     policy.MaxFileSize,
		"allowedExtensions":    policy.AllowedExtensions,
		"acceptedMimePrefixes": policy.AcceptedMIMEPrefixes,
	})
}

type updateRulesRequest struct {
	MaxFiles             int      `json:"maxFiles"`
	MaxFileSizeBytes     int64    `json:"maxFileSizeBytes"`
	AllowedExtensions    []string `json:"allowedExtensions"`
	AcceptedMIMEPrefixes []string `json:"acceptedMimePrefixes"`
}

// HandleUpdateValidationRules replaces mutable policy fields for the running
// process. Zero values keep the current setting.
func (h *Handler) HandleUpdateValidationRules(c echo.Context) error {
	var req updateRulesRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	h.policyMu.Lock()
	if req.MaxFiles > 0 {
		h.policy.MaxFiles = req.MaxFiles
	}
	if req.MaxFileSizeBytes > 0 {
		h.policy.MaxFileSize = req.MaxFileSizeBytes
	}
	if len(req.AllowedExtensions) > 0 {
		h.policy.AllowedExtensions = req.AllowedExtensions
	}
	if len(req.AcceptedMIMEPrefixes) > 0 {
		h.policy.AcceptedMIMEPrefixes = req.AcceptedMIMEPrefixes
	}
	h.policyMu.Unlock()

	return h.HandleGetValidationRules(c)
}
