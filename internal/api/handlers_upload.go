// handlers_upload.go - batch upload, validation, and metadata extraction
package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/excel-reporter/backend/internal/excel"
	"github.com/excel-reporter/backend/internal/models"
	"github.com/excel-reporter/backend/internal/validate"
)

// uploadResponse preserves every distinction the caller needs: accepted vs
// rejected files with per-file reasons, batch-level errors, per-file
// extraction results, and the record created for each ingested file.
type uploadResponse struct {
	Message       string                         `json:"message"`
	AcceptedFiles []string                       `json:"acceptedFiles"`
	RejectedFiles []validate.RejectedFile        `json:"rejectedFiles"`
	Errors        []string                       `json:"errors"`
	Metadata      map[string]models.FileMetadata `json:"metadata,omitempty"`
	Records       map[string]string              `json:"records,omitempty"` // filename -> record id
}

// HandleUploadBatch accepts a multipart batch of spreadsheet files, validates
// it against the active policy, extracts structural metadata from accepted
// files, and creates one annotation record per successfully parsed file.
// One bad file never suppresses results for its siblings.
func (h *Handler) HandleUploadBatch(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return NewBadRequestError("invalid multipart form", err)
	}
	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		return NewValidationError("files")
	}

	candidates := make([]validate.Candidate, len(fileHeaders))
	byName := make(map[string]*multipart.FileHeader, len(fileHeaders))
	for i, fh := range fileHeaders {
		candidates[i] = validate.Candidate{
			Name:        fh.Filename,
			Size:        fh.Size,
			ContentType: fh.Header.Get("Content-Type"),
		}
		byName[fh.Filename] = fh
	}

	outcome := h.currentPolicy().ValidateBatch(candidates)

	if len(outcome.BatchErrors) > 0 {
		return c.JSON(http.StatusBadRequest, uploadResponse{
			Message:       "batch rejected",
			AcceptedFiles: []string{},
			RejectedFiles: outcome.Rejected,
			Errors:        outcome.BatchErrors,
		})
	}
	if len(outcome.Accepted) == 0 {
		return c.JSON(http.StatusBadRequest, uploadResponse{
			Message:       "no valid files provided",
			AcceptedFiles: []string{},
			RejectedFiles: outcome.Rejected,
			Errors:        []string{},
		})
	}

	resp := uploadResponse{
		AcceptedFiles: outcome.AcceptedNames(),
		RejectedFiles: outcome.Rejected,
		Errors:        []string{},
		Metadata:      make(map[string]models.FileMetadata, len(outcome.Accepted)),
		Records:       make(map[string]string),
	}

	ingested := 0
	for _, cand := range outcome.Accepted {
		data, err := readFormFile(byName[cand.Name])
		if err != nil {
			resp.Metadata[cand.Name] = models.FileMetadata{Error: fmt.Sprintf("read upload: %v", err)}
			continue
		}

		fm, err := excel.Extract(data)
		if err != nil {
			// parse failure is per-file; siblings continue
			fmt.Printf("[Upload] error processing %s: %v\n", cand.Name, err)
			resp.Metadata[cand.Name] = models.FileMetadata{Error: err.Error()}
			continue
		}
		resp.Metadata[cand.Name] = fm

		info, err := h.store.SaveBytes(cand.Name, data)
		if err != nil {
			return NewInternalError("failed to save file", err)
		}
		storedPath, err := h.store.GetFilePath(info.ID)
		if err != nil {
			return NewInternalError("failed to resolve stored path", err)
		}

		id, err := h.records.Create(&models.AnnotationRecord{
			OriginalName: cand.Name,
			ArtifactID:   info.ID,
			StoredPath:   storedPath,
			UploadedAt:   time.Now(),
			Size:         info.Size,
			Fields:       fm.MergedFields(),
			RecordCount:  fm.TotalRows(),
			Types:        fm.MergedTypes(),
			History:      []models.ConversationEntry{},
		})
		if err != nil {
			return NewInternalError("failed to create annotation record", err)
		}
		resp.Records[cand.Name] = id
		ingested++
	}

	resp.Message = fmt.Sprintf("Successfully processed %d files", ingested)
	return c.JSON(http.StatusOK, resp)
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return io.ReadAll(src)
}

// HandleRecentFiles returns the most recently stored artifacts.
func (h *Handler) HandleRecentFiles(c echo.Context) error {
	files, err := h.store.List(20)
	if err != nil {
		return NewInternalError("failed to list files", err)
	}
	return c.JSON(http.StatusOK, files)
}
