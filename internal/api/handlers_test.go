// handlers_test.go - HTTP-level tests for the ingestion and annotation API
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/xuri/excelize/v2"

	"github.com/excel-reporter/backend/internal/analyzer"
	"github.com/excel-reporter/backend/internal/models"
	"github.com/excel-reporter/backend/internal/records"
	"github.com/excel-reporter/backend/internal/tables"
	"github.com/excel-reporter/backend/internal/testutil"
	"github.com/excel-reporter/backend/internal/validate"
)

func newTestHandler(t *testing.T) (*Handler, *testutil.MockStorage) {
	t.Helper()

	store := testutil.NewMockStorageWithTempDir(t.TempDir())
	recordStore, err := records.NewFileStore(t.TempDir())
	require.NoError(t, err)

	h := NewHandler(
		store,
		recordStore,
		analyzer.New(analyzer.NewMockProvider()),
		tables.NewManager(t.TempDir()),
		validate.DefaultPolicy(),
	)
	return h, store
}

// xlsxBytes builds a minimal single-sheet workbook.
func xlsxBytes(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func multipartBody(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, data := range files {
		part, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func doUpload(t *testing.T, h *Handler, files map[string][]byte) (*httptest.ResponseRecorder, error) {
	t.Helper()

	body, contentType := multipartBody(t, files)
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return rec, h.HandleUploadBatch(c)
}

func TestHandleUploadBatch_ValidFile(t *testing.T) {
	h, store := newTestHandler(t)

	data := xlsxBytes(t, [][]interface{}{
		{"Item", "Cost"},
		{"bolt", 1.5},
	})
	rec, err := doUpload(t, h, map[string][]byte{"inv.xlsx": data})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, []string{"inv.xlsx"}, resp.AcceptedFiles)
	assert.Empty(t, resp.RejectedFiles)
	assert.Empty(t, resp.Errors)
	require.Contains(t, resp.Metadata, "inv.xlsx")
	assert.Empty(t, resp.Metadata["inv.xlsx"].Error)
	require.Contains(t, resp.Records, "inv.xlsx")

	// artifact persisted and record created
	assert.Equal(t, 1, store.GetFileCount())
	stored, err := h.records.Get(resp.Records["inv.xlsx"])
	require.NoError(t, err)
	assert.Equal(t, []string{"Item", "Cost"}, stored.Fields)
	assert.Equal(t, 1, stored.RecordCount)
	assert.False(t, stored.Completed)
}

func TestHandleUploadBatch_TooManyFiles(t *testing.T) {
	h, store := newTestHandler(t)

	files := map[string][]byte{}
	for i := 0; i < 6; i++ {
		files[fmt.Sprintf("f%d.xlsx", i)] = []byte("x")
	}
	rec, err := doUpload(t, h, files)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0], "maximum 5 files")
	assert.Empty(t, resp.AcceptedFiles)

	// count violation stops everything before storage
	assert.Equal(t, 0, store.GetFileCount())
}

func TestHandleUploadBatch_MixedBatch(t *testing.T) {
	h, _ := newTestHandler(t)

	good := xlsxBytes(t, [][]interface{}{{"A"}, {1}})
	rec, err := doUpload(t, h, map[string][]byte{
		"good.xlsx": good,
		"bad.txt":   []byte("nope"),
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"good.xlsx"}, resp.AcceptedFiles)
	require.Len(t, resp.RejectedFiles, 1)
	assert.Equal(t, "bad.txt", resp.RejectedFiles[0].Filename)
}

func TestHandleUploadBatch_CorruptAcceptedFile(t *testing.T) {
	h, _ := newTestHandler(t)

	good := xlsxBytes(t, [][]interface{}{{"A"}, {1}})
	rec, err := doUpload(t, h, map[string][]byte{
		"good.xlsx":    good,
		"corrupt.xlsx": []byte("garbage bytes"),
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	// corrupt file passes validation but fails extraction; sibling unaffected
	assert.NotEmpty(t, resp.Metadata["corrupt.xlsx"].Error)
	assert.Empty(t, resp.Metadata["good.xlsx"].Error)
	assert.Contains(t, resp.Records, "good.xlsx")
	assert.NotContains(t, resp.Records, "corrupt.xlsx")
}

func uploadOneRecord(t *testing.T, h *Handler) string {
	t.Helper()

	data := xlsxBytes(t, [][]interface{}{
		{"Item", "Cost", "Qty"},
		{"bolt", 1.5, 100},
	})
	rec, err := doUpload(t, h, map[string][]byte{"inv.xlsx": data})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Records["inv.xlsx"]
}

func advance(t *testing.T, h *Handler, id string, step int, reply string) (*httptest.ResponseRecorder, error) {
	t.Helper()

	body, _ := json.Marshal(advanceRequest{RecordID: id, Step: step, Reply: reply})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/conversation/advance", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return rec, h.HandleConversationAdvance(c)
}

func TestHandleConversationAdvance_FullFlow(t *testing.T) {
	h, _ := newTestHandler(t)
	id := uploadOneRecord(t, h)

	// step 0: opening prompt, no mutation
	rec, err := advance(t, h, id, 0, "")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)
	var res struct {
		Prompt string                   `json:"prompt"`
		Status string                   `json:"status"`
		Record *models.AnnotationRecord `json:"record"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Contains(t, res.Prompt, "inv.xlsx")
	assert.Equal(t, "started", res.Status)

	for _, step := range []struct {
		n     int
		reply string
	}{
		{1, "yes, looks right"},
		{2, "monthly inventory"},
		{3, "warehouse-report"},
	} {
		rec, err := advance(t, h, id, step.n, step.reply)
		require.NoError(t, err, "step %d", step.n)
		require.Equal(t, http.StatusOK, rec.Code)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	}

	assert.Equal(t, "completed", res.Status)
	require.NotNil(t, res.Record)
	assert.True(t, res.Record.Completed)
	assert.Equal(t, "warehouse-report", res.Record.ProcessName)
}

func TestHandleConversationAdvance_RejectedReply(t *testing.T) {
	h, _ := newTestHandler(t)
	id := uploadOneRecord(t, h)

	_, err := advance(t, h, id, 1, "nope")
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, "REPLY_REJECTED", apiErr.Code)
}

func TestHandleConversationAdvance_UnknownRecord(t *testing.T) {
	h, _ := newTestHandler(t)

	_, err := advance(t, h, "missing", 0, "")
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestHandleConversationAdvance_StepOutOfRange(t *testing.T) {
	h, _ := newTestHandler(t)
	id := uploadOneRecord(t, h)

	_, err := advance(t, h, id, 4, "x")
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestHandleListRecords(t *testing.T) {
	h, _ := newTestHandler(t)
	uploadOneRecord(t, h)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/records", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.HandleListRecords(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Records []*models.AnnotationRecord `json:"records"`
		Count   int                        `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
}

func TestHandleGetRecord_NotFound(t *testing.T) {
	h, _ := newTestHandler(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/records/missing", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("missing")

	err := h.HandleGetRecord(c)
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestHandleExportRecordMsgpack(t *testing.T) {
	h, _ := newTestHandler(t)
	id := uploadOneRecord(t, h)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/records/"+id+"/export/msgpack", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id)

	require.NoError(t, h.HandleExportRecordMsgpack(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-msgpack", rec.Header().Get(echo.HeaderContentType))

	var decoded models.AnnotationRecord
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &decoded))
	assert.Equal(t, id, decoded.ID)
	assert.Equal(t, "inv.xlsx", decoded.OriginalName)
}

func TestHandleAnalyzeRecord(t *testing.T) {
	h, _ := newTestHandler(t)
	id := uploadOneRecord(t, h)

	body, _ := json.Marshal(analyzeRequest{UserInput: "inventory data"})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/records/"+id+"/analyze", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id)

	require.NoError(t, h.HandleAnalyzeRecord(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		RecordID   string             `json:"recordId"`
		Structured bool               `json:"structured"`
		Analysis   *analyzer.Analysis `json:"analysis"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.RecordID)
	assert.True(t, resp.Structured)
	assert.Equal(t, "mock", resp.Analysis.Provider.Name)
}

func TestHandleLoadTable(t *testing.T) {
	h, _ := newTestHandler(t)
	id := uploadOneRecord(t, h)

	body, _ := json.Marshal(loadTableRequest{Sheet: "Sheet1", TableName: "inventory"})
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/records/"+id+"/tables/load", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id)

	require.NoError(t, h.HandleLoadTable(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var info tables.TableInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "inventory", info.TableName)
	assert.Equal(t, 1, info.RowCount)
	require.Len(t, info.Columns, 3)
}

func TestHandleValidationRules_GetAndUpdate(t *testing.T) {
	h, _ := newTestHandler(t)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/api/config/validation-rules", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h.HandleGetValidationRules(e.NewContext(req, rec)))

	var rules map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rules))
	assert.EqualValues(t, 5, rules["maxFiles"])

	body, _ := json.Marshal(updateRulesRequest{MaxFiles: 3})
	req = httptest.NewRequest(http.MethodPut, "/api/config/validation-rules", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	require.NoError(t, h.HandleUpdateValidationRules(e.NewContext(req, rec)))

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rules))
	assert.EqualValues(t, 3, rules["maxFiles"])
	// untouched fields keep their values
	assert.EqualValues(t, 50*1024*1024, rules["maxFileSizeBytes"])
}
