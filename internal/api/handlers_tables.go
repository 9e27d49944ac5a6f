// handlers_tables.go - loading extracted sheets into per-record DuckDB tables
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/excel-reporter/backend/internal/excel"
	"github.com/excel-reporter/backend/internal/records"
)

type loadTableRequest struct {
	Sheet     string `json:"sheet"`
	TableName string `json:"tableName"`
}

// HandleLoadTable re-reads one sheet of the record's stored artifact and
// loads it into the record's DuckDB workspace. The table name defaults to the
// sheet name when not given; both pass through strict sanitization.
func (h *Handler) HandleLoadTable(c echo.Context) error {
	id := c.Param("id")
	rec, err := h.records.Get(id)
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			return NewNotFoundError("record", id)
		}
		return NewInternalError("failed to load record", err)
	}

	var req loadTableRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.Sheet == "" {
		return NewValidationError("sheet")
	}
	tableName := req.TableName
	if tableName == "" {
		tableName = req.Sheet
	}

	headers, rows, err := excel.ReadSheetRows(rec.StoredPath, req.Sheet)
	if err != nil {
		return NewBadRequestError("failed to read sheet", err)
	}

	ws, err := h.tables.Workspace(id)
	if err != nil {
		return NewInternalError("failed to open table workspace", err)
	}
	if err := ws.LoadSheet(tableName, headers, rec.Types, rows); err != nil {
		return NewBadRequestError("failed to load table", err)
	}

	info, err := ws.Info(tableName)
	if err != nil {
		return NewInternalError("failed to describe loaded table", err)
	}
	return c.JSON(http.StatusOK, info)
}

// HandleListTables returns the names of tables loaded for a record.
func (h *Handler) HandleListTables(c echo.Context) error {
	id := c.Param("id")
	if _, err := h.records.Get(id); err != nil {
		if errors.Is(err, records.ErrNotFound) {
			return NewNotFoundError("record", id)
		}
		return NewInternalError("failed to load record", err)
	}

	ws, err := h.tables.Workspace(id)
	if err != nil {
		return NewInternalError("failed to open table workspace", err)
	}
	names, err := ws.Tables()
	if err != nil {
		return NewInternalError("failed to list tables", err)
	}
	if names == nil {
		names = []string{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"recordId": id,
		"tables":   names,
	})
}

// HandleTableInfo returns the schema and row count of one loaded table.
func (h *Handler) HandleTableInfo(c echo.Context) error {
	id := c.Param("id")
	name := c.Param("name")

	if _, err := h.records.Get(id); err != nil {
		if errors.Is(err, records.ErrNotFound) {
			return NewNotFoundError("record", id)
		}
		return NewInternalError("failed to load record", err)
	}

	ws, err := h.tables.Workspace(id)
	if err != nil {
		return NewInternalError("failed to open table workspace", err)
	}
	info, err := ws.Info(name)
	if err != nil {
		return NewNotFoundError("table", name)
	}
	return c.JSON(http.StatusOK, info)
}

// HandleTablePreview returns the first rows of a loaded table. The row limit
// comes from the "limit" query parameter, capped at 100.
func (h *Handler) HandleTablePreview(c echo.Context) error {
	id := c.Param("id")
	name := c.Param("name")

	if _, err := h.records.Get(id); err != nil {
		if errors.Is(err, records.ErrNotFound) {
			return NewNotFoundError("record", id)
		}
		return NewInternalError("failed to load record", err)
	}

	limit := 10
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return NewValidationError("limit")
		}
		limit = n
	}
	if limit > 100 {
		limit = 100
	}

	ws, err := h.tables.Workspace(id)
	if err != nil {
		return NewInternalError("failed to open table workspace", err)
	}
	cols, rows, err := ws.Preview(name, limit)
	if err != nil {
		return NewNotFoundError("table", name)
	}
	if rows == nil {
		rows = [][]any{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"tableName": name,
		"columns":   cols,
		"rows":      rows,
	})
}
