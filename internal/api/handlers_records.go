// handlers_records.go - annotation record listing, lookup, and export
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/excel-reporter/backend/internal/records"
)

// HandleListRecords returns all annotation records, newest first.
func (h *Handler) HandleListRecords(c echo.Context) error {
	list, err := h.records.List()
	if err != nil {
		return NewInternalError("failed to list records", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"records": list,
		"count":   len(list),
	})
}

// HandleGetRecord returns one annotation record by id.
func (h *Handler) HandleGetRecord(c echo.Context) error {
	id := c.Param("id")
	rec, err := h.records.Get(id)
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			return NewNotFoundError("record", id)
		}
		return NewInternalError("failed to load record", err)
	}
	return c.JSON(http.StatusOK, rec)
}

// HandleExportRecordMsgpack serializes one record as MessagePack for
// downstream tooling that prefers a compact binary form.
func (h *Handler) HandleExportRecordMsgpack(c echo.Context) error {
	id := c.Param("id")
	rec, err := h.records.Get(id)
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			return NewNotFoundError("record", id)
		}
		return NewInternalError("failed to load record", err)
	}

	data, err := msgpack.Marshal(rec)
	if err != nil {
		return NewInternalError("failed to encode record", err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="record_%s.msgpack"`, id))
	return c.Blob(http.StatusOK, "application/x-msgpack", data)
}
