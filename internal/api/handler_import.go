package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"perfdash-backend/internal/importer"
	"perfdash-backend/internal/parse"
)

func (h *Handler) ImportFields(c *gin.Context) {
	c.JSON(http.StatusOK, h.imports.Fields())
}

// ImportTemplate downloads a CSV to fill in.
func (h *Handler) ImportTemplate(c *gin.Context) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="`+importer.TemplateFileName+`"`)
	c.Status(http.StatusOK)
	if err := importer.WriteTemplate(c.Writer); err != nil {
		h.log.Error("failed to write import template", "error", err)
	}
}

func (h *Handler) CreateImportSession(c *gin.Context) {
	snap := h.imports.Create()
	c.Header("Location", "/api/import/sessions/"+snap.ID)
	c.JSON(http.StatusCreated, snap)
}

func (h *Handler) GetImportSession(c *gin.Context) {
	snap, err := h.imports.Get(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) DeleteImportSession(c *gin.Context) {
	h.imports.Delete(c.Param("id"))
	c.Status(http.StatusNoContent)
}

// multipartOverhead covers boundaries and part headers around the file.
const multipartOverhead = 64 << 10

// UploadImportFile loads the multipart field "file" into the session. The
// body is capped and parsed fully in memory, so no part spills to disk.
func (h *Handler) UploadImportFile(c *gin.Context) {
	limit := h.imports.MaxFileBytes() + multipartOverhead
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	if err := c.Request.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(c, fmt.Errorf("%w: upload exceeds %d bytes", importer.ErrFileTooLarge, h.imports.MaxFileBytes()))
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"file\" is required"})
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"file\" is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.fail(c, err)
		return
	}
	defer f.Close()

	snap, err := h.imports.Load(c.Param("id"), fh.Filename, f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

type mappingRequest struct {
	SystemField parse.Field `json:"systemField" binding:"required"`
	CSVColumn   string      `json:"csvColumn"`
}

// UpdateImportMapping assigns one column. An empty csvColumn clears it.
func (h *Handler) UpdateImportMapping(c *gin.Context) {
	var req mappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap, err := h.imports.UpdateMapping(c.Param("id"), req.SystemField, req.CSVColumn)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// StartImport validates the mapping and schedules the import.
func (h *Handler) StartImport(c *gin.Context) {
	snap, task, err := h.imports.Import(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	accepted(c, task, gin.H{"session": snap})
}

// ResetImportSession returns the wizard to its first step.
func (h *Handler) ResetImportSession(c *gin.Context) {
	snap, err := h.imports.Reset(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}
