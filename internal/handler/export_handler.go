package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gestao-escolar/escola-api/internal/service"
	appErrors "github.com/gestao-escolar/escola-api/pkg/errors"
	"github.com/gestao-escolar/escola-api/pkg/response"
)

// ExportHandler serves rendered CSV and PDF documents.
type ExportHandler struct {
	service *service.ExportService
	scopes  service.ScopeResolver
}

// NewExportHandler constructs an export handler.
func NewExportHandler(svc *service.ExportService, scopes service.ScopeResolver) *ExportHandler {
	return &ExportHandler{service: svc, scopes: scopes}
}

// Gradebook godoc
// @Summary Export the class gradebook
// @Tags Exports
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Class ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /classes/{id}/gradebook/export [get]
func (h *ExportHandler) Gradebook(c *gin.Context) {
	scope, err := resolveScope(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}
	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	payload, err := h.service.Gradebook(c.Request.Context(), c.Param("id"), format, scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.serve(c, payload)
}

// AttendanceSheet godoc
// @Summary Export an attendance sheet
// @Tags Exports
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Class ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /classes/{id}/attendance/export [get]
func (h *ExportHandler) AttendanceSheet(c *gin.Context) {
	scope, err := resolveScope(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}
	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid or missing date"))
		return
	}
	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	payload, err := h.service.AttendanceSheet(c.Request.Context(), c.Param("id"), date, format, scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.serve(c, payload)
}

func (h *ExportHandler) serve(c *gin.Context, payload *service.ExportPayload) {
	c.Header("Content-Disposition", `attachment; filename="`+payload.Filename+`"`)
	c.Data(200, payload.ContentType, payload.Data)
}
