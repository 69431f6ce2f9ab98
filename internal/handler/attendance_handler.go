package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gestao-escolar/escola-api/internal/service"
	appErrors "github.com/gestao-escolar/escola-api/pkg/errors"
	"github.com/gestao-escolar/escola-api/pkg/response"
)

// AttendanceHandler exposes the attendance ledger endpoints.
type AttendanceHandler struct {
	service *service.AttendanceService
	scopes  service.ScopeResolver
}

// NewAttendanceHandler constructs an attendance handler.
func NewAttendanceHandler(svc *service.AttendanceService, scopes service.ScopeResolver) *AttendanceHandler {
	return &AttendanceHandler{service: svc, scopes: scopes}
}

// Record godoc
// @Summary Record an attendance sheet
// @Description Upserts the batch atomically. Entries for students without an active enrollment in the class are skipped and reported.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body service.RecordAttendanceRequest true "Attendance sheet"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/attendance [post]
func (h *AttendanceHandler) Record(c *gin.Context) {
	scope, err := resolveScope(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.RecordAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.Record(c.Request.Context(), c.Param("id"), req, scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Sheet godoc
// @Summary Attendance sheet for a class and date
// @Description Returns the full active roster with present and recorded flags.
// @Tags Attendance
// @Produce json
// @Param id path string true "Class ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/attendance [get]
func (h *AttendanceHandler) Sheet(c *gin.Context) {
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
	rows, err := h.service.Sheet(c.Request.Context(), c.Param("id"), date, scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}
