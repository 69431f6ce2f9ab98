package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gestao-escolar/escola-api/internal/service"
	appErrors "github.com/gestao-escolar/escola-api/pkg/errors"
	"github.com/gestao-escolar/escola-api/pkg/response"
)

// EnrollmentHandler exposes enrollment lifecycle endpoints.
type EnrollmentHandler struct {
	roster     *service.RosterService
	attendance *service.AttendanceService
	scopes     service.ScopeResolver
}

// NewEnrollmentHandler constructs an enrollment handler.
func NewEnrollmentHandler(roster *service.RosterService, attendance *service.AttendanceService, scopes service.ScopeResolver) *EnrollmentHandler {
	return &EnrollmentHandler{roster: roster, attendance: attendance, scopes: scopes}
}

// Enroll godoc
// @Summary Enroll a student into a class
// @Description Creates an active enrollment. Re-enrolling into the same class is idempotent; an active enrollment elsewhere is refused with ALREADY_ENROLLED.
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.EnrollStudentRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	scope, err := resolveScope(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.EnrollStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.roster.Enroll(c.Request.Context(), req, scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Transfer godoc
// @Summary Transfer an enrollment to another class
// @Description Closes the current enrollment and opens a new active one in the target class.
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.TransferEnrollmentRequest true "Transfer payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/transfer [put]
func (h *EnrollmentHandler) Transfer(c *gin.Context) {
	scope, err := resolveScope(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.TransferEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.roster.Transfer(c.Request.Context(), c.Param("id"), req, scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// AttendanceHistory godoc
// @Summary Attendance history for an enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/attendance [get]
func (h *EnrollmentHandler) AttendanceHistory(c *gin.Context) {
	if _, err := resolveScope(c, h.scopes); err != nil {
		response.Error(c, err)
		return
	}

	var from, to *time.Time
	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid from date"))
			return
		}
		from = &parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid to date"))
			return
		}
		to = &parsed
	}

	records, err := h.attendance.History(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}
