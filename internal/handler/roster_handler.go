package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gestao-escolar/escola-api/internal/service"
	appErrors "github.com/gestao-escolar/escola-api/pkg/errors"
	"github.com/gestao-escolar/escola-api/pkg/response"
)

// RosterHandler exposes the class association endpoints: subject
// offers and teacher assignments.
type RosterHandler struct {
	roster *service.RosterService
	scopes service.ScopeResolver
}

// NewRosterHandler constructs a roster handler.
func NewRosterHandler(roster *service.RosterService, scopes service.ScopeResolver) *RosterHandler {
	return &RosterHandler{roster: roster, scopes: scopes}
}

// ListOffers godoc
// @Summary List subjects offered in a class
// @Tags Roster
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/subjects [get]
func (h *RosterHandler) ListOffers(c *gin.Context) {
	scope, err := resolveScope(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}
	offers, err := h.roster.ListOffers(c.Request.Context(), c.Param("id"), scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, offers, nil)
}

// OfferSubject godoc
// @Summary Offer a subject in a class
// @Description Marks the subject as offered. Re-offering is a no-op success.
// @Tags Roster
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body service.OfferSubjectRequest true "Offer payload"
// @Success 201 {object} response.Envelope
// @Router /classes/{id}/subjects [post]
func (h *RosterHandler) OfferSubject(c *gin.Context) {
	scope, err := resolveScope(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.OfferSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	offer, err := h.roster.OfferSubject(c.Request.Context(), c.Param("id"), req, scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, offer)
}

// WithdrawOffer godoc
// @Summary Withdraw a subject offer from a class
// @Description Refused with 409 while grades exist for the pair or a teacher is still assigned.
// @Tags Roster
// @Produce json
// @Param id path string true "Class ID"
// @Param subjectId path string true "Subject ID"
// @Success 204
// @Router /classes/{id}/subjects/{subjectId} [delete]
func (h *RosterHandler) WithdrawOffer(c *gin.Context) {
	scope, err := resolveScope(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.roster.WithdrawOffer(c.Request.Context(), c.Param("id"), c.Param("subjectId"), scope); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AssignTeacher godoc
// @Summary Assign a teacher to a subject in a class
// @Description Replaces any previous teacher for the (class, subject) pair.
// @Tags Roster
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body service.AssignTeacherRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Router /classes/{id}/teachers [post]
func (h *RosterHandler) AssignTeacher(c *gin.Context) {
	scope, err := resolveScope(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.AssignTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	assignment, err := h.roster.AssignTeacher(c.Request.Context(), c.Param("id"), req, scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// RemoveTeacher godoc
// @Summary Unlink a teacher from a class
// @Description Refused with 409 while the teacher still holds subject assignments in the class.
// @Tags Roster
// @Produce json
// @Param id path string true "Class ID"
// @Param teacherId path string true "Teacher ID"
// @Success 204
// @Router /classes/{id}/teachers/{teacherId} [delete]
func (h *RosterHandler) RemoveTeacher(c *gin.Context) {
	scope, err := resolveScope(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.roster.RemoveTeacherFromClass(c.Request.Context(), c.Param("teacherId"), c.Param("id"), scope); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
