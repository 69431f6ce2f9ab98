package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gestao-escolar/escola-api/internal/service"
	appErrors "github.com/gestao-escolar/escola-api/pkg/errors"
	"github.com/gestao-escolar/escola-api/pkg/response"
)

// OccurrenceHandler exposes student occurrence notes.
type OccurrenceHandler struct {
	service *service.OccurrenceService
	scopes  service.ScopeResolver
}

// NewOccurrenceHandler constructs an occurrence handler.
func NewOccurrenceHandler(svc *service.OccurrenceService, scopes service.ScopeResolver) *OccurrenceHandler {
	return &OccurrenceHandler{service: svc, scopes: scopes}
}

// Create godoc
// @Summary Record an occurrence on a student
// @Tags Occurrences
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.CreateOccurrenceRequest true "Occurrence payload"
// @Success 201 {object} response.Envelope
// @Router /students/{id}/occurrences [post]
func (h *OccurrenceHandler) Create(c *gin.Context) {
	scope, err := resolveScope(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.CreateOccurrenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	occurrence, err := h.service.Create(c.Request.Context(), c.Param("id"), req, scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, occurrence)
}

// ListByStudent godoc
// @Summary List occurrences of a student
// @Tags Occurrences
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/occurrences [get]
func (h *OccurrenceHandler) ListByStudent(c *gin.Context) {
	scope, err := resolveScope(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}
	occurrences, err := h.service.ListByStudent(c.Request.Context(), c.Param("id"), scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, occurrences, nil)
}
