package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gestao-escolar/escola-api/internal/service"
	appErrors "github.com/gestao-escolar/escola-api/pkg/errors"
	"github.com/gestao-escolar/escola-api/pkg/response"
)

// GradeHandler exposes the grade ledger endpoints.
type GradeHandler struct {
	service *service.GradeService
	scopes  service.ScopeResolver
}

// NewGradeHandler constructs a grade handler.
func NewGradeHandler(svc *service.GradeService, scopes service.ScopeResolver) *GradeHandler {
	return &GradeHandler{service: svc, scopes: scopes}
}

// Record godoc
// @Summary Record a grade batch
// @Description Upserts the batch atomically. Out-of-range values reject the whole batch; students without an active enrollment are skipped and reported.
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body service.RecordGradesRequest true "Grade batch"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/grades [post]
func (h *GradeHandler) Record(c *gin.Context) {
	scope, err := resolveScope(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.RecordGradesRequest
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

// Gradebook godoc
// @Summary Full class gradebook
// @Description Returns the active roster with every student's grades nested.
// @Tags Grades
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/gradebook [get]
func (h *GradeHandler) Gradebook(c *gin.Context) {
	scope, err := resolveScope(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}
	book, err := h.service.Gradebook(c.Request.Context(), c.Param("id"), scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, book, nil)
}
