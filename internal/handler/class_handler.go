package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gestao-escolar/escola-api/internal/models"
	"github.com/gestao-escolar/escola-api/internal/service"
	appErrors "github.com/gestao-escolar/escola-api/pkg/errors"
	"github.com/gestao-escolar/escola-api/pkg/response"
)

// ClassHandler exposes class CRUD endpoints. Deletion goes through the
// roster service because it consults the association graph.
type ClassHandler struct {
	service *service.ClassService
	roster  *service.RosterService
	scopes  service.ScopeResolver
}

// NewClassHandler constructs a class handler.
func NewClassHandler(svc *service.ClassService, roster *service.RosterService, scopes service.ScopeResolver) *ClassHandler {
	return &ClassHandler{service: svc, roster: roster, scopes: scopes}
}

// List godoc
// @Summary List classes
// @Tags Classes
// @Produce json
// @Param school_id query string false "Filter by school"
// @Param shift query string false "Filter by shift"
// @Param search query string false "Search keyword"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *ClassHandler) List(c *gin.Context) {
	scope, err := resolveScope(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}

	var filter models.ClassFilter
	filter.SchoolID = c.Query("school_id")
	filter.Shift = models.ClassShift(c.Query("shift"))
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	classes, pagination, err := h.service.List(c.Request.Context(), filter, scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, pagination)
}

// Get godoc
// @Summary Get class detail
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id} [get]
func (h *ClassHandler) Get(c *gin.Context) {
	scope, err := resolveScope(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"), scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary Create class
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body service.CreateClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Router /classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	scope, err := resolveScope(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	class, err := h.service.Create(c.Request.Context(), req, scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// Update godoc
// @Summary Update class
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body service.UpdateClassRequest true "Class payload"
// @Success 200 {object} response.Envelope
// @Router /classes/{id} [put]
func (h *ClassHandler) Update(c *gin.Context) {
	scope, err := resolveScope(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.UpdateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	class, err := h.service.Update(c.Request.Context(), c.Param("id"), req, scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Delete godoc
// @Summary Delete class
// @Description Removes an empty class. Refused with 409 while students, teachers or subjects still reference it.
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 204
// @Router /classes/{id} [delete]
func (h *ClassHandler) Delete(c *gin.Context) {
	scope, err := resolveScope(c, h.scopes)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.roster.DeleteClass(c.Request.Context(), c.Param("id"), scope); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
