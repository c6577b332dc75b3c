package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hrcore/leave-api/internal/service"
	appErrors "github.com/hrcore/leave-api/pkg/errors"
	"github.com/hrcore/leave-api/pkg/response"
)

// CategoryHandler exposes leave category administration endpoints.
type CategoryHandler struct {
	categories *service.CategoryService
}

// NewCategoryHandler constructs handler.
func NewCategoryHandler(categories *service.CategoryService) *CategoryHandler {
	return &CategoryHandler{categories: categories}
}

// List godoc
// @Summary List leave categories
// @Tags Categories
// @Produce json
// @Param all query bool false "Include inactive categories"
// @Success 200 {object} response.Envelope
// @Router /categories [get]
func (h *CategoryHandler) List(c *gin.Context) {
	activeOnly := c.Query("all") != "true"
	categories, err := h.categories.List(c.Request.Context(), activeOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, categories)
}

// Get godoc
// @Summary Get one leave category
// @Tags Categories
// @Produce json
// @Param id path string true "Category id"
// @Success 200 {object} response.Envelope
// @Router /categories/{id} [get]
func (h *CategoryHandler) Get(c *gin.Context) {
	category, err := h.categories.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, category)
}

// Create godoc
// @Summary Define a new leave category
// @Tags Categories
// @Accept json
// @Produce json
// @Param payload body service.CreateCategoryRequest true "Category payload"
// @Success 201 {object} response.Envelope
// @Router /categories [post]
func (h *CategoryHandler) Create(c *gin.Context) {
	var req service.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	category, err := h.categories.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, category)
}

// Update godoc
// @Summary Update a leave category
// @Tags Categories
// @Accept json
// @Produce json
// @Param id path string true "Category id"
// @Param payload body service.UpdateCategoryRequest true "Category payload"
// @Success 200 {object} response.Envelope
// @Router /categories/{id} [put]
func (h *CategoryHandler) Update(c *gin.Context) {
	var req service.UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	category, err := h.categories.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, category)
}

// Deactivate godoc
// @Summary Retire a leave category from new ledger creation
// @Tags Categories
// @Produce json
// @Param id path string true "Category id"
// @Success 200 {object} response.Envelope
// @Router /categories/{id} [delete]
func (h *CategoryHandler) Deactivate(c *gin.Context) {
	category, err := h.categories.Deactivate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, category)
}
