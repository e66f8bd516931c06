package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hris-discipline-api/internal/models"
	"github.com/noah-isme/hris-discipline-api/pkg/response"
)

type categoryService interface {
	List(ctx context.Context, activeOnly bool) ([]models.DisciplinaryCategory, error)
	Invalidate(ctx context.Context) error
}

// CategoryHandler exposes the violation category catalogue.
type CategoryHandler struct {
	categories categoryService
}

// NewCategoryHandler constructs the handler.
func NewCategoryHandler(categories categoryService) *CategoryHandler {
	return &CategoryHandler{categories: categories}
}

// List godoc
// @Summary List violation categories
// @Tags Discipline
// @Produce json
// @Param include_inactive query bool false "Include retired categories"
// @Success 200 {object} response.Envelope
// @Router /discipline/categories [get]
func (h *CategoryHandler) List(c *gin.Context) {
	activeOnly := c.Query("include_inactive") != "true"
	items, err := h.categories.List(c.Request.Context(), activeOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Invalidate godoc
// @Summary Drop cached categories after catalogue changes
// @Tags Discipline
// @Success 204
// @Router /discipline/categories/cache [delete]
func (h *CategoryHandler) Invalidate(c *gin.Context) {
	if err := h.categories.Invalidate(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
