package handler

import (
	"net/http"

	"stockledger/internal/apierror"
	"stockledger/internal/dto"
	"stockledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CatalogHandler struct{ svc service.CatalogService }

func NewCatalogHandler(svc service.CatalogService) *CatalogHandler {
	return &CatalogHandler{svc: svc}
}

func (h *CatalogHandler) CreateItem(c *gin.Context) {
	var req dto.CreateItemRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CreateItem(c.Request.Context(), req)
	if err != nil {
		writeOpError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ListItems supports ?type=raw|packaging|finished and ?active=all.
// Default is active items only.
func (h *CatalogHandler) ListItems(c *gin.Context) {
	activeOnly := c.Query("active") != "all"
	resp, err := h.svc.ListItems(c.Request.Context(), c.Query("type"), activeOnly)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, apierror.New("failed to list items"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CatalogHandler) DeactivateItem(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid id"))
		return
	}
	if err := h.svc.DeactivateItem(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, apierror.New("failed to deactivate item"))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CatalogHandler) CreateRecipe(c *gin.Context) {
	var req dto.CreateRecipeRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CreateRecipe(c.Request.Context(), req)
	if err != nil {
		writeOpError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *CatalogHandler) ListRecipes(c *gin.Context) {
	resp, err := h.svc.ListRecipes(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, apierror.New("failed to list recipes"))
		return
	}
	c.JSON(http.StatusOK, resp)
}
