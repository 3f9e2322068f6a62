package catalog

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP endpoints for the category catalog.
type Handler struct {
	catalog *Catalog
}

// NewHandler creates a new catalog handler.
func NewHandler(catalog *Catalog) *Handler {
	return &Handler{catalog: catalog}
}

// RegisterRoutes sets up public catalog routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/categories", h.ListCategories)
	r.GET("/categories/:id", h.GetCategory)
	r.GET("/providers/:accountId/services", h.GetProviderServices)
}

// RegisterOwnerRoutes sets up routes requiring ownership of the account
// in the path.
func (h *Handler) RegisterOwnerRoutes(r *gin.RouterGroup) {
	r.PUT("/providers/:accountId/services", h.SetProviderServices)
}

// ListCategories handles GET /v1/categories
func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.catalog.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories, "count": len(categories)})
}

// SetServicesRequest lists the categories a provider serves.
type SetServicesRequest struct {
	CategoryIDs []string `json:"categoryIds"`
}

// GetProviderServices handles GET /v1/providers/:accountId/services
func (h *Handler) GetProviderServices(c *gin.Context) {
	offered, err := h.catalog.ServicesOfferedBy(c.Request.Context(), c.Param("accountId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	if offered == nil {
		offered = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"categoryIds": offered, "count": len(offered)})
}

// SetProviderServices handles PUT /v1/providers/:accountId/services
func (h *Handler) SetProviderServices(c *gin.Context) {
	var req SetServicesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if err := h.catalog.SetProviderServices(c.Request.Context(), c.Param("accountId"), req.CategoryIDs); err != nil {
		if errors.Is(err, ErrUnknownCategory) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "unknown_category",
				"message": err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"categoryIds": req.CategoryIDs})
}

// GetCategory handles GET /v1/categories/:id
func (h *Handler) GetCategory(c *gin.Context) {
	cat, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrCategoryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "category_not_found",
				"message": "Category not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": cat})
}
