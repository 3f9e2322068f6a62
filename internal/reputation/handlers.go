package reputation

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP endpoints for provider reputation.
type Handler struct {
	service *Service
}

// NewHandler creates a new reputation handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up public (read-only) reputation routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/providers/:accountId/reputation", h.GetReputation)
	r.GET("/providers/:accountId/reviews", h.ListReviews)
	r.GET("/providers/:accountId/rating-history", h.RatingHistory)
}

// RegisterProtectedRoutes sets up protected (service-to-service) routes.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/reviews", h.RecordReview)
}

// RegisterAdminRoutes sets up admin-only enforcement routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/providers/:accountId/block", h.BlockProvider)
	r.POST("/providers/:accountId/unblock", h.UnblockProvider)
	r.POST("/providers/:accountId/warn", h.WarnProvider)
	r.GET("/providers/:accountId/block-history", h.BlockHistory)
}

// GetReputation handles GET /v1/providers/:accountId/reputation
func (h *Handler) GetReputation(c *gin.Context) {
	providerID := c.Param("accountId")

	rep, err := h.service.Get(c.Request.Context(), providerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	tier, delay := TierFor(rep, time.Now())
	c.JSON(http.StatusOK, gin.H{
		"reputation":          rep,
		"tier":                tier,
		"priorityScore":       PriorityScore(rep),
		"visibilityDelaySecs": int(delay.Seconds()),
	})
}

// RecordReview handles POST /v1/reviews
func (h *Handler) RecordReview(c *gin.Context) {
	var req RecordReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	review, err := h.service.RecordReview(c.Request.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		code := "review_failed"
		if errors.Is(err, ErrInvalidRating) {
			status = http.StatusBadRequest
			code = "invalid_rating"
		}
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"review": review})
}

// ListReviews handles GET /v1/providers/:accountId/reviews
func (h *Handler) ListReviews(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), 50, 100)
	reviews, err := h.service.Reviews(c.Request.Context(), c.Param("accountId"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	if reviews == nil {
		reviews = []*Review{}
	}
	c.JSON(http.StatusOK, gin.H{"reviews": reviews, "count": len(reviews)})
}

// RatingHistory handles GET /v1/providers/:accountId/rating-history
func (h *Handler) RatingHistory(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), 30, 365)
	snaps, err := h.service.RatingHistory(c.Request.Context(), c.Param("accountId"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	if snaps == nil {
		snaps = []*RatingSnapshot{}
	}
	c.JSON(http.StatusOK, gin.H{"history": snaps, "count": len(snaps)})
}

// BlockProvider handles POST /v1/admin/providers/:accountId/block
func (h *Handler) BlockProvider(c *gin.Context) {
	var req BlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	rep, err := h.service.ApplyBlock(c.Request.Context(), c.Param("accountId"), req.Reason, actorOrAdmin(req.Actor))
	if err != nil {
		status := http.StatusInternalServerError
		code := "block_failed"
		if errors.Is(err, ErrAlreadyBlocked) {
			status = http.StatusConflict
			code = "already_blocked"
		}
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reputation": rep})
}

// UnblockProvider handles POST /v1/admin/providers/:accountId/unblock
func (h *Handler) UnblockProvider(c *gin.Context) {
	var req BlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	rep, err := h.service.Unblock(c.Request.Context(), c.Param("accountId"), req.Reason, actorOrAdmin(req.Actor))
	if err != nil {
		status := http.StatusInternalServerError
		code := "unblock_failed"
		switch {
		case errors.Is(err, ErrProviderNotFound):
			status = http.StatusNotFound
			code = "provider_not_found"
		case errors.Is(err, ErrNotBlocked):
			status = http.StatusConflict
			code = "not_blocked"
		}
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reputation": rep})
}

// WarnProvider handles POST /v1/admin/providers/:accountId/warn
func (h *Handler) WarnProvider(c *gin.Context) {
	var req BlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if err := h.service.RecordWarning(c.Request.Context(), c.Param("accountId"), req.Reason, actorOrAdmin(req.Actor)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "warn_failed",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "warned"})
}

// BlockHistory handles GET /v1/admin/providers/:accountId/block-history
func (h *Handler) BlockHistory(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), 50, 200)
	entries, err := h.service.BlockHistory(c.Request.Context(), c.Param("accountId"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	if entries == nil {
		entries = []*BlockHistoryEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"history": entries, "count": len(entries)})
}

// actorOrAdmin fills in the default actor for admin enforcement routes.
func actorOrAdmin(actor string) string {
	if actor == "" {
		return "admin"
	}
	return actor
}

// parseLimit parses a limit query parameter with a default and a cap.
func parseLimit(s string, defaultVal, maxVal int) int {
	if s == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return defaultVal
	}
	if n > maxVal {
		return maxVal
	}
	return n
}
