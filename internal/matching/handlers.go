package matching

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fixmarket/fixmarket/internal/pagination"
)

// Handler provides HTTP endpoints for the matching engine.
type Handler struct {
	service *Service
}

// NewHandler creates a new matching handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up public (read-only) matching routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/orders/:id", h.GetOrder)
	r.GET("/orders/:id/bids", h.ListOrderBids)
	r.GET("/customers/:accountId/orders", h.ListCustomerOrders)
	r.GET("/providers/:accountId/orders", h.ListProviderOrders)
	r.GET("/providers/:accountId/bids", h.ListProviderBids)
}

// RegisterProtectedRoutes sets up protected (auth-required) matching routes.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/orders", h.CreateOrder)
	r.POST("/orders/:id/bids", h.SubmitBid)
	r.POST("/orders/:id/accept", h.AcceptBid)
	r.POST("/orders/:id/start", h.StartOrder)
	r.POST("/orders/:id/complete", h.CompleteOrder)
	r.POST("/orders/:id/cancel", h.CancelOrder)
	r.POST("/bids/:bidId/withdraw", h.WithdrawBid)
	r.GET("/providers/:accountId/feed", h.AvailableOrders)
}

// CreateOrder handles POST /v1/orders
func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	// Verify caller is the customer
	if caller := c.GetString("authAccountID"); caller != req.CustomerID {
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "not_owner",
			"message": "Authenticated account must be the customer",
		})
		return
	}

	order, err := h.service.CreateOrder(c.Request.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		code := "order_failed"
		switch {
		case errors.Is(err, ErrInvalidInput):
			status = http.StatusBadRequest
			code = "invalid_request"
		case errors.Is(err, ErrUnknownCategory):
			status = http.StatusBadRequest
			code = "unknown_category"
		}
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"order": order})
}

// GetOrder handles GET /v1/orders/:id
func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.service.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "order_not_found",
				"message": "Order not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// SubmitBid handles POST /v1/orders/:id/bids
func (h *Handler) SubmitBid(c *gin.Context) {
	orderID := c.Param("id")

	var req SubmitBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	// Verify caller is the provider
	if caller := c.GetString("authAccountID"); caller != req.ProviderID {
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "not_owner",
			"message": "Authenticated account must be the provider",
		})
		return
	}

	bid, err := h.service.SubmitBid(c.Request.Context(), orderID, req)
	if err != nil {
		status := http.StatusInternalServerError
		code := "bid_failed"
		switch {
		case errors.Is(err, ErrOrderNotFound):
			status = http.StatusNotFound
			code = "order_not_found"
		case errors.Is(err, ErrOrderNotBiddable):
			status = http.StatusConflict
			code = "order_not_biddable"
		case errors.Is(err, ErrSelfBid):
			status = http.StatusBadRequest
			code = "self_bid"
		case errors.Is(err, ErrProviderBlocked):
			status = http.StatusForbidden
			code = "provider_blocked"
		case errors.Is(err, ErrDuplicateBid):
			status = http.StatusConflict
			code = "duplicate_bid"
		case errors.Is(err, ErrInvalidInput):
			status = http.StatusBadRequest
			code = "invalid_request"
		}
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"bid": bid})
}

// AcceptBid handles POST /v1/orders/:id/accept
func (h *Handler) AcceptBid(c *gin.Context) {
	orderID := c.Param("id")

	var req AcceptBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if caller := c.GetString("authAccountID"); caller != req.CustomerID {
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "not_owner",
			"message": "Authenticated account must be the customer",
		})
		return
	}

	order, bid, err := h.service.AcceptBid(c.Request.Context(), orderID, req)
	if err != nil {
		status := http.StatusInternalServerError
		code := "accept_failed"
		switch {
		case errors.Is(err, ErrOrderNotFound):
			status = http.StatusNotFound
			code = "order_not_found"
		case errors.Is(err, ErrBidNotFound):
			status = http.StatusNotFound
			code = "bid_not_found"
		case errors.Is(err, ErrNotOwner):
			status = http.StatusForbidden
			code = "not_owner"
		case errors.Is(err, ErrOrderAlreadyMatched):
			status = http.StatusConflict
			code = "order_already_matched"
		case errors.Is(err, ErrOrderClosed):
			status = http.StatusConflict
			code = "order_closed"
		case errors.Is(err, ErrBidExpired):
			status = http.StatusGone
			code = "bid_expired"
		}
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order, "bid": bid})
}

// WithdrawBid handles POST /v1/bids/:bidId/withdraw
func (h *Handler) WithdrawBid(c *gin.Context) {
	bidID := c.Param("bidId")
	caller := c.GetString("authAccountID")

	bid, err := h.service.WithdrawBid(c.Request.Context(), bidID, caller)
	if err != nil {
		status := http.StatusInternalServerError
		code := "withdraw_failed"
		switch {
		case errors.Is(err, ErrBidNotFound):
			status = http.StatusNotFound
			code = "bid_not_found"
		case errors.Is(err, ErrNotOwner):
			status = http.StatusForbidden
			code = "not_owner"
		case errors.Is(err, ErrOrderClosed):
			status = http.StatusConflict
			code = "order_closed"
		}
		c.JSON(status, gin.H{"error": code, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"bid": bid})
}

// StartOrder handles POST /v1/orders/:id/start
func (h *Handler) StartOrder(c *gin.Context) {
	order, err := h.service.StartOrder(c.Request.Context(), c.Param("id"), c.GetString("authAccountID"))
	if err != nil {
		h.orderTransitionError(c, err, "start_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// CompleteOrder handles POST /v1/orders/:id/complete
func (h *Handler) CompleteOrder(c *gin.Context) {
	order, err := h.service.CompleteOrder(c.Request.Context(), c.Param("id"), c.GetString("authAccountID"))
	if err != nil {
		h.orderTransitionError(c, err, "complete_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// CancelOrder handles POST /v1/orders/:id/cancel
func (h *Handler) CancelOrder(c *gin.Context) {
	var req CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if caller := c.GetString("authAccountID"); caller != req.CustomerID {
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "not_owner",
			"message": "Authenticated account must be the customer",
		})
		return
	}

	order, err := h.service.CancelOrder(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.orderTransitionError(c, err, "cancel_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (h *Handler) orderTransitionError(c *gin.Context, err error, fallback string) {
	status := http.StatusInternalServerError
	code := fallback
	switch {
	case errors.Is(err, ErrOrderNotFound):
		status = http.StatusNotFound
		code = "order_not_found"
	case errors.Is(err, ErrNotOwner):
		status = http.StatusForbidden
		code = "not_owner"
	case errors.Is(err, ErrOrderNotPending):
		status = http.StatusConflict
		code = "order_not_pending"
	case errors.Is(err, ErrOrderClosed):
		status = http.StatusConflict
		code = "order_closed"
	}
	c.JSON(status, gin.H{"error": code, "message": err.Error()})
}

// AvailableOrders handles GET /v1/providers/:accountId/feed
func (h *Handler) AvailableOrders(c *gin.Context) {
	providerID := c.Param("accountId")
	if caller := c.GetString("authAccountID"); caller != providerID {
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "not_owner",
			"message": "Authenticated account must be the provider",
		})
		return
	}

	cursor, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_cursor",
			"message": "Invalid cursor",
		})
		return
	}

	q := AvailableOrdersQuery{
		ProviderID: providerID,
		CategoryID: c.Query("category"),
		City:       c.Query("city"),
		Limit:      parseLimit(c.Query("limit"), FeedPageSize, FeedPageSize),
	}
	if cursor != nil {
		q.After = &FeedCursor{CreatedAt: cursor.CreatedAt, ID: cursor.ID}
	}

	orders, err := h.service.AvailableOrders(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	next := pagination.Next(orders, q.Limit, func(o *Order) (time.Time, string) {
		return o.CreatedAt, o.ID
	})
	if orders == nil {
		orders = []*Order{}
	}
	c.JSON(http.StatusOK, gin.H{
		"orders":      orders,
		"next_cursor": next,
		"has_more":    next != "",
	})
}

// ListOrderBids handles GET /v1/orders/:id/bids
func (h *Handler) ListOrderBids(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), 50, 100)
	bids, err := h.service.ListOrderBids(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "order_not_found",
				"message": "Order not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	if bids == nil {
		bids = []*Bid{}
	}
	c.JSON(http.StatusOK, gin.H{"bids": bids, "count": len(bids)})
}

// ListCustomerOrders handles GET /v1/customers/:accountId/orders
func (h *Handler) ListCustomerOrders(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), 50, 100)
	orders, err := h.service.ListCustomerOrders(c.Request.Context(), c.Param("accountId"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	if orders == nil {
		orders = []*Order{}
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "count": len(orders)})
}

// ListProviderOrders handles GET /v1/providers/:accountId/orders
func (h *Handler) ListProviderOrders(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), 50, 100)
	orders, err := h.service.ListProviderOrders(c.Request.Context(), c.Param("accountId"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	if orders == nil {
		orders = []*Order{}
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "count": len(orders)})
}

// ListProviderBids handles GET /v1/providers/:accountId/bids
func (h *Handler) ListProviderBids(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), 50, 100)
	bids, err := h.service.ListProviderBids(c.Request.Context(), c.Param("accountId"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	if bids == nil {
		bids = []*Bid{}
	}
	c.JSON(http.StatusOK, gin.H{"bids": bids, "count": len(bids)})
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
