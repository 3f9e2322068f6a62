// Package matching provides the order/bid matching engine for the marketplace.
//
// Flow:
//  1. Customer posts an order for a service category
//  2. Providers discover open orders (gated by their priority tier) and bid
//  3. Customer accepts one bid: the order is assigned atomically, all other
//     pending bids are rejected
//  4. Provider starts the work, customer confirms completion
//  5. Stale bids expire via a background sweep; all transitions are pushed
//     via webhooks + WebSocket
package matching

import (
	"context"
	"errors"
	"time"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderNotBiddable    = errors.New("order is not open for bidding")
	ErrOrderClosed         = errors.New("order or bid is in a terminal state")
	ErrOrderAlreadyMatched = errors.New("order already matched to another bid")
	ErrOrderNotPending     = errors.New("order is not in the required state")
	ErrBidNotFound         = errors.New("bid not found")
	ErrBidExpired          = errors.New("bid has expired")
	ErrDuplicateBid        = errors.New("provider already has a pending bid on this order")
	ErrProviderBlocked     = errors.New("provider is blocked from bidding")
	ErrNotOwner            = errors.New("not authorized for this resource")
	ErrSelfBid             = errors.New("customer cannot bid on own order")
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnknownCategory     = errors.New("unknown service category")
)

// OrderStatus represents the state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusAccepted   OrderStatus = "accepted"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// BidStatus represents the state of a bid. Every status other than
// pending is terminal.
type BidStatus string

const (
	BidStatusPending   BidStatus = "pending"
	BidStatusAccepted  BidStatus = "accepted"
	BidStatusRejected  BidStatus = "rejected"
	BidStatusWithdrawn BidStatus = "withdrawn"
	BidStatusExpired   BidStatus = "expired"
)

// Order represents a customer's request for a service.
type Order struct {
	ID                 string      `json:"id"`
	CustomerID         string      `json:"customerId"`
	CategoryID         string      `json:"categoryId"`
	Title              string      `json:"title"`
	Description        string      `json:"description,omitempty"`
	Budget             string      `json:"budget,omitempty"`
	City               string      `json:"city,omitempty"`
	Status             OrderStatus `json:"status"`
	AssignedProviderID string      `json:"assignedProviderId,omitempty"`
	AcceptedBidID      string      `json:"acceptedBidId,omitempty"`
	CreatedAt          time.Time   `json:"createdAt"`
	UpdatedAt          time.Time   `json:"updatedAt"`
}

// IsTerminal returns true if the order is in a final state.
func (o *Order) IsTerminal() bool {
	switch o.Status {
	case OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// Bid represents a provider's offer on an order.
type Bid struct {
	ID         string    `json:"id"`
	OrderID    string    `json:"orderId"`
	ProviderID string    `json:"providerId"`
	Amount     string    `json:"amount"`
	Comment    string    `json:"comment,omitempty"`
	// ETAMinutes is the provider's estimated arrival time in minutes.
	// Zero means the provider gave no estimate.
	ETAMinutes int        `json:"etaMinutes,omitempty"`
	Status     BidStatus  `json:"status"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// IsTerminal returns true if the bid can no longer change state.
func (b *Bid) IsTerminal() bool {
	return b.Status != BidStatusPending
}

// CreateOrderRequest contains the parameters for posting an order.
type CreateOrderRequest struct {
	CustomerID  string `json:"customerId" binding:"required"`
	CategoryID  string `json:"categoryId" binding:"required"`
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Budget      string `json:"budget"`
	City        string `json:"city"`
}

// SubmitBidRequest contains the parameters for placing a bid on an order.
type SubmitBidRequest struct {
	ProviderID string `json:"providerId" binding:"required"`
	Amount     string `json:"amount" binding:"required"`
	Comment    string `json:"comment"`
	ETAMinutes int    `json:"etaMinutes"`
}

// AcceptBidRequest identifies the winning bid for an order.
type AcceptBidRequest struct {
	CustomerID string `json:"customerId" binding:"required"`
	BidID      string `json:"bidId" binding:"required"`
}

// CancelOrderRequest contains the parameters for cancelling an order.
type CancelOrderRequest struct {
	CustomerID string `json:"customerId" binding:"required"`
	Reason     string `json:"reason"`
}

// AvailableOrdersQuery filters the open-order feed for a provider.
type AvailableOrdersQuery struct {
	ProviderID string
	CategoryID string
	// Categories restricts the feed to these category IDs when CategoryID
	// is empty. Filled from the provider's registered service offerings.
	Categories []string
	City       string
	// MaxAge hides orders newer than now-MaxAge. Used for tier-based
	// visibility delays: an order becomes visible to a provider only
	// once it has aged past the provider's delay.
	MaxAge time.Duration
	After  *FeedCursor
	Limit  int
}

// FeedCursor is a position in the newest-first order feed.
type FeedCursor struct {
	CreatedAt time.Time
	ID        string
}

// Store persists orders and bids.
type Store interface {
	// Order operations
	CreateOrder(ctx context.Context, order *Order) error
	GetOrder(ctx context.Context, id string) (*Order, error)
	UpdateOrder(ctx context.Context, order *Order) error
	ListOrdersByCustomer(ctx context.Context, customerID string, limit int) ([]*Order, error)
	ListOrdersByProvider(ctx context.Context, providerID string, limit int) ([]*Order, error)

	// ListAvailableOrders returns pending orders the provider can bid on,
	// newest first. Orders the provider already has a pending bid on and
	// the provider's own orders are excluded.
	ListAvailableOrders(ctx context.Context, q AvailableOrdersQuery) ([]*Order, error)

	// UpdateOrderStatus transitions an order from one status to another.
	// Returns ErrOrderNotPending if the order is not in the from status,
	// ErrOrderNotFound if it does not exist.
	UpdateOrderStatus(ctx context.Context, id string, from, to OrderStatus) error

	// Bid operations
	CreateBid(ctx context.Context, bid *Bid) error
	GetBid(ctx context.Context, id string) (*Bid, error)
	UpdateBid(ctx context.Context, bid *Bid) error
	ListBidsByOrder(ctx context.Context, orderID string, limit int) ([]*Bid, error)
	ListBidsByProvider(ctx context.Context, providerID string, limit int) ([]*Bid, error)

	// GetPendingBidByProviderAndOrder returns the provider's pending bid
	// on the order, or ErrBidNotFound if none exists. Terminal bids are
	// ignored so a provider may bid again after withdrawing or expiring.
	GetPendingBidByProviderAndOrder(ctx context.Context, providerID, orderID string) (*Bid, error)

	// AcceptBid atomically assigns the order to the winning bid's provider.
	// The order row is claimed with a conditional update on status=pending;
	// if another accept won the race, ErrOrderAlreadyMatched is returned
	// and nothing changes. On success the winning bid is accepted and every
	// other pending bid on the order is rejected; the rejected bids are
	// returned for notification.
	AcceptBid(ctx context.Context, orderID, bidID, providerID string) ([]*Bid, error)

	// RejectPendingBids rejects all pending bids on an order and returns
	// them. Used when an order is cancelled.
	RejectPendingBids(ctx context.Context, orderID string) ([]*Bid, error)

	// ExpireStaleBids expires pending bids whose deadline passed, but only
	// on orders that are still pending. Returns the expired bids.
	ExpireStaleBids(ctx context.Context, now time.Time, limit int) ([]*Bid, error)
}

// Catalog answers whether a service category exists and which categories
// a provider serves.
type Catalog interface {
	CategoryExists(ctx context.Context, categoryID string) (bool, error)

	// ServicesOfferedBy returns the category IDs the provider has
	// registered to serve. Empty means the provider has not narrowed
	// their offerings and sees every category.
	ServicesOfferedBy(ctx context.Context, providerID string) ([]string, error)
}

// ReputationService gates bidding and feed visibility on provider standing.
type ReputationService interface {
	// IsBlocked reports whether the provider is currently blocked,
	// applying lazy expiry of timed blocks.
	IsBlocked(ctx context.Context, providerID string) (bool, error)

	// VisibilityDelay returns how long the provider must wait before
	// newly created orders appear in their feed.
	VisibilityDelay(ctx context.Context, providerID string) (time.Duration, error)

	// RecordCompletion and RecordCancellation feed order outcomes back
	// into the provider's reputation counters.
	RecordCompletion(ctx context.Context, providerID string) error
	RecordCancellation(ctx context.Context, providerID string) error

	// RecordBid and RecordBidAccepted maintain the provider's bid
	// counters and acceptance rate.
	RecordBid(ctx context.Context, providerID string) error
	RecordBidAccepted(ctx context.Context, providerID string) error
}

// Notifier pushes matching events to interested parties. Implementations
// must not block; failures are logged, never surfaced to callers.
type Notifier interface {
	OrderCreated(order *Order)
	OrderCompleted(order *Order)
	OrderCancelled(order *Order, providerID string)
	BidSubmitted(order *Order, bid *Bid)
	BidAccepted(order *Order, bid *Bid)
	BidRejected(order *Order, bid *Bid)
	BidWithdrawn(order *Order, bid *Bid)
	BidExpired(bid *Bid)
}
