package matching

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fixmarket/fixmarket/internal/idgen"
	"github.com/fixmarket/fixmarket/internal/logging"
	"github.com/fixmarket/fixmarket/internal/metrics"
	"github.com/fixmarket/fixmarket/internal/syncutil"
)

const (
	// DefaultBidTTL is how long a bid stays pending before the sweep
	// expires it.
	DefaultBidTTL = 72 * time.Hour

	// FeedPageSize caps the available-orders feed. Providers poll this
	// feed; keeping pages small keeps the queries cheap.
	FeedPageSize = 20

	maxCommentLength = 2000
	maxTitleLength   = 200
	expireBatchSize  = 500
)

// Service implements the matching business logic.
type Service struct {
	store      Store
	catalog    Catalog
	reputation ReputationService
	notifier   Notifier
	bidTTL     time.Duration
	locks      syncutil.ContextShardedMutex // per-order serialization
}

// NewService creates a new matching service.
func NewService(store Store, catalog Catalog, reputation ReputationService) *Service {
	return &Service{
		store:      store,
		catalog:    catalog,
		reputation: reputation,
		bidTTL:     DefaultBidTTL,
	}
}

// WithNotifier adds event notifications for order and bid transitions.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// WithBidTTL overrides the default bid lifetime.
func (s *Service) WithBidTTL(ttl time.Duration) *Service {
	if ttl > 0 {
		s.bidTTL = ttl
	}
	return s
}

// CreateOrder posts a new order in pending status.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || len(req.Title) > maxTitleLength {
		return nil, fmt.Errorf("%w: title must be 1-%d characters", ErrInvalidInput, maxTitleLength)
	}
	if len(req.Description) > maxCommentLength {
		return nil, fmt.Errorf("%w: description too long", ErrInvalidInput)
	}
	if req.Budget != "" {
		if v, err := strconv.ParseFloat(req.Budget, 64); err != nil || v <= 0 {
			return nil, fmt.Errorf("%w: budget must be a positive number", ErrInvalidInput)
		}
	}

	ok, err := s.catalog.CategoryExists(ctx, req.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("catalog lookup: %w", err)
	}
	if !ok {
		return nil, ErrUnknownCategory
	}

	now := time.Now()
	order := &Order{
		ID:          idgen.WithPrefix("ord_"),
		CustomerID:  req.CustomerID,
		CategoryID:  req.CategoryID,
		Title:       req.Title,
		Description: req.Description,
		Budget:      req.Budget,
		City:        strings.TrimSpace(req.City),
		Status:      OrderStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	metrics.OrdersCreatedTotal.Inc()
	if s.notifier != nil {
		s.notifier.OrderCreated(order)
	}
	return order, nil
}

// SubmitBid places a bid on a pending order.
//
// Preconditions are checked in a fixed sequence: order exists and is
// biddable, the provider is not blocked, and the provider has no other
// pending bid on the order. A provider whose earlier bid was withdrawn,
// rejected or expired may bid again.
func (s *Service) SubmitBid(ctx context.Context, orderID string, req SubmitBidRequest) (*Bid, error) {
	amount, err := strconv.ParseFloat(req.Amount, 64)
	if err != nil || amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be a positive number", ErrInvalidInput)
	}
	if len(req.Comment) > maxCommentLength {
		return nil, fmt.Errorf("%w: comment too long", ErrInvalidInput)
	}
	if req.ETAMinutes < 0 {
		return nil, fmt.Errorf("%w: etaMinutes cannot be negative", ErrInvalidInput)
	}

	unlock, err := s.locks.LockContext(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != OrderStatusPending {
		return nil, ErrOrderNotBiddable
	}
	if order.CustomerID == req.ProviderID {
		return nil, ErrSelfBid
	}

	blocked, err := s.reputation.IsBlocked(ctx, req.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("reputation check: %w", err)
	}
	if blocked {
		return nil, ErrProviderBlocked
	}

	if _, err := s.store.GetPendingBidByProviderAndOrder(ctx, req.ProviderID, orderID); err == nil {
		return nil, ErrDuplicateBid
	} else if !errors.Is(err, ErrBidNotFound) {
		return nil, err
	}

	now := time.Now()
	expiresAt := now.Add(s.bidTTL)
	bid := &Bid{
		ID:         idgen.WithPrefix("bid_"),
		OrderID:    orderID,
		ProviderID: req.ProviderID,
		Amount:     req.Amount,
		Comment:    req.Comment,
		ETAMinutes: req.ETAMinutes,
		Status:     BidStatusPending,
		ExpiresAt:  &expiresAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.store.CreateBid(ctx, bid); err != nil {
		return nil, fmt.Errorf("create bid: %w", err)
	}

	if err := s.reputation.RecordBid(ctx, req.ProviderID); err != nil {
		logging.L(ctx).Warn("failed to record bid", "provider", req.ProviderID, "error", err)
	}

	metrics.BidsSubmittedTotal.Inc()
	if s.notifier != nil {
		s.notifier.BidSubmitted(order, bid)
	}
	return bid, nil
}

// AcceptBid assigns the order to the chosen bid's provider.
//
// The order row is claimed with a conditional update on status=pending
// inside a single store transaction; when two accepts race, exactly one
// wins and the loser observes ErrOrderAlreadyMatched. All other pending
// bids on the order are rejected in the same transaction.
func (s *Service) AcceptBid(ctx context.Context, orderID string, req AcceptBidRequest) (*Order, *Bid, error) {
	unlock, err := s.locks.LockContext(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if order.CustomerID != req.CustomerID {
		return nil, nil, ErrNotOwner
	}
	switch order.Status {
	case OrderStatusPending:
	case OrderStatusAccepted, OrderStatusInProgress:
		return nil, nil, ErrOrderAlreadyMatched
	default: // completed or cancelled: nothing to match against
		return nil, nil, ErrOrderNotPending
	}

	bid, err := s.store.GetBid(ctx, req.BidID)
	if err != nil {
		return nil, nil, err
	}
	if bid.OrderID != orderID {
		return nil, nil, ErrBidNotFound
	}
	if bid.IsTerminal() {
		return nil, nil, ErrOrderClosed
	}
	if bid.ExpiresAt != nil && bid.ExpiresAt.Before(time.Now()) {
		return nil, nil, ErrBidExpired
	}

	rejected, err := s.store.AcceptBid(ctx, orderID, bid.ID, bid.ProviderID)
	if err != nil {
		return nil, nil, err
	}

	order, err = s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	bid, err = s.store.GetBid(ctx, req.BidID)
	if err != nil {
		return nil, nil, err
	}

	if err := s.reputation.RecordBidAccepted(ctx, bid.ProviderID); err != nil {
		logging.L(ctx).Warn("failed to record accepted bid", "provider", bid.ProviderID, "error", err)
	}

	metrics.OrdersMatchedTotal.Inc()
	metrics.TimeToMatchSeconds.Observe(time.Since(order.CreatedAt).Seconds())
	if s.notifier != nil {
		s.notifier.BidAccepted(order, bid)
		for _, r := range rejected {
			s.notifier.BidRejected(order, r)
		}
	}
	return order, bid, nil
}

// WithdrawBid retracts a provider's pending bid.
func (s *Service) WithdrawBid(ctx context.Context, bidID, providerID string) (*Bid, error) {
	bid, err := s.store.GetBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if bid.ProviderID != providerID {
		return nil, ErrNotOwner
	}

	unlock, err := s.locks.LockContext(ctx, bid.OrderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Re-read under the order lock; an accept may have raced us.
	bid, err = s.store.GetBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if bid.IsTerminal() {
		return nil, ErrOrderClosed
	}

	bid.Status = BidStatusWithdrawn
	bid.UpdatedAt = time.Now()
	if err := s.store.UpdateBid(ctx, bid); err != nil {
		return nil, fmt.Errorf("withdraw bid: %w", err)
	}

	metrics.BidsWithdrawnTotal.Inc()
	if s.notifier != nil {
		if order, err := s.store.GetOrder(ctx, bid.OrderID); err == nil {
			s.notifier.BidWithdrawn(order, bid)
		}
	}
	return bid, nil
}

// StartOrder moves an accepted order to in_progress. Only the assigned
// provider may start it.
func (s *Service) StartOrder(ctx context.Context, orderID, providerID string) (*Order, error) {
	unlock, err := s.locks.LockContext(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.AssignedProviderID != providerID {
		return nil, ErrNotOwner
	}
	if err := s.store.UpdateOrderStatus(ctx, orderID, OrderStatusAccepted, OrderStatusInProgress); err != nil {
		return nil, err
	}
	return s.store.GetOrder(ctx, orderID)
}

// CompleteOrder marks an in-progress order as completed. Only the
// customer may confirm completion.
func (s *Service) CompleteOrder(ctx context.Context, orderID, customerID string) (*Order, error) {
	unlock, err := s.locks.LockContext(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, ErrNotOwner
	}
	if err := s.store.UpdateOrderStatus(ctx, orderID, OrderStatusInProgress, OrderStatusCompleted); err != nil {
		return nil, err
	}

	metrics.OrdersCompletedTotal.Inc()
	if order.AssignedProviderID != "" {
		if err := s.reputation.RecordCompletion(ctx, order.AssignedProviderID); err != nil {
			logging.L(ctx).Warn("failed to record completion", "provider", order.AssignedProviderID, "error", err)
		}
	}

	order, err = s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.OrderCompleted(order)
	}
	return order, nil
}

// CancelOrder cancels a pending or accepted order. All pending bids are
// rejected; if a provider was already assigned, the cancellation counts
// against the customer side but is recorded on the provider's reputation
// only when the provider had accepted work taken away mid-flight.
func (s *Service) CancelOrder(ctx context.Context, orderID string, req CancelOrderRequest) (*Order, error) {
	unlock, err := s.locks.LockContext(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != req.CustomerID {
		return nil, ErrNotOwner
	}

	switch order.Status {
	case OrderStatusPending, OrderStatusAccepted:
	default:
		return nil, ErrOrderClosed
	}

	if err := s.store.UpdateOrderStatus(ctx, orderID, order.Status, OrderStatusCancelled); err != nil {
		return nil, err
	}

	rejected, err := s.store.RejectPendingBids(ctx, orderID)
	if err != nil {
		logging.L(ctx).Warn("order cancelled but rejecting bids failed", "order", orderID, "error", err)
	}

	metrics.OrdersCancelledTotal.Inc()

	order, err = s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.OrderCancelled(order, order.AssignedProviderID)
		for _, r := range rejected {
			s.notifier.BidRejected(order, r)
		}
	}
	return order, nil
}

// AvailableOrders returns the open-order feed for a provider, applying
// the provider's tier visibility delay. Blocked providers get an empty
// feed rather than an error; the block surfaces when they try to bid.
func (s *Service) AvailableOrders(ctx context.Context, q AvailableOrdersQuery) ([]*Order, error) {
	if q.Limit <= 0 || q.Limit > FeedPageSize {
		q.Limit = FeedPageSize
	}

	blocked, err := s.reputation.IsBlocked(ctx, q.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("reputation check: %w", err)
	}
	if blocked {
		return nil, nil
	}

	delay, err := s.reputation.VisibilityDelay(ctx, q.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("reputation check: %w", err)
	}
	q.MaxAge = delay

	// Without an explicit category filter the feed narrows to the
	// provider's registered offerings.
	if q.CategoryID == "" {
		offered, err := s.catalog.ServicesOfferedBy(ctx, q.ProviderID)
		if err != nil {
			return nil, fmt.Errorf("catalog lookup: %w", err)
		}
		q.Categories = offered
	}

	return s.store.ListAvailableOrders(ctx, q)
}

// ExpireStaleBids expires pending bids past their deadline on orders that
// are still pending. Bids on matched or closed orders are left alone; the
// accept and cancel paths already resolved them. Called by the Timer.
func (s *Service) ExpireStaleBids(ctx context.Context) (int, error) {
	expired, err := s.store.ExpireStaleBids(ctx, time.Now(), expireBatchSize)
	if err != nil {
		return 0, err
	}

	metrics.BidsExpiredTotal.Add(float64(len(expired)))
	if s.notifier != nil {
		for _, b := range expired {
			s.notifier.BidExpired(b)
		}
	}
	return len(expired), nil
}

// GetOrder returns a single order.
func (s *Service) GetOrder(ctx context.Context, id string) (*Order, error) {
	return s.store.GetOrder(ctx, id)
}

// GetBid returns a single bid.
func (s *Service) GetBid(ctx context.Context, id string) (*Bid, error) {
	return s.store.GetBid(ctx, id)
}

// ListOrderBids returns the bids on an order, newest first.
func (s *Service) ListOrderBids(ctx context.Context, orderID string, limit int) ([]*Bid, error) {
	if _, err := s.store.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return s.store.ListBidsByOrder(ctx, orderID, limit)
}

// ListProviderBids returns a provider's bids, newest first.
func (s *Service) ListProviderBids(ctx context.Context, providerID string, limit int) ([]*Bid, error) {
	return s.store.ListBidsByProvider(ctx, providerID, limit)
}

// ListCustomerOrders returns a customer's orders, newest first.
func (s *Service) ListCustomerOrders(ctx context.Context, customerID string, limit int) ([]*Order, error) {
	return s.store.ListOrdersByCustomer(ctx, customerID, limit)
}

// ListProviderOrders returns orders assigned to a provider, newest first.
func (s *Service) ListProviderOrders(ctx context.Context, providerID string, limit int) ([]*Order, error) {
	return s.store.ListOrdersByProvider(ctx, providerID, limit)
}
