package matching

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]*Order
	bids   map[string]*Bid
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders: make(map[string]*Order),
		bids:   make(map[string]*Bid),
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) CreateOrder(ctx context.Context, order *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *order
	m.orders[order.ID] = &cp
	return nil
}

func (m *MemoryStore) GetOrder(ctx context.Context, id string) (*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *order
	return &cp, nil
}

func (m *MemoryStore) UpdateOrder(ctx context.Context, order *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[order.ID]; !ok {
		return ErrOrderNotFound
	}
	cp := *order
	m.orders[order.ID] = &cp
	return nil
}

func (m *MemoryStore) UpdateOrderStatus(ctx context.Context, id string, from, to OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	if order.Status != from {
		return ErrOrderNotPending
	}
	order.Status = to
	order.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) ListOrdersByCustomer(ctx context.Context, customerID string, limit int) ([]*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Order
	for _, o := range m.orders {
		if o.CustomerID == customerID {
			cp := *o
			out = append(out, &cp)
		}
	}
	sortOrdersNewestFirst(out)
	return truncateOrders(out, limit), nil
}

func (m *MemoryStore) ListOrdersByProvider(ctx context.Context, providerID string, limit int) ([]*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Order
	for _, o := range m.orders {
		if o.AssignedProviderID == providerID {
			cp := *o
			out = append(out, &cp)
		}
	}
	sortOrdersNewestFirst(out)
	return truncateOrders(out, limit), nil
}

func (m *MemoryStore) ListAvailableOrders(ctx context.Context, q AvailableOrdersQuery) ([]*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().Add(-q.MaxAge)

	// Orders the provider already has a pending bid on.
	bidOn := make(map[string]bool)
	for _, b := range m.bids {
		if b.ProviderID == q.ProviderID && b.Status == BidStatusPending {
			bidOn[b.OrderID] = true
		}
	}

	var out []*Order
	for _, o := range m.orders {
		if o.Status != OrderStatusPending {
			continue
		}
		if o.CustomerID == q.ProviderID || bidOn[o.ID] {
			continue
		}
		if q.CategoryID != "" {
			if o.CategoryID != q.CategoryID {
				continue
			}
		} else if len(q.Categories) > 0 && !containsString(q.Categories, o.CategoryID) {
			continue
		}
		if q.City != "" && o.City != q.City {
			continue
		}
		if q.MaxAge > 0 && o.CreatedAt.After(cutoff) {
			continue
		}
		if q.After != nil {
			if o.CreatedAt.After(q.After.CreatedAt) {
				continue
			}
			if o.CreatedAt.Equal(q.After.CreatedAt) && o.ID >= q.After.ID {
				continue
			}
		}
		cp := *o
		out = append(out, &cp)
	}
	sortOrdersNewestFirst(out)
	return truncateOrders(out, q.Limit), nil
}

func (m *MemoryStore) CreateBid(ctx context.Context, bid *Bid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *bid
	m.bids[bid.ID] = &cp
	return nil
}

func (m *MemoryStore) GetBid(ctx context.Context, id string) (*Bid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bid, ok := m.bids[id]
	if !ok {
		return nil, ErrBidNotFound
	}
	cp := *bid
	return &cp, nil
}

func (m *MemoryStore) UpdateBid(ctx context.Context, bid *Bid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bids[bid.ID]; !ok {
		return ErrBidNotFound
	}
	cp := *bid
	m.bids[bid.ID] = &cp
	return nil
}

func (m *MemoryStore) ListBidsByOrder(ctx context.Context, orderID string, limit int) ([]*Bid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Bid
	for _, b := range m.bids {
		if b.OrderID == orderID {
			cp := *b
			out = append(out, &cp)
		}
	}
	sortBidsNewestFirst(out)
	return truncateBids(out, limit), nil
}

func (m *MemoryStore) ListBidsByProvider(ctx context.Context, providerID string, limit int) ([]*Bid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Bid
	for _, b := range m.bids {
		if b.ProviderID == providerID {
			cp := *b
			out = append(out, &cp)
		}
	}
	sortBidsNewestFirst(out)
	return truncateBids(out, limit), nil
}

func (m *MemoryStore) GetPendingBidByProviderAndOrder(ctx context.Context, providerID, orderID string) (*Bid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.bids {
		if b.ProviderID == providerID && b.OrderID == orderID && b.Status == BidStatusPending {
			cp := *b
			return &cp, nil
		}
	}
	return nil, ErrBidNotFound
}

func (m *MemoryStore) AcceptBid(ctx context.Context, orderID, bidID, providerID string) ([]*Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	if order.Status != OrderStatusPending {
		return nil, ErrOrderAlreadyMatched
	}
	winner, ok := m.bids[bidID]
	if !ok || winner.OrderID != orderID {
		return nil, ErrBidNotFound
	}

	now := time.Now()
	order.Status = OrderStatusAccepted
	order.AssignedProviderID = providerID
	order.AcceptedBidID = bidID
	order.UpdatedAt = now

	winner.Status = BidStatusAccepted
	winner.UpdatedAt = now

	var rejected []*Bid
	for _, b := range m.bids {
		if b.OrderID == orderID && b.ID != bidID && b.Status == BidStatusPending {
			b.Status = BidStatusRejected
			b.UpdatedAt = now
			cp := *b
			rejected = append(rejected, &cp)
		}
	}
	return rejected, nil
}

func (m *MemoryStore) RejectPendingBids(ctx context.Context, orderID string) ([]*Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var rejected []*Bid
	for _, b := range m.bids {
		if b.OrderID == orderID && b.Status == BidStatusPending {
			b.Status = BidStatusRejected
			b.UpdatedAt = now
			cp := *b
			rejected = append(rejected, &cp)
		}
	}
	return rejected, nil
}

func (m *MemoryStore) ExpireStaleBids(ctx context.Context, now time.Time, limit int) ([]*Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []*Bid
	for _, b := range m.bids {
		if limit > 0 && len(expired) >= limit {
			break
		}
		if b.Status != BidStatusPending || b.ExpiresAt == nil || b.ExpiresAt.After(now) {
			continue
		}
		order, ok := m.orders[b.OrderID]
		if !ok || order.Status != OrderStatusPending {
			continue
		}
		b.Status = BidStatusExpired
		b.UpdatedAt = now
		cp := *b
		expired = append(expired, &cp)
	}
	return expired, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sortOrdersNewestFirst(orders []*Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

func sortBidsNewestFirst(bids []*Bid) {
	sort.Slice(bids, func(i, j int) bool {
		return bids[i].CreatedAt.After(bids[j].CreatedAt)
	})
}

func truncateOrders(orders []*Order, limit int) []*Order {
	if limit > 0 && len(orders) > limit {
		return orders[:limit]
	}
	return orders
}

func truncateBids(bids []*Bid, limit int) []*Bid {
	if limit > 0 && len(bids) > limit {
		return bids[:limit]
	}
	return bids
}
