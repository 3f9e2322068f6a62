package matching

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalog struct {
	categories map[string]bool
	offerings  map[string][]string
}

func (c *stubCatalog) CategoryExists(ctx context.Context, categoryID string) (bool, error) {
	return c.categories[categoryID], nil
}

func (c *stubCatalog) ServicesOfferedBy(ctx context.Context, providerID string) ([]string, error) {
	return c.offerings[providerID], nil
}

type stubReputation struct {
	mu            sync.Mutex
	blocked       map[string]bool
	delays        map[string]time.Duration
	completions   []string
	cancellations []string
	bids          []string
	acceptedBids  []string
}

func newStubReputation() *stubReputation {
	return &stubReputation{
		blocked: make(map[string]bool),
		delays:  make(map[string]time.Duration),
	}
}

func (r *stubReputation) IsBlocked(ctx context.Context, providerID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.blocked[providerID], nil
}

func (r *stubReputation) VisibilityDelay(ctx context.Context, providerID string) (time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.delays[providerID], nil
}

func (r *stubReputation) RecordCompletion(ctx context.Context, providerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completions = append(r.completions, providerID)
	return nil
}

func (r *stubReputation) RecordCancellation(ctx context.Context, providerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancellations = append(r.cancellations, providerID)
	return nil
}

func (r *stubReputation) RecordBid(ctx context.Context, providerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bids = append(r.bids, providerID)
	return nil
}

func (r *stubReputation) RecordBidAccepted(ctx context.Context, providerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acceptedBids = append(r.acceptedBids, providerID)
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) record(event string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) count(event string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e == event {
			c++
		}
	}
	return c
}

func (n *recordingNotifier) OrderCreated(order *Order)                     { n.record("order_created") }
func (n *recordingNotifier) OrderCompleted(order *Order)                   { n.record("order_completed") }
func (n *recordingNotifier) OrderCancelled(order *Order, providerID string) { n.record("order_cancelled") }
func (n *recordingNotifier) BidSubmitted(order *Order, bid *Bid)           { n.record("bid_submitted") }
func (n *recordingNotifier) BidAccepted(order *Order, bid *Bid)            { n.record("bid_accepted") }
func (n *recordingNotifier) BidRejected(order *Order, bid *Bid)            { n.record("bid_rejected") }
func (n *recordingNotifier) BidWithdrawn(order *Order, bid *Bid)           { n.record("bid_withdrawn") }
func (n *recordingNotifier) BidExpired(bid *Bid)                           { n.record("bid_expired") }

type testEnv struct {
	svc        *Service
	store      *MemoryStore
	catalog    *stubCatalog
	reputation *stubReputation
	notifier   *recordingNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := NewMemoryStore()
	cat := &stubCatalog{
		categories: map[string]bool{"plumbing": true, "cleaning": true},
		offerings:  make(map[string][]string),
	}
	rep := newStubReputation()
	n := &recordingNotifier{}
	svc := NewService(store, cat, rep).WithNotifier(n)
	return &testEnv{svc: svc, store: store, catalog: cat, reputation: rep, notifier: n}
}

func (e *testEnv) createOrder(t *testing.T, customerID string) *Order {
	t.Helper()
	order, err := e.svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: customerID,
		CategoryID: "plumbing",
		Title:      "Fix leaking kitchen sink",
		Budget:     "150.00",
		City:       "Springfield",
	})
	require.NoError(t, err)
	return order
}

func (e *testEnv) submitBid(t *testing.T, orderID, providerID, amount string) *Bid {
	t.Helper()
	bid, err := e.svc.SubmitBid(context.Background(), orderID, SubmitBidRequest{
		ProviderID: providerID,
		Amount:     amount,
	})
	require.NoError(t, err)
	return bid
}

func TestCreateOrder(t *testing.T) {
	env := newTestEnv(t)

	order := env.createOrder(t, "cust_1")
	assert.Equal(t, OrderStatusPending, order.Status)
	assert.Equal(t, "cust_1", order.CustomerID)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, 1, env.notifier.count("order_created"))

	got, err := env.svc.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
}

func TestCreateOrderValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  CreateOrderRequest
		want error
	}{
		{"empty title", CreateOrderRequest{CustomerID: "c", CategoryID: "plumbing", Title: "   "}, ErrInvalidInput},
		{"title too long", CreateOrderRequest{CustomerID: "c", CategoryID: "plumbing", Title: strings.Repeat("x", maxTitleLength+1)}, ErrInvalidInput},
		{"negative budget", CreateOrderRequest{CustomerID: "c", CategoryID: "plumbing", Title: "ok", Budget: "-5"}, ErrInvalidInput},
		{"non-numeric budget", CreateOrderRequest{CustomerID: "c", CategoryID: "plumbing", Title: "ok", Budget: "abc"}, ErrInvalidInput},
		{"unknown category", CreateOrderRequest{CustomerID: "c", CategoryID: "exorcism", Title: "ok"}, ErrUnknownCategory},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.CreateOrder(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestSubmitBid(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t, "cust_1")

	bid := env.submitBid(t, order.ID, "prov_1", "95.50")
	assert.Equal(t, BidStatusPending, bid.Status)
	require.NotNil(t, bid.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(DefaultBidTTL), *bid.ExpiresAt, time.Minute)
	assert.Equal(t, 1, env.notifier.count("bid_submitted"))
	assert.Equal(t, []string{"prov_1"}, env.reputation.bids)
}

func TestSubmitBidWithETA(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t, "cust_1")

	bid, err := env.svc.SubmitBid(ctx, order.ID, SubmitBidRequest{
		ProviderID: "prov_1",
		Amount:     "80",
		ETAMinutes: 45,
	})
	require.NoError(t, err)
	assert.Equal(t, 45, bid.ETAMinutes)

	got, err := env.svc.GetBid(ctx, bid.ID)
	require.NoError(t, err)
	assert.Equal(t, 45, got.ETAMinutes)

	_, err = env.svc.SubmitBid(ctx, order.ID, SubmitBidRequest{
		ProviderID: "prov_2",
		Amount:     "80",
		ETAMinutes: -5,
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSubmitBidRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t, "cust_1")
	env.reputation.blocked["prov_bad"] = true

	_, err := env.svc.SubmitBid(ctx, order.ID, SubmitBidRequest{ProviderID: "prov_1", Amount: "0"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.svc.SubmitBid(ctx, "ord_missing", SubmitBidRequest{ProviderID: "prov_1", Amount: "50"})
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = env.svc.SubmitBid(ctx, order.ID, SubmitBidRequest{ProviderID: "cust_1", Amount: "50"})
	assert.ErrorIs(t, err, ErrSelfBid)

	_, err = env.svc.SubmitBid(ctx, order.ID, SubmitBidRequest{ProviderID: "prov_bad", Amount: "50"})
	assert.ErrorIs(t, err, ErrProviderBlocked)

	env.submitBid(t, order.ID, "prov_1", "50")
	_, err = env.svc.SubmitBid(ctx, order.ID, SubmitBidRequest{ProviderID: "prov_1", Amount: "45"})
	assert.ErrorIs(t, err, ErrDuplicateBid)
}

func TestSubmitBidOnClosedOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t, "cust_1")
	bid := env.submitBid(t, order.ID, "prov_1", "80")

	_, _, err := env.svc.AcceptBid(ctx, order.ID, AcceptBidRequest{CustomerID: "cust_1", BidID: bid.ID})
	require.NoError(t, err)

	_, err = env.svc.SubmitBid(ctx, order.ID, SubmitBidRequest{ProviderID: "prov_2", Amount: "70"})
	assert.ErrorIs(t, err, ErrOrderNotBiddable)
}

func TestAcceptBid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t, "cust_1")
	winner := env.submitBid(t, order.ID, "prov_1", "80")
	loser := env.submitBid(t, order.ID, "prov_2", "90")

	gotOrder, gotBid, err := env.svc.AcceptBid(ctx, order.ID, AcceptBidRequest{CustomerID: "cust_1", BidID: winner.ID})
	require.NoError(t, err)
	assert.Equal(t, OrderStatusAccepted, gotOrder.Status)
	assert.Equal(t, "prov_1", gotOrder.AssignedProviderID)
	assert.Equal(t, winner.ID, gotOrder.AcceptedBidID)
	assert.Equal(t, BidStatusAccepted, gotBid.Status)

	rejected, err := env.svc.GetBid(ctx, loser.ID)
	require.NoError(t, err)
	assert.Equal(t, BidStatusRejected, rejected.Status)

	assert.Equal(t, 1, env.notifier.count("bid_accepted"))
	assert.Equal(t, 1, env.notifier.count("bid_rejected"))
	assert.Equal(t, []string{"prov_1"}, env.reputation.acceptedBids)
}

func TestAcceptBidRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t, "cust_1")
	other := env.createOrder(t, "cust_2")
	bid := env.submitBid(t, order.ID, "prov_1", "80")

	_, _, err := env.svc.AcceptBid(ctx, order.ID, AcceptBidRequest{CustomerID: "cust_2", BidID: bid.ID})
	assert.ErrorIs(t, err, ErrNotOwner)

	// Bid belongs to a different order.
	_, _, err = env.svc.AcceptBid(ctx, other.ID, AcceptBidRequest{CustomerID: "cust_2", BidID: bid.ID})
	assert.ErrorIs(t, err, ErrBidNotFound)

	_, _, err = env.svc.AcceptBid(ctx, order.ID, AcceptBidRequest{CustomerID: "cust_1", BidID: bid.ID})
	require.NoError(t, err)

	_, _, err = env.svc.AcceptBid(ctx, order.ID, AcceptBidRequest{CustomerID: "cust_1", BidID: bid.ID})
	assert.ErrorIs(t, err, ErrOrderAlreadyMatched)
}

func TestAcceptBidOnCancelledOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t, "cust_1")
	bid := env.submitBid(t, order.ID, "prov_1", "80")

	_, err := env.svc.CancelOrder(ctx, order.ID, CancelOrderRequest{CustomerID: "cust_1"})
	require.NoError(t, err)

	// A cancelled order was never matched; the accept must say so rather
	// than claim another bid won.
	_, _, err = env.svc.AcceptBid(ctx, order.ID, AcceptBidRequest{CustomerID: "cust_1", BidID: bid.ID})
	assert.ErrorIs(t, err, ErrOrderNotPending)
	assert.NotErrorIs(t, err, ErrOrderAlreadyMatched)
}

func TestAcceptExpiredBid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t, "cust_1")

	past := time.Now().Add(-time.Hour)
	stale := &Bid{
		ID:         "bid_stale",
		OrderID:    order.ID,
		ProviderID: "prov_1",
		Amount:     "60",
		Status:     BidStatusPending,
		ExpiresAt:  &past,
		CreatedAt:  past,
		UpdatedAt:  past,
	}
	require.NoError(t, env.store.CreateBid(ctx, stale))

	_, _, err := env.svc.AcceptBid(ctx, order.ID, AcceptBidRequest{CustomerID: "cust_1", BidID: stale.ID})
	assert.ErrorIs(t, err, ErrBidExpired)
}

func TestAcceptBidRace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t, "cust_1")

	const bidders = 8
	bids := make([]*Bid, bidders)
	for i := range bids {
		bids[i] = env.submitBid(t, order.ID, "prov_"+string(rune('a'+i)), "50")
	}

	var wg sync.WaitGroup
	errs := make([]error, bidders)
	for i := range bids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = env.svc.AcceptBid(ctx, order.ID, AcceptBidRequest{CustomerID: "cust_1", BidID: bids[i].ID})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.True(t, errors.Is(err, ErrOrderAlreadyMatched))
		}
	}
	assert.Equal(t, 1, wins)

	final, err := env.svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusAccepted, final.Status)
	assert.NotEmpty(t, final.AssignedProviderID)
}

func TestOrderLockRespectsContext(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t, "cust_1")
	bid := env.submitBid(t, order.ID, "prov_1", "80")

	// Hold the order lock so the accept has to wait, then let its
	// context expire while it waits.
	unlock, err := env.svc.locks.LockContext(context.Background(), order.ID)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _, err = env.svc.AcceptBid(ctx, order.ID, AcceptBidRequest{CustomerID: "cust_1", BidID: bid.ID})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()

	_, _, err = env.svc.AcceptBid(context.Background(), order.ID, AcceptBidRequest{CustomerID: "cust_1", BidID: bid.ID})
	require.NoError(t, err)
}

func TestWithdrawBid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t, "cust_1")
	bid := env.submitBid(t, order.ID, "prov_1", "80")

	_, err := env.svc.WithdrawBid(ctx, bid.ID, "prov_2")
	assert.ErrorIs(t, err, ErrNotOwner)

	withdrawn, err := env.svc.WithdrawBid(ctx, bid.ID, "prov_1")
	require.NoError(t, err)
	assert.Equal(t, BidStatusWithdrawn, withdrawn.Status)

	_, err = env.svc.WithdrawBid(ctx, bid.ID, "prov_1")
	assert.ErrorIs(t, err, ErrOrderClosed)

	// A withdrawn bid no longer counts as a duplicate.
	rebid := env.submitBid(t, order.ID, "prov_1", "75")
	assert.Equal(t, BidStatusPending, rebid.Status)
}

func TestOrderLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t, "cust_1")
	bid := env.submitBid(t, order.ID, "prov_1", "80")

	_, _, err := env.svc.AcceptBid(ctx, order.ID, AcceptBidRequest{CustomerID: "cust_1", BidID: bid.ID})
	require.NoError(t, err)

	_, err = env.svc.StartOrder(ctx, order.ID, "prov_2")
	assert.ErrorIs(t, err, ErrNotOwner)

	started, err := env.svc.StartOrder(ctx, order.ID, "prov_1")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusInProgress, started.Status)

	_, err = env.svc.CompleteOrder(ctx, order.ID, "prov_1")
	assert.ErrorIs(t, err, ErrNotOwner)

	completed, err := env.svc.CompleteOrder(ctx, order.ID, "cust_1")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusCompleted, completed.Status)
	assert.Equal(t, []string{"prov_1"}, env.reputation.completions)
	assert.Equal(t, 1, env.notifier.count("order_completed"))

	_, err = env.svc.CompleteOrder(ctx, order.ID, "cust_1")
	assert.ErrorIs(t, err, ErrOrderNotPending)
}

func TestCancelOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.createOrder(t, "cust_1")
	bid := env.submitBid(t, order.ID, "prov_1", "80")

	_, err := env.svc.CancelOrder(ctx, order.ID, CancelOrderRequest{CustomerID: "cust_2"})
	assert.ErrorIs(t, err, ErrNotOwner)

	cancelled, err := env.svc.CancelOrder(ctx, order.ID, CancelOrderRequest{CustomerID: "cust_1", Reason: "changed plans"})
	require.NoError(t, err)
	assert.Equal(t, OrderStatusCancelled, cancelled.Status)

	rejected, err := env.svc.GetBid(ctx, bid.ID)
	require.NoError(t, err)
	assert.Equal(t, BidStatusRejected, rejected.Status)
	assert.Equal(t, 1, env.notifier.count("order_cancelled"))
	assert.Equal(t, 1, env.notifier.count("bid_rejected"))

	_, err = env.svc.CancelOrder(ctx, order.ID, CancelOrderRequest{CustomerID: "cust_1"})
	assert.ErrorIs(t, err, ErrOrderClosed)
}

func TestExpireStaleBids(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	open := env.createOrder(t, "cust_1")
	matched := env.createOrder(t, "cust_2")

	past := time.Now().Add(-time.Hour)
	staleOnOpen := &Bid{
		ID: "bid_stale_open", OrderID: open.ID, ProviderID: "prov_1",
		Amount: "50", Status: BidStatusPending, ExpiresAt: &past,
		CreatedAt: past, UpdatedAt: past,
	}
	require.NoError(t, env.store.CreateBid(ctx, staleOnOpen))

	fresh := env.submitBid(t, open.ID, "prov_2", "60")

	winning := env.submitBid(t, matched.ID, "prov_3", "70")
	_, _, err := env.svc.AcceptBid(ctx, matched.ID, AcceptBidRequest{CustomerID: "cust_2", BidID: winning.ID})
	require.NoError(t, err)

	// A stale deadline on a matched order must be left alone.
	staleOnMatched := &Bid{
		ID: "bid_stale_matched", OrderID: matched.ID, ProviderID: "prov_4",
		Amount: "55", Status: BidStatusPending, ExpiresAt: &past,
		CreatedAt: past, UpdatedAt: past,
	}
	require.NoError(t, env.store.CreateBid(ctx, staleOnMatched))

	n, err := env.svc.ExpireStaleBids(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, env.notifier.count("bid_expired"))

	got, err := env.svc.GetBid(ctx, staleOnOpen.ID)
	require.NoError(t, err)
	assert.Equal(t, BidStatusExpired, got.Status)

	got, err = env.svc.GetBid(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, BidStatusPending, got.Status)

	got, err = env.svc.GetBid(ctx, staleOnMatched.ID)
	require.NoError(t, err)
	assert.Equal(t, BidStatusPending, got.Status)
}

func TestAvailableOrders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	own := env.createOrder(t, "prov_1") // provider's own order
	open := env.createOrder(t, "cust_1")
	bidOn := env.createOrder(t, "cust_2")
	env.submitBid(t, bidOn.ID, "prov_1", "40")

	orders, err := env.svc.AvailableOrders(ctx, AvailableOrdersQuery{ProviderID: "prov_1"})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, open.ID, orders[0].ID)
	assert.NotEqual(t, own.ID, orders[0].ID)
}

func TestAvailableOrdersBlockedProvider(t *testing.T) {
	env := newTestEnv(t)
	env.createOrder(t, "cust_1")
	env.reputation.blocked["prov_1"] = true

	orders, err := env.svc.AvailableOrders(context.Background(), AvailableOrdersQuery{ProviderID: "prov_1"})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestAvailableOrdersVisibilityDelay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createOrder(t, "cust_1")
	env.reputation.delays["prov_slow"] = time.Hour

	// A fresh order is hidden from a delayed provider but visible to an
	// undelayed one.
	orders, err := env.svc.AvailableOrders(ctx, AvailableOrdersQuery{ProviderID: "prov_slow"})
	require.NoError(t, err)
	assert.Empty(t, orders)

	orders, err = env.svc.AvailableOrders(ctx, AvailableOrdersQuery{ProviderID: "prov_fast"})
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestAvailableOrdersDefaultToOfferedServices(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	plumbing := env.createOrder(t, "cust_1")
	cleaning, err := env.svc.CreateOrder(ctx, CreateOrderRequest{
		CustomerID: "cust_1",
		CategoryID: "cleaning",
		Title:      "Deep clean two-bedroom flat",
	})
	require.NoError(t, err)

	env.catalog.offerings["prov_cleaner"] = []string{"cleaning"}

	// No explicit filter: the feed narrows to the provider's offerings.
	orders, err := env.svc.AvailableOrders(ctx, AvailableOrdersQuery{ProviderID: "prov_cleaner"})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, cleaning.ID, orders[0].ID)

	// An explicit category filter overrides the registered offerings.
	orders, err = env.svc.AvailableOrders(ctx, AvailableOrdersQuery{ProviderID: "prov_cleaner", CategoryID: "plumbing"})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, plumbing.ID, orders[0].ID)

	// Unregistered providers see everything.
	orders, err = env.svc.AvailableOrders(ctx, AvailableOrdersQuery{ProviderID: "prov_any"})
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestAvailableOrdersPageCap(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < FeedPageSize+5; i++ {
		env.createOrder(t, "cust_1")
	}

	orders, err := env.svc.AvailableOrders(context.Background(), AvailableOrdersQuery{ProviderID: "prov_1", Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, orders, FeedPageSize)
}

func TestBidTTLOverride(t *testing.T) {
	env := newTestEnv(t)
	env.svc.WithBidTTL(time.Hour)
	order := env.createOrder(t, "cust_1")

	bid := env.submitBid(t, order.ID, "prov_1", "50")
	require.NotNil(t, bid.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *bid.ExpiresAt, time.Minute)
}
