package matching

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixmarket/fixmarket/internal/testutil"
)

func pgOrder(customerID string) *Order {
	now := time.Now().UTC()
	return &Order{
		ID:         fmt.Sprintf("ord_%d", now.UnixNano()),
		CustomerID: customerID,
		CategoryID: "plumbing",
		Title:      "Fix leaking sink",
		Budget:     "150.00",
		City:       "Springfield",
		Status:     OrderStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func pgBid(orderID, providerID string) *Bid {
	now := time.Now().UTC()
	expires := now.Add(DefaultBidTTL)
	return &Bid{
		ID:         fmt.Sprintf("bid_%s_%d", providerID, now.UnixNano()),
		OrderID:    orderID,
		ProviderID: providerID,
		Amount:     "95.50",
		ETAMinutes: 30,
		Status:     BidStatusPending,
		ExpiresAt:  &expires,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestPostgresOrderRoundTrip(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)
	ctx := context.Background()

	_, err := store.GetOrder(ctx, "ord_missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	order := pgOrder("cust_1")
	require.NoError(t, store.CreateOrder(ctx, order))

	got, err := store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.CustomerID, got.CustomerID)
	assert.Equal(t, "150.00", got.Budget)
	assert.Equal(t, OrderStatusPending, got.Status)
	assert.WithinDuration(t, order.CreatedAt, got.CreatedAt, time.Second)
}

func TestPostgresUpdateOrderStatus(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)
	ctx := context.Background()

	order := pgOrder("cust_1")
	require.NoError(t, store.CreateOrder(ctx, order))

	err := store.UpdateOrderStatus(ctx, order.ID, OrderStatusInProgress, OrderStatusCompleted)
	assert.ErrorIs(t, err, ErrOrderNotPending)

	err = store.UpdateOrderStatus(ctx, "ord_missing", OrderStatusPending, OrderStatusCancelled)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	require.NoError(t, store.UpdateOrderStatus(ctx, order.ID, OrderStatusPending, OrderStatusCancelled))
	got, err := store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusCancelled, got.Status)
}

func TestPostgresAcceptBid(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)
	ctx := context.Background()

	order := pgOrder("cust_1")
	require.NoError(t, store.CreateOrder(ctx, order))
	winner := pgBid(order.ID, "prov_1")
	loser := pgBid(order.ID, "prov_2")
	require.NoError(t, store.CreateBid(ctx, winner))
	require.NoError(t, store.CreateBid(ctx, loser))

	rejected, err := store.AcceptBid(ctx, order.ID, winner.ID, winner.ProviderID)
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, loser.ID, rejected[0].ID)
	assert.Equal(t, BidStatusRejected, rejected[0].Status)

	got, err := store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusAccepted, got.Status)
	assert.Equal(t, "prov_1", got.AssignedProviderID)
	assert.Equal(t, winner.ID, got.AcceptedBidID)

	gotBid, err := store.GetBid(ctx, winner.ID)
	require.NoError(t, err)
	assert.Equal(t, BidStatusAccepted, gotBid.Status)

	// The claim is conditional on status=pending: a second accept loses.
	_, err = store.AcceptBid(ctx, order.ID, loser.ID, loser.ProviderID)
	assert.ErrorIs(t, err, ErrOrderAlreadyMatched)
}

func TestPostgresPendingBidLookup(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)
	ctx := context.Background()

	order := pgOrder("cust_1")
	require.NoError(t, store.CreateOrder(ctx, order))

	_, err := store.GetPendingBidByProviderAndOrder(ctx, "prov_1", order.ID)
	assert.ErrorIs(t, err, ErrBidNotFound)

	bid := pgBid(order.ID, "prov_1")
	require.NoError(t, store.CreateBid(ctx, bid))

	got, err := store.GetPendingBidByProviderAndOrder(ctx, "prov_1", order.ID)
	require.NoError(t, err)
	assert.Equal(t, bid.ID, got.ID)
	assert.Equal(t, 30, got.ETAMinutes)

	// A withdrawn bid no longer matches.
	bid.Status = BidStatusWithdrawn
	bid.UpdatedAt = time.Now().UTC()
	require.NoError(t, store.UpdateBid(ctx, bid))
	_, err = store.GetPendingBidByProviderAndOrder(ctx, "prov_1", order.ID)
	assert.ErrorIs(t, err, ErrBidNotFound)
}

func TestPostgresExpireStaleBids(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)
	ctx := context.Background()

	open := pgOrder("cust_1")
	require.NoError(t, store.CreateOrder(ctx, open))
	matched := pgOrder("cust_2")
	matched.ID += "_m"
	require.NoError(t, store.CreateOrder(ctx, matched))

	past := time.Now().UTC().Add(-time.Hour)
	stale := pgBid(open.ID, "prov_1")
	stale.ExpiresAt = &past
	require.NoError(t, store.CreateBid(ctx, stale))
	fresh := pgBid(open.ID, "prov_2")
	require.NoError(t, store.CreateBid(ctx, fresh))

	winning := pgBid(matched.ID, "prov_3")
	require.NoError(t, store.CreateBid(ctx, winning))
	staleOnMatched := pgBid(matched.ID, "prov_4")
	staleOnMatched.ExpiresAt = &past
	require.NoError(t, store.CreateBid(ctx, staleOnMatched))
	_, err := store.AcceptBid(ctx, matched.ID, winning.ID, winning.ProviderID)
	require.NoError(t, err)

	// staleOnMatched was rejected by the accept; insert another past-due
	// pending bid on the matched order to prove the join skips it.
	late := pgBid(matched.ID, "prov_5")
	late.ExpiresAt = &past
	require.NoError(t, store.CreateBid(ctx, late))

	expired, err := store.ExpireStaleBids(ctx, time.Now().UTC(), 100)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, stale.ID, expired[0].ID)
	assert.Equal(t, BidStatusExpired, expired[0].Status)

	got, err := store.GetBid(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, BidStatusPending, got.Status)
}

func TestPostgresAvailableOrdersFeed(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)
	ctx := context.Background()

	// Postgres stores microseconds; truncate so the cursor comparison is exact.
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond)
	mk := func(id, customer, category, city string, offset time.Duration) *Order {
		o := pgOrder(customer)
		o.ID = id
		o.CategoryID = category
		o.City = city
		o.CreatedAt = base.Add(offset)
		o.UpdatedAt = o.CreatedAt
		require.NoError(t, store.CreateOrder(ctx, o))
		return o
	}

	mk("ord_a", "cust_1", "plumbing", "Springfield", 0)
	mk("ord_b", "cust_1", "cleaning", "Springfield", time.Minute)
	mk("ord_c", "cust_2", "plumbing", "Shelbyville", 2*time.Minute)
	mk("ord_own", "prov_1", "plumbing", "Springfield", 3*time.Minute)
	bidOn := mk("ord_d", "cust_2", "plumbing", "Springfield", 4*time.Minute)
	require.NoError(t, store.CreateBid(ctx, pgBid(bidOn.ID, "prov_1")))

	// Own orders and already-bid orders are excluded.
	orders, err := store.ListAvailableOrders(ctx, AvailableOrdersQuery{ProviderID: "prov_1"})
	require.NoError(t, err)
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	assert.ElementsMatch(t, []string{"ord_a", "ord_b", "ord_c"}, ids)

	// Newest first.
	require.Len(t, orders, 3)
	assert.Equal(t, "ord_c", orders[0].ID)

	// Category and city filters.
	orders, err = store.ListAvailableOrders(ctx, AvailableOrdersQuery{
		ProviderID: "prov_1", CategoryID: "plumbing", City: "Springfield",
	})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "ord_a", orders[0].ID)

	// A registered-offerings set restricts the feed when no explicit
	// category filter is given.
	orders, err = store.ListAvailableOrders(ctx, AvailableOrdersQuery{
		ProviderID: "prov_1", Categories: []string{"cleaning"},
	})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "ord_b", orders[0].ID)

	// Visibility delay hides everything younger than MaxAge.
	orders, err = store.ListAvailableOrders(ctx, AvailableOrdersQuery{
		ProviderID: "prov_1", MaxAge: 2 * time.Hour,
	})
	require.NoError(t, err)
	assert.Empty(t, orders)

	// Keyset pagination resumes below the cursor.
	orders, err = store.ListAvailableOrders(ctx, AvailableOrdersQuery{
		ProviderID: "prov_1",
		After:      &FeedCursor{CreatedAt: base.Add(2 * time.Minute), ID: "ord_c"},
	})
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "ord_b", orders[0].ID)
	assert.Equal(t, "ord_a", orders[1].ID)
}

func TestPostgresListBids(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)
	ctx := context.Background()

	order := pgOrder("cust_1")
	require.NoError(t, store.CreateOrder(ctx, order))
	require.NoError(t, store.CreateBid(ctx, pgBid(order.ID, "prov_1")))
	require.NoError(t, store.CreateBid(ctx, pgBid(order.ID, "prov_2")))

	bids, err := store.ListBidsByOrder(ctx, order.ID, 10)
	require.NoError(t, err)
	assert.Len(t, bids, 2)
	assert.Equal(t, "95.50", bids[0].Amount)

	bids, err = store.ListBidsByProvider(ctx, "prov_1", 10)
	require.NoError(t, err)
	require.Len(t, bids, 1)
	assert.Equal(t, order.ID, bids[0].OrderID)
}
