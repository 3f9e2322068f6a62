package matching

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/lib/pq"
)

// PostgresStore persists orders and bids in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed matching store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

// orderColumns is the SELECT column list for orders.
const orderColumns = `id, customer_id, category_id, title, description,
	budget, city, status, assigned_provider_id, accepted_bid_id,
	created_at, updated_at`

// bidColumns is the SELECT column list for bids.
const bidColumns = `id, order_id, provider_id, amount, comment,
	eta_minutes, status, expires_at, created_at, updated_at`

// --- Order operations ---

func (p *PostgresStore) CreateOrder(ctx context.Context, order *Order) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO orders (
			id, customer_id, category_id, title, description,
			budget, city, status, assigned_provider_id, accepted_bid_id,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6::NUMERIC(12,2), $7, $8, $9, $10,
			$11, $12
		)`,
		order.ID, order.CustomerID, order.CategoryID, order.Title, nullStr(order.Description),
		nullStr(order.Budget), nullStr(order.City), string(order.Status),
		nullStr(order.AssignedProviderID), nullStr(order.AcceptedBidID),
		order.CreatedAt, order.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) GetOrder(ctx context.Context, id string) (*Order, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)

	order, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	return order, err
}

func (p *PostgresStore) UpdateOrder(ctx context.Context, order *Order) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE orders SET
			status = $1, assigned_provider_id = $2, accepted_bid_id = $3,
			updated_at = $4
		WHERE id = $5`,
		string(order.Status), nullStr(order.AssignedProviderID), nullStr(order.AcceptedBidID),
		order.UpdatedAt, order.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// UpdateOrderStatus performs a conditional status transition. The WHERE
// clause on the current status is what makes concurrent transitions safe:
// only one caller can win a given transition.
func (p *PostgresStore) UpdateOrderStatus(ctx context.Context, id string, from, to OrderStatus) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		string(to), id, string(from),
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// Distinguish missing order from wrong state.
		var exists bool
		if err := p.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrOrderNotFound
		}
		return ErrOrderNotPending
	}
	return nil
}

func (p *PostgresStore) ListOrdersByCustomer(ctx context.Context, customerID string, limit int) ([]*Order, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE customer_id = $1
		 ORDER BY created_at DESC LIMIT $2`, customerID, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanOrders(rows)
}

func (p *PostgresStore) ListOrdersByProvider(ctx context.Context, providerID string, limit int) ([]*Order, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE assigned_provider_id = $1
		 ORDER BY created_at DESC LIMIT $2`, providerID, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanOrders(rows)
}

func (p *PostgresStore) ListAvailableOrders(ctx context.Context, q AvailableOrdersQuery) ([]*Order, error) {
	query := `
		SELECT ` + orderColumns + ` FROM orders o
		WHERE o.status = 'pending'
		  AND o.customer_id <> $1
		  AND NOT EXISTS (
			SELECT 1 FROM bids b
			WHERE b.order_id = o.id AND b.provider_id = $1 AND b.status = 'pending'
		  )`

	args := []interface{}{q.ProviderID}
	idx := 2

	if q.MaxAge > 0 {
		query += ` AND o.created_at <= NOW() - ($` + strconv.Itoa(idx) + ` * INTERVAL '1 second')`
		args = append(args, int64(q.MaxAge.Seconds()))
		idx++
	}
	if q.CategoryID != "" {
		query += ` AND o.category_id = $` + strconv.Itoa(idx)
		args = append(args, q.CategoryID)
		idx++
	} else if len(q.Categories) > 0 {
		query += ` AND o.category_id = ANY($` + strconv.Itoa(idx) + `)`
		args = append(args, pq.Array(q.Categories))
		idx++
	}
	if q.City != "" {
		query += ` AND o.city = $` + strconv.Itoa(idx)
		args = append(args, q.City)
		idx++
	}
	if q.After != nil {
		query += ` AND (o.created_at, o.id) < ($` + strconv.Itoa(idx) + `, $` + strconv.Itoa(idx+1) + `)`
		args = append(args, q.After.CreatedAt, q.After.ID)
		idx += 2
	}

	query += ` ORDER BY o.created_at DESC, o.id DESC LIMIT $` + strconv.Itoa(idx)
	limit := q.Limit
	if limit <= 0 || limit > FeedPageSize {
		limit = FeedPageSize
	}
	args = append(args, limit)

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanOrders(rows)
}

// --- Bid operations ---

func (p *PostgresStore) CreateBid(ctx context.Context, bid *Bid) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO bids (
			id, order_id, provider_id, amount, comment,
			eta_minutes, status, expires_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4::NUMERIC(12,2), $5,
			$6, $7, $8, $9, $10
		)`,
		bid.ID, bid.OrderID, bid.ProviderID, bid.Amount, nullStr(bid.Comment),
		bid.ETAMinutes, string(bid.Status), nullTime(bid.ExpiresAt), bid.CreatedAt, bid.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) GetBid(ctx context.Context, id string) (*Bid, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+bidColumns+` FROM bids WHERE id = $1`, id)

	bid, err := scanBid(row)
	if err == sql.ErrNoRows {
		return nil, ErrBidNotFound
	}
	return bid, err
}

func (p *PostgresStore) UpdateBid(ctx context.Context, bid *Bid) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE bids SET status = $1, updated_at = $2 WHERE id = $3`,
		string(bid.Status), bid.UpdatedAt, bid.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrBidNotFound
	}
	return nil
}

func (p *PostgresStore) ListBidsByOrder(ctx context.Context, orderID string, limit int) ([]*Bid, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+bidColumns+` FROM bids
		 WHERE order_id = $1
		 ORDER BY created_at DESC LIMIT $2`, orderID, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanBids(rows)
}

func (p *PostgresStore) ListBidsByProvider(ctx context.Context, providerID string, limit int) ([]*Bid, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+bidColumns+` FROM bids
		 WHERE provider_id = $1
		 ORDER BY created_at DESC LIMIT $2`, providerID, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanBids(rows)
}

func (p *PostgresStore) GetPendingBidByProviderAndOrder(ctx context.Context, providerID, orderID string) (*Bid, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+bidColumns+` FROM bids
		 WHERE provider_id = $1 AND order_id = $2 AND status = 'pending'
		 LIMIT 1`, providerID, orderID)

	bid, err := scanBid(row)
	if err == sql.ErrNoRows {
		return nil, ErrBidNotFound
	}
	return bid, err
}

// AcceptBid claims the order with a conditional update and settles every
// bid on it in one transaction. The RowsAffected check on the order claim
// is the concurrency guard: of two racing accepts, the second sees zero
// rows updated and gets ErrOrderAlreadyMatched.
func (p *PostgresStore) AcceptBid(ctx context.Context, orderID, bidID, providerID string) ([]*Bid, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()

	result, err := tx.ExecContext(ctx, `
		UPDATE orders SET
			status = 'accepted', assigned_provider_id = $1,
			accepted_bid_id = $2, updated_at = $3
		WHERE id = $4 AND status = 'pending'`,
		providerID, bidID, now, orderID,
	)
	if err != nil {
		return nil, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrOrderAlreadyMatched
	}

	result, err = tx.ExecContext(ctx, `
		UPDATE bids SET status = 'accepted', updated_at = $1
		WHERE id = $2 AND order_id = $3 AND status = 'pending'`,
		now, bidID, orderID,
	)
	if err != nil {
		return nil, err
	}
	rows, err = result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrBidNotFound
	}

	rejRows, err := tx.QueryContext(ctx, `
		UPDATE bids SET status = 'rejected', updated_at = $1
		WHERE order_id = $2 AND id <> $3 AND status = 'pending'
		RETURNING `+bidColumns, now, orderID, bidID)
	if err != nil {
		return nil, err
	}
	rejected, err := scanBids(rejRows)
	_ = rejRows.Close()
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rejected, nil
}

func (p *PostgresStore) RejectPendingBids(ctx context.Context, orderID string) ([]*Bid, error) {
	rows, err := p.db.QueryContext(ctx, `
		UPDATE bids SET status = 'rejected', updated_at = NOW()
		WHERE order_id = $1 AND status = 'pending'
		RETURNING `+bidColumns, orderID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanBids(rows)
}

// ExpireStaleBids only touches bids whose order is still pending; bids on
// matched or closed orders were settled by the accept or cancel path.
func (p *PostgresStore) ExpireStaleBids(ctx context.Context, now time.Time, limit int) ([]*Bid, error) {
	rows, err := p.db.QueryContext(ctx, `
		UPDATE bids SET status = 'expired', updated_at = $1
		WHERE id IN (
			SELECT b.id FROM bids b
			JOIN orders o ON o.id = b.order_id
			WHERE b.status = 'pending'
			  AND b.expires_at IS NOT NULL AND b.expires_at < $1
			  AND o.status = 'pending'
			LIMIT $2
		)
		RETURNING `+bidColumns, now, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanBids(rows)
}

// --- Scan helpers ---

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(s scanner) (*Order, error) {
	o := &Order{}
	var status string
	var description, budget, city, providerID, bidID sql.NullString
	err := s.Scan(
		&o.ID, &o.CustomerID, &o.CategoryID, &o.Title, &description,
		&budget, &city, &status, &providerID, &bidID,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Description = description.String
	o.Budget = budget.String
	o.City = city.String
	o.Status = OrderStatus(status)
	o.AssignedProviderID = providerID.String
	o.AcceptedBidID = bidID.String
	return o, nil
}

func scanOrders(rows *sql.Rows) ([]*Order, error) {
	var result []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func scanBid(s scanner) (*Bid, error) {
	b := &Bid{}
	var status string
	var comment sql.NullString
	var expiresAt sql.NullTime
	err := s.Scan(
		&b.ID, &b.OrderID, &b.ProviderID, &b.Amount, &comment,
		&b.ETAMinutes, &status, &expiresAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Comment = comment.String
	b.Status = BidStatus(status)
	if expiresAt.Valid {
		t := expiresAt.Time
		b.ExpiresAt = &t
	}
	return b, nil
}

func scanBids(rows *sql.Rows) ([]*Bid, error) {
	var result []*Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}
