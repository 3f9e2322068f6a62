package reputation

import (
	"context"
	"database/sql"
	"time"
)

// PostgresStore persists reputation data in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed reputation store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

// repColumns is the SELECT column list for provider reputations.
const repColumns = `provider_id, avg_rating, review_count, completed_orders,
	cancelled_orders, total_bids, accepted_bids, acceptance_rate,
	consecutive_low_ratings, blocked, blocked_until,
	offense_count, updated_at`

func (p *PostgresStore) GetReputation(ctx context.Context, providerID string) (*ProviderReputation, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+repColumns+` FROM provider_reputations WHERE provider_id = $1`, providerID)

	rep, err := scanReputation(row)
	if err == sql.ErrNoRows {
		return nil, ErrProviderNotFound
	}
	return rep, err
}

func (p *PostgresStore) UpsertReputation(ctx context.Context, rep *ProviderReputation) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO provider_reputations (
			provider_id, avg_rating, review_count, completed_orders,
			cancelled_orders, total_bids, accepted_bids, acceptance_rate,
			consecutive_low_ratings, blocked, blocked_until,
			offense_count, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (provider_id) DO UPDATE SET
			avg_rating = EXCLUDED.avg_rating,
			review_count = EXCLUDED.review_count,
			completed_orders = EXCLUDED.completed_orders,
			cancelled_orders = EXCLUDED.cancelled_orders,
			total_bids = EXCLUDED.total_bids,
			accepted_bids = EXCLUDED.accepted_bids,
			acceptance_rate = EXCLUDED.acceptance_rate,
			consecutive_low_ratings = EXCLUDED.consecutive_low_ratings,
			blocked = EXCLUDED.blocked,
			blocked_until = EXCLUDED.blocked_until,
			offense_count = EXCLUDED.offense_count,
			updated_at = EXCLUDED.updated_at`,
		rep.ProviderID, rep.AvgRating, rep.ReviewCount, rep.CompletedOrders,
		rep.CancelledOrders, rep.TotalBids, rep.AcceptedBids, rep.AcceptanceRate,
		rep.ConsecutiveLowRatings, rep.Blocked, nullTimePtr(rep.BlockedUntil),
		rep.OffenseCount, rep.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) ListSweepCandidates(ctx context.Context, minReviews, limit int) ([]*ProviderReputation, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+repColumns+` FROM provider_reputations
		 WHERE blocked = FALSE AND review_count >= $1
		 ORDER BY avg_rating ASC
		 LIMIT $2`, minReviews, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanReputations(rows)
}

func (p *PostgresStore) ListRated(ctx context.Context, limit int) ([]*ProviderReputation, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+repColumns+` FROM provider_reputations
		 WHERE review_count > 0
		 ORDER BY provider_id
		 LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanReputations(rows)
}

func (p *PostgresStore) CreateReview(ctx context.Context, review *Review) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO reviews (id, order_id, customer_id, provider_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		review.ID, review.OrderID, review.CustomerID, review.ProviderID,
		review.Rating, nullStr(review.Comment), review.CreatedAt,
	)
	return err
}

func (p *PostgresStore) ListReviewsByProvider(ctx context.Context, providerID string, limit int) ([]*Review, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, order_id, customer_id, provider_id, rating, comment, created_at
		FROM reviews
		WHERE provider_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, providerID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Review
	for rows.Next() {
		r := &Review{}
		var comment sql.NullString
		if err := rows.Scan(&r.ID, &r.OrderID, &r.CustomerID, &r.ProviderID,
			&r.Rating, &comment, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Comment = comment.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresStore) AppendBlockHistory(ctx context.Context, entry *BlockHistoryEntry) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO provider_block_history (id, provider_id, action, reason, block_type, duration, blocked_until, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.ProviderID, string(entry.Action), entry.Reason,
		nullStr(entry.BlockType), nullStr(entry.Duration), nullTimePtr(entry.BlockedUntil),
		entry.Actor, entry.CreatedAt,
	)
	return err
}

func (p *PostgresStore) ListBlockHistory(ctx context.Context, providerID string, limit int) ([]*BlockHistoryEntry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, provider_id, action, reason, block_type, duration, blocked_until, actor, created_at
		FROM provider_block_history
		WHERE provider_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, providerID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*BlockHistoryEntry
	for rows.Next() {
		e := &BlockHistoryEntry{}
		var action string
		var blockType, duration sql.NullString
		var blockedUntil sql.NullTime
		if err := rows.Scan(&e.ID, &e.ProviderID, &action, &e.Reason,
			&blockType, &duration, &blockedUntil, &e.Actor, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Action = HistoryAction(action)
		e.BlockType = blockType.String
		e.Duration = duration.String
		if blockedUntil.Valid {
			t := blockedUntil.Time
			e.BlockedUntil = &t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *PostgresStore) LastActionAt(ctx context.Context, providerID string, action HistoryAction, reason string) (*time.Time, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT created_at FROM provider_block_history
		WHERE provider_id = $1 AND action = $2 AND reason = $3
		ORDER BY created_at DESC
		LIMIT 1`, providerID, string(action), reason)

	var t time.Time
	err := row.Scan(&t)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (p *PostgresStore) SaveSnapshots(ctx context.Context, snaps []*RatingSnapshot) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO provider_rating_history (provider_id, avg_rating, review_count, created_at)
		VALUES ($1, $2, $3, $4)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, s := range snaps {
		if _, err := stmt.ExecContext(ctx, s.ProviderID, s.AvgRating, s.ReviewCount, s.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *PostgresStore) SnapshotAt(ctx context.Context, providerID string, at time.Time) (*RatingSnapshot, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, provider_id, avg_rating, review_count, created_at
		FROM provider_rating_history
		WHERE provider_id = $1 AND created_at <= $2
		ORDER BY created_at DESC
		LIMIT 1`, providerID, at)

	s := &RatingSnapshot{}
	err := row.Scan(&s.ID, &s.ProviderID, &s.AvgRating, &s.ReviewCount, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (p *PostgresStore) ListSnapshots(ctx context.Context, providerID string, limit int) ([]*RatingSnapshot, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, provider_id, avg_rating, review_count, created_at
		FROM provider_rating_history
		WHERE provider_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, providerID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*RatingSnapshot
	for rows.Next() {
		s := &RatingSnapshot{}
		if err := rows.Scan(&s.ID, &s.ProviderID, &s.AvgRating, &s.ReviewCount, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// --- Scan helpers ---

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanReputation(s scanner) (*ProviderReputation, error) {
	rep := &ProviderReputation{}
	var blockedUntil sql.NullTime
	err := s.Scan(
		&rep.ProviderID, &rep.AvgRating, &rep.ReviewCount, &rep.CompletedOrders,
		&rep.CancelledOrders, &rep.TotalBids, &rep.AcceptedBids, &rep.AcceptanceRate,
		&rep.ConsecutiveLowRatings, &rep.Blocked, &blockedUntil,
		&rep.OffenseCount, &rep.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if blockedUntil.Valid {
		t := blockedUntil.Time
		rep.BlockedUntil = &t
	}
	return rep, nil
}

func scanReputations(rows *sql.Rows) ([]*ProviderReputation, error) {
	var out []*ProviderReputation
	for rows.Next() {
		rep, err := scanReputation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
