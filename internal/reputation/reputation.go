// Package reputation implements provider reputation, priority tiers and
// the block policy for the marketplace.
//
// Reputation is built from review and order outcomes:
// - Average rating and review count
// - Completed vs cancelled orders
// - Consecutive low ratings (streak of reviews below 3)
//
// The reputation feeds two gates on the matching side: blocked providers
// cannot bid, and each priority tier delays when new orders become
// visible to the provider. Low-rated providers are blocked automatically,
// with escalating durations on repeat offenses.
package reputation

import (
	"context"
	"errors"
	"time"
)

var (
	ErrProviderNotFound = errors.New("provider reputation not found")
	ErrAlreadyBlocked   = errors.New("provider is already blocked")
	ErrNotBlocked       = errors.New("provider is not blocked")
	ErrInvalidRating    = errors.New("rating must be between 1 and 5")
	ErrReviewNotFound   = errors.New("review not found")
)

// ProviderReputation is the aggregate standing of a provider.
type ProviderReputation struct {
	ProviderID            string     `json:"providerId"`
	AvgRating             float64    `json:"avgRating"`
	ReviewCount           int        `json:"reviewCount"`
	CompletedOrders       int        `json:"completedOrders"`
	CancelledOrders       int        `json:"cancelledOrders"`
	TotalBids             int        `json:"totalBids"`
	AcceptedBids          int        `json:"acceptedBids"`
	AcceptanceRate        float64    `json:"acceptanceRate"` // acceptedBids / totalBids, 0 with no bids
	ConsecutiveLowRatings int        `json:"consecutiveLowRatings"`
	Blocked               bool       `json:"blocked"`
	BlockedUntil          *time.Time `json:"blockedUntil,omitempty"` // nil while blocked = permanent
	OffenseCount          int        `json:"offenseCount"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

// BlockedNow reports whether the provider is blocked at the given time,
// treating an elapsed BlockedUntil as expired.
func (r *ProviderReputation) BlockedNow(now time.Time) bool {
	if !r.Blocked {
		return false
	}
	if r.BlockedUntil != nil && r.BlockedUntil.Before(now) {
		return false
	}
	return true
}

// HistoryAction is the kind of enforcement event recorded.
type HistoryAction string

const (
	ActionBlock   HistoryAction = "block"
	ActionUnblock HistoryAction = "unblock"
	ActionWarning HistoryAction = "warning"
)

// Block types recorded in the enforcement history.
const (
	BlockTypeTemporary = "temporary"
	BlockTypePermanent = "permanent"
)

// ActorSystem marks history entries written by the automatic policy
// (review ingestion and the sweep) rather than an admin.
const ActorSystem = "system"

// BlockHistoryEntry records one enforcement action against a provider.
type BlockHistoryEntry struct {
	ID           string        `json:"id"`
	ProviderID   string        `json:"providerId"`
	Action       HistoryAction `json:"action"`
	Reason       string        `json:"reason"`
	BlockType    string        `json:"blockType,omitempty"` // temporary or permanent, block actions only
	Duration     string        `json:"duration,omitempty"`  // e.g. "168h", empty = permanent or n/a
	BlockedUntil *time.Time    `json:"blockedUntil,omitempty"`
	Actor        string        `json:"actor"` // admin identity, or "system" for automatic actions
	CreatedAt    time.Time     `json:"createdAt"`
}

// RatingSnapshot is a point-in-time record of a provider's rating,
// written by the snapshot worker and consumed by the rating-drop rule.
type RatingSnapshot struct {
	ID          int64     `json:"id"`
	ProviderID  string    `json:"providerId"`
	AvgRating   float64   `json:"avgRating"`
	ReviewCount int       `json:"reviewCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Review is an ingested customer review of a completed order.
type Review struct {
	ID         string    `json:"id"`
	OrderID    string    `json:"orderId"`
	CustomerID string    `json:"customerId"`
	ProviderID string    `json:"providerId"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// RecordReviewRequest contains the parameters for ingesting a review.
type RecordReviewRequest struct {
	OrderID    string `json:"orderId" binding:"required"`
	CustomerID string `json:"customerId" binding:"required"`
	ProviderID string `json:"providerId" binding:"required"`
	Rating     int    `json:"rating" binding:"required"`
	Comment    string `json:"comment"`
}

// BlockRequest contains the parameters for a manual block or unblock.
type BlockRequest struct {
	Reason string `json:"reason" binding:"required"`
	Actor  string `json:"actor"` // defaults to "admin" when omitted
}

// Store persists provider reputation state.
type Store interface {
	// GetReputation returns a provider's reputation or ErrProviderNotFound.
	GetReputation(ctx context.Context, providerID string) (*ProviderReputation, error)

	// UpsertReputation creates or replaces a provider's reputation row.
	UpsertReputation(ctx context.Context, rep *ProviderReputation) error

	// ListSweepCandidates returns non-blocked providers with at least
	// minReviews reviews, for the auto-block sweep.
	ListSweepCandidates(ctx context.Context, minReviews, limit int) ([]*ProviderReputation, error)

	// ListRated returns all providers with at least one review, for the
	// snapshot worker.
	ListRated(ctx context.Context, limit int) ([]*ProviderReputation, error)

	// Reviews
	CreateReview(ctx context.Context, review *Review) error
	ListReviewsByProvider(ctx context.Context, providerID string, limit int) ([]*Review, error)

	// Block history
	AppendBlockHistory(ctx context.Context, entry *BlockHistoryEntry) error
	ListBlockHistory(ctx context.Context, providerID string, limit int) ([]*BlockHistoryEntry, error)

	// LastActionAt returns when the given action/reason pair was last
	// recorded for the provider, or nil if never.
	LastActionAt(ctx context.Context, providerID string, action HistoryAction, reason string) (*time.Time, error)

	// Rating snapshots
	SaveSnapshots(ctx context.Context, snaps []*RatingSnapshot) error
	// SnapshotAt returns the snapshot closest to (at or before) the given
	// time, or nil if the provider has no snapshot that old.
	SnapshotAt(ctx context.Context, providerID string, at time.Time) (*RatingSnapshot, error)
	ListSnapshots(ctx context.Context, providerID string, limit int) ([]*RatingSnapshot, error)
}

// Notifier pushes enforcement events to the provider. Implementations
// must not block.
type Notifier interface {
	ProviderBlocked(providerID, reason string, until *time.Time)
	ProviderUnblocked(providerID, reason string)
	ProviderWarned(providerID, reason string)
}
