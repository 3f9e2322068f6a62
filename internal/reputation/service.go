package reputation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fixmarket/fixmarket/internal/idgen"
	"github.com/fixmarket/fixmarket/internal/logging"
	"github.com/fixmarket/fixmarket/internal/metrics"
)

// Service implements reputation business logic.
type Service struct {
	store    Store
	notifier Notifier
	locks    sync.Map // per-provider ID locks
}

// NewService creates a new reputation service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// WithNotifier adds enforcement event notifications.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// providerLock returns a mutex for the given provider ID.
func (s *Service) providerLock(id string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Get returns a provider's reputation with lazy block expiry applied. A
// provider with no history yet gets a fresh zero-valued reputation.
func (s *Service) Get(ctx context.Context, providerID string) (*ProviderReputation, error) {
	rep, err := s.store.GetReputation(ctx, providerID)
	if err == ErrProviderNotFound {
		return &ProviderReputation{ProviderID: providerID, UpdatedAt: time.Now()}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.withLazyExpiry(ctx, rep), nil
}

// withLazyExpiry clears an elapsed timed block on read and persists the
// unblock opportunistically. OffenseCount is kept; serving out the block
// is not forgiveness, and no history entry is written for the implicit
// expiry.
func (s *Service) withLazyExpiry(ctx context.Context, rep *ProviderReputation) *ProviderReputation {
	now := time.Now()
	if !rep.Blocked || rep.BlockedNow(now) {
		return rep
	}

	mu := s.providerLock(rep.ProviderID)
	mu.Lock()
	defer mu.Unlock()

	fresh, err := s.store.GetReputation(ctx, rep.ProviderID)
	if err != nil {
		rep.Blocked = false
		rep.BlockedUntil = nil
		return rep
	}
	if fresh.Blocked && !fresh.BlockedNow(now) {
		fresh.Blocked = false
		fresh.BlockedUntil = nil
		fresh.UpdatedAt = now
		if err := s.store.UpsertReputation(ctx, fresh); err != nil {
			logging.L(ctx).Warn("failed to persist block expiry", "provider", rep.ProviderID, "error", err)
		}
	}
	return fresh
}

// IsBlocked reports whether the provider may not bid right now.
func (s *Service) IsBlocked(ctx context.Context, providerID string) (bool, error) {
	rep, err := s.Get(ctx, providerID)
	if err != nil {
		return false, err
	}
	return rep.BlockedNow(time.Now()), nil
}

// Tier returns the provider's priority tier and feed visibility delay.
func (s *Service) Tier(ctx context.Context, providerID string) (Tier, time.Duration, error) {
	rep, err := s.Get(ctx, providerID)
	if err != nil {
		return "", 0, err
	}
	tier, delay := TierFor(rep, time.Now())
	return tier, delay, nil
}

// VisibilityDelay returns how long new orders stay hidden from the
// provider's feed.
func (s *Service) VisibilityDelay(ctx context.Context, providerID string) (time.Duration, error) {
	_, delay, err := s.Tier(ctx, providerID)
	return delay, err
}

// Score returns the provider's priority score in [0,100].
func (s *Service) Score(ctx context.Context, providerID string) (float64, error) {
	rep, err := s.Get(ctx, providerID)
	if err != nil {
		return 0, err
	}
	return PriorityScore(rep), nil
}

// RecordReview ingests a customer review, updates the provider's
// aggregates and evaluates the block policy inline so an egregious
// provider is stopped immediately rather than on the next sweep.
func (s *Service) RecordReview(ctx context.Context, req RecordReviewRequest) (*Review, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, ErrInvalidRating
	}

	mu := s.providerLock(req.ProviderID)
	mu.Lock()
	defer mu.Unlock()

	rep, err := s.store.GetReputation(ctx, req.ProviderID)
	if err == ErrProviderNotFound {
		rep = &ProviderReputation{ProviderID: req.ProviderID}
	} else if err != nil {
		return nil, err
	}

	now := time.Now()
	review := &Review{
		ID:         idgen.WithPrefix("rev_"),
		OrderID:    req.OrderID,
		CustomerID: req.CustomerID,
		ProviderID: req.ProviderID,
		Rating:     req.Rating,
		Comment:    req.Comment,
		CreatedAt:  now,
	}
	if err := s.store.CreateReview(ctx, review); err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}

	rep.AvgRating = (rep.AvgRating*float64(rep.ReviewCount) + float64(req.Rating)) / float64(rep.ReviewCount+1)
	rep.ReviewCount++
	if req.Rating < 3 {
		rep.ConsecutiveLowRatings++
	} else {
		rep.ConsecutiveLowRatings = 0
	}
	rep.UpdatedAt = now

	if err := s.store.UpsertReputation(ctx, rep); err != nil {
		return nil, fmt.Errorf("update reputation: %w", err)
	}

	metrics.ReviewsIngestedTotal.Inc()

	if !rep.BlockedNow(now) {
		if err := s.enforceLocked(ctx, rep); err != nil {
			logging.L(ctx).Warn("block policy enforcement failed", "provider", req.ProviderID, "error", err)
		}
	}
	return review, nil
}

// RecordCompletion increments the provider's completed order counter.
func (s *Service) RecordCompletion(ctx context.Context, providerID string) error {
	return s.bumpCounters(ctx, providerID, 1, 0)
}

// RecordCancellation increments the provider's cancelled order counter.
func (s *Service) RecordCancellation(ctx context.Context, providerID string) error {
	return s.bumpCounters(ctx, providerID, 0, 1)
}

func (s *Service) bumpCounters(ctx context.Context, providerID string, completed, cancelled int) error {
	return s.mutate(ctx, providerID, func(rep *ProviderReputation) {
		rep.CompletedOrders += completed
		rep.CancelledOrders += cancelled
	})
}

// RecordBid increments the provider's submitted-bid counter and refreshes
// the acceptance rate.
func (s *Service) RecordBid(ctx context.Context, providerID string) error {
	return s.mutate(ctx, providerID, func(rep *ProviderReputation) {
		rep.TotalBids++
		rep.AcceptanceRate = acceptanceRate(rep)
	})
}

// RecordBidAccepted increments the provider's accepted-bid counter and
// refreshes the acceptance rate.
func (s *Service) RecordBidAccepted(ctx context.Context, providerID string) error {
	return s.mutate(ctx, providerID, func(rep *ProviderReputation) {
		rep.AcceptedBids++
		rep.AcceptanceRate = acceptanceRate(rep)
	})
}

func acceptanceRate(rep *ProviderReputation) float64 {
	if rep.TotalBids == 0 {
		return 0
	}
	return float64(rep.AcceptedBids) / float64(rep.TotalBids)
}

// mutate applies fn to the provider's reputation under its lock and
// persists the result. A provider with no row yet starts from zero.
func (s *Service) mutate(ctx context.Context, providerID string, fn func(*ProviderReputation)) error {
	mu := s.providerLock(providerID)
	mu.Lock()
	defer mu.Unlock()

	rep, err := s.store.GetReputation(ctx, providerID)
	if err == ErrProviderNotFound {
		rep = &ProviderReputation{ProviderID: providerID}
	} else if err != nil {
		return err
	}
	fn(rep)
	rep.UpdatedAt = time.Now()
	return s.store.UpsertReputation(ctx, rep)
}

// ApplyBlock blocks a provider with a duration from the escalation
// ladder: 7d, 14d, 30d by offense count, permanent from the fourth
// offense on. The actor is recorded in the block history; automatic
// blocks use ActorSystem.
func (s *Service) ApplyBlock(ctx context.Context, providerID, reason, actor string) (*ProviderReputation, error) {
	mu := s.providerLock(providerID)
	mu.Lock()
	defer mu.Unlock()
	return s.applyBlockLocked(ctx, providerID, reason, actor)
}

func (s *Service) applyBlockLocked(ctx context.Context, providerID, reason, actor string) (*ProviderReputation, error) {
	rep, err := s.store.GetReputation(ctx, providerID)
	if err == ErrProviderNotFound {
		rep = &ProviderReputation{ProviderID: providerID}
	} else if err != nil {
		return nil, err
	}

	now := time.Now()
	if rep.BlockedNow(now) {
		return nil, ErrAlreadyBlocked
	}

	duration, timed := BlockDuration(rep.OffenseCount)
	rep.Blocked = true
	if timed {
		until := now.Add(duration)
		rep.BlockedUntil = &until
	} else {
		rep.BlockedUntil = nil
	}
	rep.OffenseCount++
	rep.UpdatedAt = now

	if err := s.store.UpsertReputation(ctx, rep); err != nil {
		return nil, fmt.Errorf("block provider: %w", err)
	}

	entry := &BlockHistoryEntry{
		ID:           idgen.WithPrefix("blk_"),
		ProviderID:   providerID,
		Action:       ActionBlock,
		Reason:       reason,
		BlockType:    BlockTypePermanent,
		BlockedUntil: rep.BlockedUntil,
		Actor:        actor,
		CreatedAt:    now,
	}
	if timed {
		entry.BlockType = BlockTypeTemporary
		entry.Duration = duration.String()
	}
	if err := s.store.AppendBlockHistory(ctx, entry); err != nil {
		logging.L(ctx).Warn("blocked but history write failed", "provider", providerID, "error", err)
	}

	metrics.ProvidersBlockedTotal.Inc()
	if s.notifier != nil {
		s.notifier.ProviderBlocked(providerID, reason, rep.BlockedUntil)
	}
	return rep, nil
}

// Unblock lifts a provider's block. The offense count is kept so the
// next block still escalates.
func (s *Service) Unblock(ctx context.Context, providerID, reason, actor string) (*ProviderReputation, error) {
	mu := s.providerLock(providerID)
	mu.Lock()
	defer mu.Unlock()

	rep, err := s.store.GetReputation(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if !rep.BlockedNow(time.Now()) {
		return nil, ErrNotBlocked
	}

	now := time.Now()
	rep.Blocked = false
	rep.BlockedUntil = nil
	rep.UpdatedAt = now
	if err := s.store.UpsertReputation(ctx, rep); err != nil {
		return nil, fmt.Errorf("unblock provider: %w", err)
	}

	entry := &BlockHistoryEntry{
		ID:         idgen.WithPrefix("blk_"),
		ProviderID: providerID,
		Action:     ActionUnblock,
		Reason:     reason,
		Actor:      actor,
		CreatedAt:  now,
	}
	if err := s.store.AppendBlockHistory(ctx, entry); err != nil {
		logging.L(ctx).Warn("unblocked but history write failed", "provider", providerID, "error", err)
	}

	if s.notifier != nil {
		s.notifier.ProviderUnblocked(providerID, reason)
	}
	return rep, nil
}

// RecordWarning appends a warning to the provider's history and notifies
// them. Warnings for the same reason are throttled to one per cooldown
// window so the sweep does not nag.
func (s *Service) RecordWarning(ctx context.Context, providerID, reason, actor string) error {
	mu := s.providerLock(providerID)
	mu.Lock()
	defer mu.Unlock()
	return s.recordWarningLocked(ctx, providerID, reason, actor)
}

func (s *Service) recordWarningLocked(ctx context.Context, providerID, reason, actor string) error {
	last, err := s.store.LastActionAt(ctx, providerID, ActionWarning, reason)
	if err != nil {
		return err
	}
	if last != nil && time.Since(*last) < warningCooldown {
		return nil
	}

	entry := &BlockHistoryEntry{
		ID:         idgen.WithPrefix("blk_"),
		ProviderID: providerID,
		Action:     ActionWarning,
		Reason:     reason,
		Actor:      actor,
		CreatedAt:  time.Now(),
	}
	if err := s.store.AppendBlockHistory(ctx, entry); err != nil {
		return err
	}

	metrics.ProvidersWarnedTotal.Inc()
	if s.notifier != nil {
		s.notifier.ProviderWarned(providerID, reason)
	}
	return nil
}

// enforceLocked evaluates the block policy for a provider and applies
// the verdict. Caller must hold the provider lock.
func (s *Service) enforceLocked(ctx context.Context, rep *ProviderReputation) error {
	prior, err := s.store.SnapshotAt(ctx, rep.ProviderID, time.Now().Add(-ratingDropLookback))
	if err != nil {
		return err
	}

	verdict := Evaluate(rep, prior)
	switch verdict.Action {
	case VerdictBlock:
		_, err := s.applyBlockLocked(ctx, rep.ProviderID, verdict.Reason, ActorSystem)
		if err == ErrAlreadyBlocked {
			return nil
		}
		return err
	case VerdictWarn:
		return s.recordWarningLocked(ctx, rep.ProviderID, verdict.Reason, ActorSystem)
	}
	return nil
}

// SweepLowRated runs the block policy over every eligible provider.
// Returns how many providers were blocked and warned.
func (s *Service) SweepLowRated(ctx context.Context) (blocked, warned int, err error) {
	candidates, err := s.store.ListSweepCandidates(ctx, MinReviewsForAutoBlock, 1000)
	if err != nil {
		return 0, 0, err
	}

	for _, rep := range candidates {
		prior, err := s.store.SnapshotAt(ctx, rep.ProviderID, time.Now().Add(-ratingDropLookback))
		if err != nil {
			logging.L(ctx).Warn("sweep snapshot lookup failed", "provider", rep.ProviderID, "error", err)
			continue
		}

		verdict := Evaluate(rep, prior)
		switch verdict.Action {
		case VerdictBlock:
			mu := s.providerLock(rep.ProviderID)
			mu.Lock()
			_, err := s.applyBlockLocked(ctx, rep.ProviderID, verdict.Reason, ActorSystem)
			mu.Unlock()
			if err == ErrAlreadyBlocked {
				continue
			}
			if err != nil {
				logging.L(ctx).Warn("sweep block failed", "provider", rep.ProviderID, "error", err)
				continue
			}
			blocked++
		case VerdictWarn:
			mu := s.providerLock(rep.ProviderID)
			mu.Lock()
			err := s.recordWarningLocked(ctx, rep.ProviderID, verdict.Reason, ActorSystem)
			mu.Unlock()
			if err != nil {
				logging.L(ctx).Warn("sweep warning failed", "provider", rep.ProviderID, "error", err)
				continue
			}
			warned++
		}
	}
	return blocked, warned, nil
}

// SnapshotRatings writes a rating snapshot for every rated provider.
func (s *Service) SnapshotRatings(ctx context.Context) (int, error) {
	rated, err := s.store.ListRated(ctx, 10000)
	if err != nil {
		return 0, err
	}
	if len(rated) == 0 {
		return 0, nil
	}

	now := time.Now()
	snaps := make([]*RatingSnapshot, 0, len(rated))
	for _, rep := range rated {
		snaps = append(snaps, &RatingSnapshot{
			ProviderID:  rep.ProviderID,
			AvgRating:   rep.AvgRating,
			ReviewCount: rep.ReviewCount,
			CreatedAt:   now,
		})
	}
	if err := s.store.SaveSnapshots(ctx, snaps); err != nil {
		return 0, err
	}
	return len(snaps), nil
}

// BlockHistory returns a provider's enforcement history, newest first.
func (s *Service) BlockHistory(ctx context.Context, providerID string, limit int) ([]*BlockHistoryEntry, error) {
	return s.store.ListBlockHistory(ctx, providerID, limit)
}

// Reviews returns a provider's reviews, newest first.
func (s *Service) Reviews(ctx context.Context, providerID string, limit int) ([]*Review, error) {
	return s.store.ListReviewsByProvider(ctx, providerID, limit)
}

// RatingHistory returns a provider's rating snapshots, newest first.
func (s *Service) RatingHistory(ctx context.Context, providerID string, limit int) ([]*RatingSnapshot, error) {
	return s.store.ListSnapshots(ctx, providerID, limit)
}
