package reputation

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	reps      map[string]*ProviderReputation
	reviews   map[string]*Review
	history   []*BlockHistoryEntry
	snapshots []*RatingSnapshot
	nextSnap  int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reps:    make(map[string]*ProviderReputation),
		reviews: make(map[string]*Review),
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) GetReputation(ctx context.Context, providerID string) (*ProviderReputation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rep, ok := m.reps[providerID]
	if !ok {
		return nil, ErrProviderNotFound
	}
	cp := *rep
	return &cp, nil
}

func (m *MemoryStore) UpsertReputation(ctx context.Context, rep *ProviderReputation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rep
	m.reps[rep.ProviderID] = &cp
	return nil
}

func (m *MemoryStore) ListSweepCandidates(ctx context.Context, minReviews, limit int) ([]*ProviderReputation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*ProviderReputation
	for _, rep := range m.reps {
		if rep.Blocked || rep.ReviewCount < minReviews {
			continue
		}
		cp := *rep
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) ListRated(ctx context.Context, limit int) ([]*ProviderReputation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*ProviderReputation
	for _, rep := range m.reps {
		if rep.ReviewCount == 0 {
			continue
		}
		cp := *rep
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) CreateReview(ctx context.Context, review *Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *review
	m.reviews[review.ID] = &cp
	return nil
}

func (m *MemoryStore) ListReviewsByProvider(ctx context.Context, providerID string, limit int) ([]*Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Review
	for _, r := range m.reviews {
		if r.ProviderID == providerID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) AppendBlockHistory(ctx context.Context, entry *BlockHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *entry
	m.history = append(m.history, &cp)
	return nil
}

func (m *MemoryStore) ListBlockHistory(ctx context.Context, providerID string, limit int) ([]*BlockHistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*BlockHistoryEntry
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].ProviderID == providerID {
			cp := *m.history[i]
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MemoryStore) LastActionAt(ctx context.Context, providerID string, action HistoryAction, reason string) (*time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.history) - 1; i >= 0; i-- {
		e := m.history[i]
		if e.ProviderID == providerID && e.Action == action && e.Reason == reason {
			t := e.CreatedAt
			return &t, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) SaveSnapshots(ctx context.Context, snaps []*RatingSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range snaps {
		cp := *s
		m.nextSnap++
		cp.ID = m.nextSnap
		m.snapshots = append(m.snapshots, &cp)
	}
	return nil
}

func (m *MemoryStore) SnapshotAt(ctx context.Context, providerID string, at time.Time) (*RatingSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *RatingSnapshot
	for _, s := range m.snapshots {
		if s.ProviderID != providerID || s.CreatedAt.After(at) {
			continue
		}
		if best == nil || s.CreatedAt.After(best.CreatedAt) {
			best = s
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (m *MemoryStore) ListSnapshots(ctx context.Context, providerID string, limit int) ([]*RatingSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*RatingSnapshot
	for _, s := range m.snapshots {
		if s.ProviderID == providerID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
