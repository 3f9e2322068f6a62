package reputation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTierFor(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)

	cases := []struct {
		name      string
		rep       ProviderReputation
		wantTier  Tier
		wantDelay time.Duration
	}{
		{"no reviews", ProviderReputation{}, TierNew, 60 * time.Second},
		{"two reviews of five stars", ProviderReputation{AvgRating: 5.0, ReviewCount: 2}, TierNew, 60 * time.Second},
		{"excellent", ProviderReputation{AvgRating: 4.5, ReviewCount: 10}, TierExcellent, 0},
		{"excellent at four point six", ProviderReputation{AvgRating: 4.6, ReviewCount: 50}, TierExcellent, 0},
		{"good", ProviderReputation{AvgRating: 4.2, ReviewCount: 10}, TierGood, 30 * time.Second},
		{"average", ProviderReputation{AvgRating: 3.7, ReviewCount: 10}, TierAverage, 60 * time.Second},
		{"low", ProviderReputation{AvgRating: 3.2, ReviewCount: 10}, TierLow, 120 * time.Second},
		{"low at boundary", ProviderReputation{AvgRating: 3.0, ReviewCount: 10}, TierLow, 120 * time.Second},
		{"critical", ProviderReputation{AvgRating: 2.0, ReviewCount: 10}, TierCritical, 300 * time.Second},
		{"blocked outranks rating", ProviderReputation{AvgRating: 4.9, ReviewCount: 50, Blocked: true, BlockedUntil: &future}, TierCritical, 300 * time.Second},
		{"expired block falls through", ProviderReputation{AvgRating: 4.9, ReviewCount: 50, Blocked: true, BlockedUntil: &now}, TierExcellent, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tier, delay := TierFor(&tc.rep, now.Add(time.Second))
			assert.Equal(t, tc.wantTier, tier)
			assert.Equal(t, tc.wantDelay, delay)
		})
	}
}

func TestPriorityScore(t *testing.T) {
	cases := []struct {
		name string
		rep  ProviderReputation
		want float64
	}{
		{"zero history", ProviderReputation{}, 0},
		{"rating only", ProviderReputation{AvgRating: 4.0}, 40},
		{"rating and reviews", ProviderReputation{AvgRating: 5.0, ReviewCount: 100}, 60},
		{"review term caps at fifteen", ProviderReputation{AvgRating: 5.0, ReviewCount: 500}, 65},
		{"completion bonus", ProviderReputation{AvgRating: 4.0, ReviewCount: 10, CompletedOrders: 100}, 40 + 1 + 5},
		{"completion term caps at fifteen", ProviderReputation{AvgRating: 4.0, CompletedOrders: 1000}, 40 + 15},
		{"cancellations penalized", ProviderReputation{AvgRating: 4.0, CompletedOrders: 30, CancelledOrders: 10}, 40 + 1.5 - 2.5},
		{"clamped at zero", ProviderReputation{CancelledOrders: 5}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, PriorityScore(&tc.rep), 0.001)
		})
	}
}
