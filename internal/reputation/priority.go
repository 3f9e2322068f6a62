package reputation

import (
	"math"
	"time"
)

// Tier is a provider's priority level. Higher tiers see new orders
// sooner; the delay is how long a fresh order stays hidden from the
// provider's feed.
type Tier string

const (
	TierNew       Tier = "new"       // fewer than 3 reviews
	TierExcellent Tier = "excellent" // avg rating >= 4.5
	TierGood      Tier = "good"      // avg rating >= 4.0
	TierAverage   Tier = "average"   // avg rating >= 3.5
	TierLow       Tier = "low"       // avg rating >= 3.0
	TierCritical  Tier = "critical"  // below 3.0, or blocked
)

// tierRule pairs a predicate with its outcome. Rules are evaluated in
// order; the first match wins.
type tierRule struct {
	tier    Tier
	delay   time.Duration
	matches func(rep *ProviderReputation, now time.Time) bool
}

var tierRules = []tierRule{
	{TierCritical, 300 * time.Second, func(r *ProviderReputation, now time.Time) bool {
		return r.BlockedNow(now)
	}},
	{TierNew, 60 * time.Second, func(r *ProviderReputation, _ time.Time) bool {
		return r.ReviewCount < 3
	}},
	{TierExcellent, 0, func(r *ProviderReputation, _ time.Time) bool {
		return r.AvgRating >= 4.5
	}},
	{TierGood, 30 * time.Second, func(r *ProviderReputation, _ time.Time) bool {
		return r.AvgRating >= 4.0
	}},
	{TierAverage, 60 * time.Second, func(r *ProviderReputation, _ time.Time) bool {
		return r.AvgRating >= 3.5
	}},
	{TierLow, 120 * time.Second, func(r *ProviderReputation, _ time.Time) bool {
		return r.AvgRating >= 3.0
	}},
	{TierCritical, 300 * time.Second, nil}, // fallback
}

// TierFor returns the provider's priority tier and feed visibility delay.
// The NEW rule outranks the rating rules: a provider with under 3 reviews
// is NEW no matter what those reviews say.
func TierFor(rep *ProviderReputation, now time.Time) (Tier, time.Duration) {
	for _, rule := range tierRules {
		if rule.matches == nil || rule.matches(rep, now) {
			return rule.tier, rule.delay
		}
	}
	// Unreachable: the last rule always matches.
	return TierCritical, 300 * time.Second
}

// PriorityScore ranks providers on a 0-100 scale for listing order,
// independent of the tier delay:
//
//	10*rating + min(reviewCount/10, 15) + min(completed/20, 15) - cancelRate%*0.10
//
// where cancelRate% = cancelled / (completed + cancelled) * 100.
// The result is clamped to [0,100].
func PriorityScore(rep *ProviderReputation) float64 {
	score := rep.AvgRating * 10
	score += math.Min(float64(rep.ReviewCount)/10, 15)
	score += math.Min(float64(rep.CompletedOrders)/20, 15)

	total := rep.CompletedOrders + rep.CancelledOrders
	if total > 0 {
		cancelPct := float64(rep.CancelledOrders) / float64(total) * 100
		score -= cancelPct * 0.10
	}

	return math.Max(0, math.Min(100, score))
}
