package reputation

import (
	"time"
)

// Block policy constants.
const (
	// MinReviewsForAutoBlock is the grace period: providers with fewer
	// reviews are never auto-blocked, whatever their rating.
	MinReviewsForAutoBlock = 5

	blockRatingThreshold   = 2.5
	lowRatingStreakToBlock = 3
	ratingDropThreshold    = 1.0
	ratingDropLookback     = 30 * 24 * time.Hour
	warningCooldown        = 24 * time.Hour
)

// Block reasons.
const (
	ReasonLowRating             = "low_rating"
	ReasonConsecutiveLowRatings = "consecutive_low_ratings"
	ReasonRatingDrop            = "rating_drop"
)

// VerdictAction is the outcome of a block-policy evaluation.
type VerdictAction string

const (
	VerdictNone  VerdictAction = "none"
	VerdictWarn  VerdictAction = "warn"
	VerdictBlock VerdictAction = "block"
)

// Verdict is the policy decision for one provider.
type Verdict struct {
	Action VerdictAction `json:"action"`
	Reason string        `json:"reason,omitempty"`
}

// policyRule pairs a predicate with its outcome. Rules are evaluated in
// order; the first match wins, so a blockable offense always outranks a
// warning.
type policyRule struct {
	action  VerdictAction
	reason  string
	matches func(rep *ProviderReputation, prior *RatingSnapshot) bool
}

var policyRules = []policyRule{
	{VerdictBlock, ReasonLowRating, func(r *ProviderReputation, _ *RatingSnapshot) bool {
		return r.AvgRating < blockRatingThreshold && r.ReviewCount >= MinReviewsForAutoBlock
	}},
	{VerdictBlock, ReasonConsecutiveLowRatings, func(r *ProviderReputation, _ *RatingSnapshot) bool {
		return r.ConsecutiveLowRatings >= lowRatingStreakToBlock
	}},
	{VerdictWarn, ReasonRatingDrop, func(r *ProviderReputation, prior *RatingSnapshot) bool {
		return prior != nil && prior.AvgRating-r.AvgRating >= ratingDropThreshold
	}},
}

// Evaluate runs the block policy. prior is the provider's rating snapshot
// from ~30 days ago, or nil when no history that old exists (the
// rating-drop rule then cannot fire).
func Evaluate(rep *ProviderReputation, prior *RatingSnapshot) Verdict {
	if rep.ReviewCount < MinReviewsForAutoBlock {
		return Verdict{Action: VerdictNone}
	}
	for _, rule := range policyRules {
		if rule.matches(rep, prior) {
			return Verdict{Action: rule.action, Reason: rule.reason}
		}
	}
	return Verdict{Action: VerdictNone}
}

// BlockDuration returns how long a new block lasts given the provider's
// prior offense count: 7d, 14d, 30d, then permanent (ok=false).
func BlockDuration(offenseCount int) (time.Duration, bool) {
	switch offenseCount {
	case 0:
		return 7 * 24 * time.Hour, true
	case 1:
		return 14 * 24 * time.Hour, true
	case 2:
		return 30 * 24 * time.Hour, true
	default:
		return 0, false
	}
}
