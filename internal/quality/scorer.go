package quality

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// =============================================================================
// SCORECARD
// =============================================================================

// Scorecard accumulates rule outcomes for one record. Rules subtract penalties
// from a starting score of 100; the total is floored at 0 once, after all
// penalties are summed, not per rule.
type Scorecard struct {
	penalty       int
	errors        []ErrorCode
	outlier       bool
	outlierReason string
}

// NewScorecard starts a fresh scorecard.
func NewScorecard() *Scorecard {
	return &Scorecard{}
}

// Fail records a hard rule violation. A record with any hard error is invalid
// regardless of its final score.
func (s *Scorecard) Fail(code ErrorCode, penalty int) {
	s.errors = append(s.errors, code)
	s.penalty += penalty
}

// Penalize subtracts from the score without invalidating the record.
func (s *Scorecard) Penalize(penalty int) {
	s.penalty += penalty
}

// FlagOutlier marks the record as statistically unusual with a soft penalty.
func (s *Scorecard) FlagOutlier(reason string, penalty int) {
	s.outlier = true
	if s.outlierReason == "" {
		s.outlierReason = reason
	} else {
		s.outlierReason += "; " + reason
	}
	s.penalty += penalty
}

// Result finalizes the scorecard against an entity threshold.
func (s *Scorecard) Result(threshold int) Result {
	score := 100 - s.penalty
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return Result{
		Valid:         len(s.errors) == 0 && score >= threshold,
		Errors:        s.errors,
		Score:         score,
		Outlier:       s.outlier,
		OutlierReason: s.outlierReason,
	}
}

// =============================================================================
// RULE HELPERS
// =============================================================================

// Relative-change thresholds shared by price and APY rules. The outlier and
// hard-error thresholds are independent knobs.
const (
	changeOutlierFraction = 0.5
	changeExtremeFraction = 0.9
)

// NumField extracts a numeric field, accepting the types a JSON decode or a
// driver scan can produce.
func NumField(rec Record, field string) (float64, bool) {
	v, ok := rec[field]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

// StrField extracts a non-empty string field.
func StrField(rec Record, field string) (string, bool) {
	v, ok := rec[field]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

// RequireNum enforces a presence rule for a numeric field.
func RequireNum(card *Scorecard, rec Record, field string, code ErrorCode, penalty int) (float64, bool) {
	v, ok := NumField(rec, field)
	if !ok {
		card.Fail(code, penalty)
	}
	return v, ok
}

// RequireStr enforces a presence rule for a string field.
func RequireStr(card *Scorecard, rec Record, field string, code ErrorCode, penalty int) (string, bool) {
	v, ok := StrField(rec, field)
	if !ok {
		card.Fail(code, penalty)
	}
	return v, ok
}

// CheckRelativeChange compares a value against the prior observation for the
// same key. A change fraction above 0.5 flags an outlier; above 0.9 it is a
// hard error. The record can be an outlier and still valid.
func CheckRelativeChange(card *Scorecard, label string, current, prior float64, extremeCode ErrorCode) {
	if prior == 0 {
		return
	}
	fraction := math.Abs(current-prior) / math.Abs(prior)
	if fraction > changeExtremeFraction {
		card.Fail(extremeCode, 40)
	}
	if fraction > changeOutlierFraction {
		card.FlagOutlier(fmt.Sprintf("%s changed %.1f%% against previous observation", label, fraction*100), 20)
	}
}

// CheckFreshness applies a soft penalty proportional to how far past the
// window the observation is, capped. Staleness alone never invalidates.
func CheckFreshness(card *Scorecard, observedAt time.Time, window time.Duration, perWindow, capAt int) {
	if observedAt.IsZero() || window <= 0 {
		return
	}
	age := time.Since(observedAt)
	if age <= window {
		return
	}
	penalty := int(age/window) * perWindow
	if penalty > capAt {
		penalty = capAt
	}
	card.Penalize(penalty)
}
