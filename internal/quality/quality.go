// Package quality scores incoming market-data records and flags statistical
// outliers. Validators are pure: the same record and the same prior-value
// context always produce the same result.
package quality

// Record is a raw record as decoded from an upstream feed.
type Record map[string]any

// ErrorCode identifies one validation rule violation.
type ErrorCode string

// Entity kinds with a registered validator.
const (
	KindPrice         = "price"
	KindLendingMarket = "lending_market"
	KindProtocolTVL   = "protocol_tvl"
	KindETFFlow       = "etf_flow"
	KindStablecoinCap = "stablecoin_cap"
	KindLiquidityPool = "liquidity_pool"
)

// Validity thresholds. Market-style data (prices, lending markets, ETF flows)
// is held to a stricter bar than protocol-level aggregates.
const (
	ThresholdMarket   = 70
	ThresholdProtocol = 60
)

// Result is the outcome of validating one record.
//
// Valid holds iff Errors is empty and Score is at or above the entity's
// threshold. Outlier is independent of validity: a record can be flagged for
// review and still land in the clean store.
type Result struct {
	Valid         bool        `json:"is_valid"`
	Errors        []ErrorCode `json:"errors,omitempty"`
	Score         int         `json:"quality_score"`
	Outlier       bool        `json:"is_outlier"`
	OutlierReason string      `json:"outlier_reason,omitempty"`
}

// ErrorStrings returns the error codes as plain strings, in rule order.
func (r Result) ErrorStrings() []string {
	if len(r.Errors) == 0 {
		return nil
	}
	out := make([]string, len(r.Errors))
	for i, code := range r.Errors {
		out[i] = string(code)
	}
	return out
}

// Context carries previously observed values for relative-change rules,
// keyed by field name for the same natural key.
type Context struct {
	Prior map[string]float64
}

// PriorValue looks up the previously observed value for a field.
func (c *Context) PriorValue(field string) (float64, bool) {
	if c == nil || c.Prior == nil {
		return 0, false
	}
	v, ok := c.Prior[field]
	return v, ok
}

// Validator scores one record of a given entity kind.
type Validator func(rec Record, prev *Context) Result
