package quality

import (
	"fmt"
	"time"
)

// Rule violation codes, grouped by validator.
const (
	CodeMissingTokenAddress ErrorCode = "missing_token_address"
	CodeMissingPrice        ErrorCode = "missing_price"
	CodeNegativePrice       ErrorCode = "negative_price"
	CodeExtremePriceChange  ErrorCode = "extreme_price_change"

	CodeMissingMarketID  ErrorCode = "missing_market_id"
	CodeNegativeAPY      ErrorCode = "negative_apy"
	CodeExtremeAPYChange ErrorCode = "extreme_apy_change"

	CodeMissingProtocol     ErrorCode = "missing_protocol"
	CodeMissingTVL          ErrorCode = "missing_tvl"
	CodeNegativeTVL         ErrorCode = "negative_tvl"
	CodeUnrealisticTVLHigh  ErrorCode = "unrealistic_tvl_high"
	CodeUnrealisticUSD      ErrorCode = "unrealistic_usd_amount"
	CodeMissingTicker       ErrorCode = "missing_ticker"
	CodeMissingDay          ErrorCode = "missing_day"
	CodeMissingSymbol       ErrorCode = "missing_symbol"
	CodeNegativeCirculating ErrorCode = "negative_circulating"
	CodeUnrealisticCapHigh  ErrorCode = "unrealistic_cap_high"
	CodeMissingPoolID       ErrorCode = "missing_pool_id"
)

// Absolute sanity bounds. USD amounts above maxUSDAmount are treated as feed
// corruption, not market moves.
const (
	maxUSDAmount   = 1e15
	maxProtocolTVL = 500e9
	suspiciousTVL  = 1e9
	maxPoolTVL     = 1e12
	suspiciousAPY  = 10000
	maxStableCap   = 3e11
	suspiciousCap  = 5e10
)

func init() {
	defaultRegistry.Register(KindPrice, ThresholdMarket, ValidatePrice)
	defaultRegistry.Register(KindLendingMarket, ThresholdMarket, ValidateLendingMarket)
	defaultRegistry.Register(KindProtocolTVL, ThresholdProtocol, ValidateProtocolTVL)
	defaultRegistry.Register(KindETFFlow, ThresholdMarket, ValidateETFFlow)
	defaultRegistry.Register(KindStablecoinCap, ThresholdProtocol, ValidateStablecoinCap)
	defaultRegistry.Register(KindLiquidityPool, ThresholdProtocol, ValidateLiquidityPool)
}

// ValidatePrice scores a token price observation.
func ValidatePrice(rec Record, prev *Context) Result {
	card := NewScorecard()

	RequireStr(card, rec, "token_address", CodeMissingTokenAddress, 25)
	price, ok := RequireNum(card, rec, "price", CodeMissingPrice, 30)
	if ok {
		if price <= 0 {
			card.Fail(CodeNegativePrice, 35)
		} else {
			if price > 1e6 {
				card.FlagOutlier(fmt.Sprintf("price $%.2f above $1M", price), 15)
			}
			if prior, has := prev.PriorValue("price"); has {
				CheckRelativeChange(card, "price", price, prior, CodeExtremePriceChange)
			}
		}
	}

	if ts, ok := NumField(rec, "timestamp"); ok {
		CheckFreshness(card, time.Unix(int64(ts), 0), 24*time.Hour, 5, 15)
	}

	return card.Result(ThresholdMarket)
}

// ValidateLendingMarket scores a lending market rate observation.
func ValidateLendingMarket(rec Record, prev *Context) Result {
	card := NewScorecard()

	RequireStr(card, rec, "market_id", CodeMissingMarketID, 25)
	if apy, ok := NumField(rec, "apyBase"); ok {
		switch {
		case apy < 0:
			card.Fail(CodeNegativeAPY, 30)
		case apy > suspiciousAPY:
			card.FlagOutlier(fmt.Sprintf("base APY %.0f%% above %d%%", apy, suspiciousAPY), 25)
		}
		if prior, has := prev.PriorValue("apyBase"); has && apy >= 0 {
			CheckRelativeChange(card, "base APY", apy, prior, CodeExtremeAPYChange)
		}
	}
	if reward, ok := NumField(rec, "apyReward"); ok && reward < 0 {
		card.Fail(CodeNegativeAPY, 30)
	}
	if tvl, ok := NumField(rec, "tvlUsd"); ok {
		switch {
		case tvl < 0:
			card.Fail(CodeNegativeTVL, 35)
		case tvl > maxUSDAmount:
			card.Fail(CodeUnrealisticUSD, 40)
		}
	}

	return card.Result(ThresholdMarket)
}

// ValidateProtocolTVL scores a protocol-level TVL observation.
func ValidateProtocolTVL(rec Record, _ *Context) Result {
	card := NewScorecard()

	RequireStr(card, rec, "protocol", CodeMissingProtocol, 25)
	tvl, ok := RequireNum(card, rec, "total_liquidity_usd", CodeMissingTVL, 30)
	if ok {
		switch {
		case tvl <= 0:
			card.Fail(CodeNegativeTVL, 35)
		case tvl > maxProtocolTVL:
			// Beyond any plausible single-protocol TVL: hard error and an
			// outlier flag at the same time.
			card.Fail(CodeUnrealisticTVLHigh, 45)
			card.FlagOutlier(fmt.Sprintf("TVL $%.3g above $%.0fB ceiling", tvl, maxProtocolTVL/1e9), 0)
		case tvl > suspiciousTVL:
			card.FlagOutlier(fmt.Sprintf("TVL $%.3g above $1B", tvl), 10)
		}
	}

	return card.Result(ThresholdProtocol)
}

// ValidateETFFlow scores a daily ETF flow observation.
func ValidateETFFlow(rec Record, _ *Context) Result {
	card := NewScorecard()

	RequireStr(card, rec, "ticker", CodeMissingTicker, 25)
	RequireStr(card, rec, "day", CodeMissingDay, 25)
	if flow, ok := NumField(rec, "flow_usd"); ok {
		abs := flow
		if abs < 0 {
			abs = -abs
		}
		switch {
		case abs > maxUSDAmount:
			card.Fail(CodeUnrealisticUSD, 40)
		case abs > 1e10:
			card.FlagOutlier(fmt.Sprintf("daily flow $%.3g above $10B", flow), 15)
		}
	}

	return card.Result(ThresholdMarket)
}

// ValidateStablecoinCap scores a stablecoin circulating-cap observation.
func ValidateStablecoinCap(rec Record, _ *Context) Result {
	card := NewScorecard()

	RequireStr(card, rec, "symbol", CodeMissingSymbol, 25)
	circ, ok := RequireNum(card, rec, "circulating_usd", CodeMissingTVL, 30)
	if ok {
		switch {
		case circ <= 0:
			card.Fail(CodeNegativeCirculating, 35)
		case circ > maxStableCap:
			card.Fail(CodeUnrealisticCapHigh, 40)
			card.FlagOutlier(fmt.Sprintf("circulating cap $%.3g above $%.0fB ceiling", circ, maxStableCap/1e9), 0)
		case circ > suspiciousCap:
			card.FlagOutlier(fmt.Sprintf("circulating cap $%.3g above $50B", circ), 10)
		}
	}

	return card.Result(ThresholdProtocol)
}

// ValidateLiquidityPool scores a liquidity pool observation.
func ValidateLiquidityPool(rec Record, prev *Context) Result {
	card := NewScorecard()

	RequireStr(card, rec, "pool_id", CodeMissingPoolID, 25)
	if tvl, ok := NumField(rec, "tvlUsd"); ok {
		switch {
		case tvl < 0:
			card.Fail(CodeNegativeTVL, 35)
		case tvl > maxPoolTVL:
			card.Fail(CodeUnrealisticTVLHigh, 40)
			card.FlagOutlier(fmt.Sprintf("pool TVL $%.3g above $1T ceiling", tvl), 0)
		case tvl > suspiciousTVL:
			card.FlagOutlier(fmt.Sprintf("pool TVL $%.3g above $1B", tvl), 10)
		}
	}
	if apy, ok := NumField(rec, "apy"); ok {
		switch {
		case apy < 0:
			card.Fail(CodeNegativeAPY, 30)
		case apy > suspiciousAPY:
			card.FlagOutlier(fmt.Sprintf("APY %.0f%% above %d%%", apy, suspiciousAPY), 25)
		}
		if prior, has := prev.PriorValue("apy"); has && apy >= 0 {
			CheckRelativeChange(card, "APY", apy, prior, CodeExtremeAPYChange)
		}
	}

	return card.Result(ThresholdProtocol)
}
