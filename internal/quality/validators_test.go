package quality

import (
	"reflect"
	"strings"
	"testing"
)

func priceRecord(price float64) Record {
	return Record{
		"token_address": "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
		"chain":         "ethereum",
		"price":         price,
	}
}

func TestValidatePrice_NegativePrice(t *testing.T) {
	res := ValidatePrice(priceRecord(-5), nil)

	if res.Valid {
		t.Error("negative price must be invalid")
	}
	found := false
	for _, code := range res.Errors {
		if code == CodeNegativePrice {
			found = true
		}
	}
	if !found {
		t.Errorf("Errors = %v, want %s", res.Errors, CodeNegativePrice)
	}
}

func TestValidatePrice_OutlierStillValid(t *testing.T) {
	prev := &Context{Prior: map[string]float64{"price": 60}}
	res := ValidatePrice(priceRecord(100), prev)

	if !res.Outlier {
		t.Fatal("66.7% move must flag an outlier")
	}
	if !strings.Contains(res.OutlierReason, "66.7%") {
		t.Errorf("OutlierReason = %q, want mention of 66.7%%", res.OutlierReason)
	}
	if res.Score != 80 {
		t.Errorf("Score = %d, want 80", res.Score)
	}
	if !res.Valid {
		t.Error("record must be simultaneously valid and an outlier")
	}
}

func TestValidatePrice_ExtremeChange(t *testing.T) {
	prev := &Context{Prior: map[string]float64{"price": 100}}
	res := ValidatePrice(priceRecord(250), prev)

	if res.Valid {
		t.Error("a 150% move must be a hard error")
	}
	found := false
	for _, code := range res.Errors {
		if code == CodeExtremePriceChange {
			found = true
		}
	}
	if !found {
		t.Errorf("Errors = %v, want %s", res.Errors, CodeExtremePriceChange)
	}
}

func TestValidatePrice_MissingFields(t *testing.T) {
	res := ValidatePrice(Record{}, nil)
	if res.Valid {
		t.Error("empty record must be invalid")
	}
	if len(res.Errors) != 2 {
		t.Errorf("Errors = %v, want missing token and price", res.Errors)
	}
}

func TestValidatePrice_Deterministic(t *testing.T) {
	prev := &Context{Prior: map[string]float64{"price": 60}}
	rec := priceRecord(100)

	first := ValidatePrice(rec, prev)
	second := ValidatePrice(rec, prev)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("same record and context produced different results:\n%+v\n%+v", first, second)
	}
}

func TestValidateLendingMarket_HighAPYOutlier(t *testing.T) {
	res := ValidateLendingMarket(Record{
		"market_id": "aave-v3-usdc",
		"apyBase":   12000.0,
	}, nil)

	if !res.Outlier {
		t.Error("12000% APY must flag an outlier")
	}
	if len(res.Errors) != 0 {
		t.Errorf("high APY alone is not a hard error, got %v", res.Errors)
	}
	if !res.Valid {
		t.Errorf("score %d should keep the record valid", res.Score)
	}
	if res.Score != 75 {
		t.Errorf("Score = %d, want 75", res.Score)
	}
}

func TestValidateLendingMarket_NegativeAPY(t *testing.T) {
	res := ValidateLendingMarket(Record{
		"market_id": "aave-v3-usdc",
		"apyBase":   -1.0,
	}, nil)
	if res.Valid {
		t.Error("negative APY must be invalid")
	}
}

func TestValidateProtocolTVL_UnrealisticHigh(t *testing.T) {
	res := ValidateProtocolTVL(Record{
		"protocol":            "megaswap",
		"total_liquidity_usd": 6e11,
	}, nil)

	foundHard := false
	for _, code := range res.Errors {
		if code == CodeUnrealisticTVLHigh {
			foundHard = true
		}
	}
	if !foundHard {
		t.Errorf("Errors = %v, want %s", res.Errors, CodeUnrealisticTVLHigh)
	}
	if !res.Outlier {
		t.Error("unrealistic TVL must also flag an outlier")
	}
	if res.Score >= ThresholdProtocol {
		t.Errorf("Score = %d, want below %d", res.Score, ThresholdProtocol)
	}
	if res.Valid {
		t.Error("record must be invalid")
	}
}

func TestValidateProtocolTVL_SuspiciousBand(t *testing.T) {
	res := ValidateProtocolTVL(Record{
		"protocol":            "bigswap",
		"total_liquidity_usd": 5e9,
	}, nil)

	if !res.Outlier {
		t.Error("$5B TVL should be flagged suspicious")
	}
	if len(res.Errors) != 0 {
		t.Errorf("suspicious band is not a hard error, got %v", res.Errors)
	}
	if !res.Valid {
		t.Errorf("score %d should keep the record valid", res.Score)
	}
}

func TestValidateETFFlow(t *testing.T) {
	tests := []struct {
		name      string
		rec       Record
		wantValid bool
	}{
		{"clean flow", Record{"ticker": "IBIT", "day": "2026-08-28", "flow_usd": 2.5e8}, true},
		{"missing ticker", Record{"day": "2026-08-28", "flow_usd": 1e6}, false},
		{"absurd amount", Record{"ticker": "IBIT", "day": "2026-08-28", "flow_usd": 2e15}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateETFFlow(tt.rec, nil)
			if res.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v (errors %v, score %d)", res.Valid, tt.wantValid, res.Errors, res.Score)
			}
		})
	}
}

func TestValidateStablecoinCap(t *testing.T) {
	res := ValidateStablecoinCap(Record{
		"symbol":          "USDT",
		"chain":           "ethereum",
		"circulating_usd": 1.2e11,
	}, nil)
	if !res.Outlier {
		t.Error("$120B cap should be flagged suspicious")
	}
	if !res.Valid {
		t.Errorf("score %d should keep the record valid", res.Score)
	}

	res = ValidateStablecoinCap(Record{"symbol": "FAKE", "circulating_usd": 9e11}, nil)
	if res.Valid {
		t.Error("$900B cap must be invalid")
	}
}

func TestValidateLiquidityPool(t *testing.T) {
	res := ValidateLiquidityPool(Record{
		"pool_id": "747c1d2a-c668-4682-b9f9-296708a3dd90",
		"tvlUsd":  1.5e6,
		"apy":     4.2,
	}, nil)
	if !res.Valid || res.Outlier {
		t.Errorf("clean pool rejected: %+v", res)
	}

	res = ValidateLiquidityPool(Record{
		"pool_id": "747c1d2a-c668-4682-b9f9-296708a3dd90",
		"tvlUsd":  -10.0,
	}, nil)
	if res.Valid {
		t.Error("negative pool TVL must be invalid")
	}
}

func TestDefaultRegistry_AllKindsRegistered(t *testing.T) {
	kinds := []string{
		KindPrice, KindLendingMarket, KindProtocolTVL,
		KindETFFlow, KindStablecoinCap, KindLiquidityPool,
	}
	if err := DefaultRegistry().Validate(kinds...); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	for _, kind := range kinds {
		threshold, ok := DefaultRegistry().Threshold(kind)
		if !ok {
			t.Errorf("no threshold for %s", kind)
			continue
		}
		if threshold != ThresholdMarket && threshold != ThresholdProtocol {
			t.Errorf("threshold for %s = %d", kind, threshold)
		}
	}
}

func TestRegistry_UnknownKind(t *testing.T) {
	if err := DefaultRegistry().Validate("weather"); err == nil {
		t.Error("expected an error for an unregistered kind")
	}
}
