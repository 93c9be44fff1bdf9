package store

import (
	"context"

	"github.com/Aiuser8/defi-alive-jobs/internal/quality"
)

// priorQueries returns, per entity kind, the last observed value for each
// candidate id and the record field the value compares against. Only kinds
// with relative-change rules have one.
var priorQueries = map[string]struct {
	field string
	stmt  string
}{
	quality.KindPrice: {
		field: "price",
		stmt: `
SELECT DISTINCT ON (chain, token_address) chain || ':' || token_address, price
FROM landing.token_prices
WHERE chain || ':' || token_address = ANY($1)
ORDER BY chain, token_address, observed_at DESC`,
	},
	quality.KindLendingMarket: {
		field: "apyBase",
		stmt: `
SELECT DISTINCT ON (market_id) market_id, apy_base
FROM landing.lending_markets
WHERE market_id = ANY($1)
ORDER BY market_id, observed_at DESC`,
	},
	quality.KindLiquidityPool: {
		field: "apy",
		stmt: `
SELECT DISTINCT ON (pool_id) pool_id, apy
FROM landing.liquidity_pools
WHERE pool_id = ANY($1)
ORDER BY pool_id, observed_at DESC`,
	},
}

// PriorNumerics loads the previously observed values for the given candidate
// ids, keyed by id then record field. Kinds without relative-change rules
// return nil.
func (sess *Session) PriorNumerics(ctx context.Context, kind string, ids []string) (map[string]map[string]float64, error) {
	q, ok := priorQueries[kind]
	if !ok || len(ids) == 0 {
		return nil, nil
	}

	rows, err := sess.conn.Query(ctx, q.stmt, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]map[string]float64, len(ids))
	for rows.Next() {
		var id string
		var value float64
		if err := rows.Scan(&id, &value); err != nil {
			return nil, err
		}
		out[id] = map[string]float64{q.field: value}
	}
	return out, rows.Err()
}
