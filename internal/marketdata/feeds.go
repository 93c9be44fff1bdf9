package marketdata

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/Aiuser8/defi-alive-jobs/internal/quality"
)

// RecordSet is a feed response: raw records keyed by composite identifier
// (for example "ethereum:0xa0b8...").
type RecordSet map[string]quality.Record

// Merge folds another record set into this one.
func (rs RecordSet) Merge(other RecordSet) {
	for key, rec := range other {
		rs[key] = rec
	}
}

// fetchGrouped splits identifiers into bounded groups and fetches each group
// with an inter-group delay, per the upstream rate policy.
func (c *Client) fetchGrouped(ctx context.Context, path, param string, ids []string) (RecordSet, error) {
	out := make(RecordSet, len(ids))
	for start := 0; start < len(ids); start += c.config.GroupSize {
		end := start + c.config.GroupSize
		if end > len(ids) {
			end = len(ids)
		}

		if start > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.GroupDelay):
			}
		}

		query := url.Values{}
		query.Set(param, strings.Join(ids[start:end], ","))
		resp, err := c.Get(ctx, path, query)
		if err != nil {
			return nil, err
		}

		var group RecordSet
		if err := resp.JSON(&group); err != nil {
			return nil, err
		}
		out.Merge(group)
	}
	return out, nil
}

// GetPrices fetches current prices for the given chain-qualified token ids.
func (c *Client) GetPrices(ctx context.Context, tokenIDs []string) (RecordSet, error) {
	return c.fetchGrouped(ctx, "/v1/prices/current", "tokens", tokenIDs)
}

// GetLendingMarkets fetches lending market rates for the given market ids.
func (c *Client) GetLendingMarkets(ctx context.Context, marketIDs []string) (RecordSet, error) {
	return c.fetchGrouped(ctx, "/v1/lending/markets", "markets", marketIDs)
}

// GetProtocolTVL fetches TVL observations for the given protocol slugs.
func (c *Client) GetProtocolTVL(ctx context.Context, slugs []string) (RecordSet, error) {
	return c.fetchGrouped(ctx, "/v1/protocols/tvl", "protocols", slugs)
}

// GetStablecoinCaps fetches circulating caps for the given stablecoin symbols.
func (c *Client) GetStablecoinCaps(ctx context.Context, symbols []string) (RecordSet, error) {
	return c.fetchGrouped(ctx, "/v1/stablecoins/circulating", "symbols", symbols)
}

// GetPools fetches liquidity pool observations for the given pool ids.
func (c *Client) GetPools(ctx context.Context, poolIDs []string) (RecordSet, error) {
	return c.fetchGrouped(ctx, "/v1/pools", "pools", poolIDs)
}

// GetETFFlows fetches daily ETF flows for the given tickers over a date
// window. Either bound may be zero. When full is set the date filter is
// ignored and the feed returns its whole history.
func (c *Client) GetETFFlows(ctx context.Context, tickers []string, since, until time.Time, full bool) (RecordSet, error) {
	out := make(RecordSet, len(tickers))
	for start := 0; start < len(tickers); start += c.config.GroupSize {
		end := start + c.config.GroupSize
		if end > len(tickers) {
			end = len(tickers)
		}

		if start > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.GroupDelay):
			}
		}

		query := url.Values{}
		query.Set("tickers", strings.Join(tickers[start:end], ","))
		if !full {
			if !since.IsZero() {
				query.Set("start_date", since.Format("2006-01-02"))
			}
			if !until.IsZero() {
				query.Set("end_date", until.Format("2006-01-02"))
			}
		}

		resp, err := c.Get(ctx, "/v1/etf/flows", query)
		if err != nil {
			return nil, err
		}

		var group RecordSet
		if err := resp.JSON(&group); err != nil {
			return nil, err
		}
		out.Merge(group)
	}
	return out, nil
}
