// Package store persists clean records, quarantine entries, and run summaries
// in Postgres. Clean-store writes are native insert-or-update-on-conflict
// upserts keyed by each entity's natural key.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Aiuser8/defi-alive-jobs/internal/quality"
)

// Store wraps a Postgres connection pool. Pool capacity is configured
// separately from dispatcher concurrency; keep the two consistent or batches
// will starve waiting for sessions.
type Store struct {
	pool *pgxpool.Pool
}

// New opens a store over the given DSN.
func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Session is one storage session checked out for the duration of a batch.
type Session struct {
	conn *pgxpool.Conn
}

// WithSession acquires one session from the pool, runs fn, and releases the
// session on every exit path.
func (s *Store) WithSession(ctx context.Context, fn func(ctx context.Context, sess *Session) error) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire session: %w", err)
	}
	defer conn.Release()
	return fn(ctx, &Session{conn: conn})
}

// =============================================================================
// LANDING UPSERTS
// =============================================================================

// UpsertPrice lands one clean price observation.
func (sess *Session) UpsertPrice(ctx context.Context, rec quality.Record, observedAt time.Time) error {
	token, _ := quality.StrField(rec, "token_address")
	chain, _ := quality.StrField(rec, "chain")
	price, _ := quality.NumField(rec, "price")
	const stmt = `
INSERT INTO landing.token_prices (token_address, chain, price, observed_at, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (token_address, chain, observed_at) DO UPDATE SET
  price = EXCLUDED.price,
  updated_at = now()`
	_, err := sess.conn.Exec(ctx, stmt, token, chain, price, observedAt)
	return err
}

// UpsertLendingMarket lands one clean lending market observation.
func (sess *Session) UpsertLendingMarket(ctx context.Context, rec quality.Record, observedAt time.Time) error {
	marketID, _ := quality.StrField(rec, "market_id")
	protocol, _ := quality.StrField(rec, "protocol")
	apyBase, _ := quality.NumField(rec, "apyBase")
	apyReward, _ := quality.NumField(rec, "apyReward")
	tvl, _ := quality.NumField(rec, "tvlUsd")
	const stmt = `
INSERT INTO landing.lending_markets (market_id, protocol, apy_base, apy_reward, tvl_usd, observed_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
ON CONFLICT (market_id, observed_at) DO UPDATE SET
  protocol = EXCLUDED.protocol,
  apy_base = EXCLUDED.apy_base,
  apy_reward = EXCLUDED.apy_reward,
  tvl_usd = EXCLUDED.tvl_usd,
  updated_at = now()`
	_, err := sess.conn.Exec(ctx, stmt, marketID, protocol, apyBase, apyReward, tvl, observedAt)
	return err
}

// UpsertProtocolTVL lands one clean protocol TVL observation.
func (sess *Session) UpsertProtocolTVL(ctx context.Context, rec quality.Record, observedAt time.Time) error {
	protocol, _ := quality.StrField(rec, "protocol")
	tvl, _ := quality.NumField(rec, "total_liquidity_usd")
	const stmt = `
INSERT INTO landing.protocol_tvl (protocol, total_liquidity_usd, day, updated_at)
VALUES ($1, $2, $3::date, now())
ON CONFLICT (protocol, day) DO UPDATE SET
  total_liquidity_usd = EXCLUDED.total_liquidity_usd,
  updated_at = now()`
	_, err := sess.conn.Exec(ctx, stmt, protocol, tvl, observedAt)
	return err
}

// UpsertETFFlow lands one clean ETF flow observation.
func (sess *Session) UpsertETFFlow(ctx context.Context, rec quality.Record, _ time.Time) error {
	ticker, _ := quality.StrField(rec, "ticker")
	day, _ := quality.StrField(rec, "day")
	flow, _ := quality.NumField(rec, "flow_usd")
	const stmt = `
INSERT INTO landing.etf_flows (ticker, day, flow_usd, updated_at)
VALUES ($1, $2::date, $3, now())
ON CONFLICT (ticker, day) DO UPDATE SET
  flow_usd = EXCLUDED.flow_usd,
  updated_at = now()`
	_, err := sess.conn.Exec(ctx, stmt, ticker, day, flow)
	return err
}

// UpsertStablecoinCap lands one clean stablecoin cap observation.
func (sess *Session) UpsertStablecoinCap(ctx context.Context, rec quality.Record, observedAt time.Time) error {
	symbol, _ := quality.StrField(rec, "symbol")
	chain, _ := quality.StrField(rec, "chain")
	circ, _ := quality.NumField(rec, "circulating_usd")
	const stmt = `
INSERT INTO landing.stablecoin_caps (symbol, chain, circulating_usd, day, updated_at)
VALUES ($1, $2, $3, $4::date, now())
ON CONFLICT (symbol, chain, day) DO UPDATE SET
  circulating_usd = EXCLUDED.circulating_usd,
  updated_at = now()`
	_, err := sess.conn.Exec(ctx, stmt, symbol, chain, circ, observedAt)
	return err
}

// UpsertPool lands one clean liquidity pool observation.
func (sess *Session) UpsertPool(ctx context.Context, rec quality.Record, observedAt time.Time) error {
	poolID, _ := quality.StrField(rec, "pool_id")
	chain, _ := quality.StrField(rec, "chain")
	tvl, _ := quality.NumField(rec, "tvlUsd")
	apy, _ := quality.NumField(rec, "apy")
	const stmt = `
INSERT INTO landing.liquidity_pools (pool_id, chain, tvl_usd, apy, observed_at, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (pool_id, observed_at) DO UPDATE SET
  chain = EXCLUDED.chain,
  tvl_usd = EXCLUDED.tvl_usd,
  apy = EXCLUDED.apy,
  updated_at = now()`
	_, err := sess.conn.Exec(ctx, stmt, poolID, chain, tvl, apy, observedAt)
	return err
}
