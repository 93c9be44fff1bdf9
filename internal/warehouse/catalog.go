// Package warehouse loads candidate sets for ingestion runs from the catalog
// schema, and exposes the landing high-water mark used to resume after a
// partially failed run.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Catalog reads candidate identifiers over a plain database/sql connection.
type Catalog struct {
	db *sql.DB
}

// New opens a catalog over the given DSN.
func New(dsn string) (*Catalog, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Catalog{db: db}, nil
}

// Close closes the underlying connection pool.
func (c *Catalog) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// candidateSource describes where one entity kind's candidates live.
// Identifiers here are static configuration, never user input.
type candidateSource struct {
	table  string
	idCol  string
	landed string // landing table carrying the high-water mark
	tsCol  string
}

var candidateSources = map[string]candidateSource{
	"price":          {table: "catalog.tracked_tokens", idCol: "token_id", landed: "landing.token_prices", tsCol: "observed_at"},
	"lending_market": {table: "catalog.tracked_markets", idCol: "market_id", landed: "landing.lending_markets", tsCol: "observed_at"},
	"protocol_tvl":   {table: "catalog.tracked_protocols", idCol: "slug", landed: "landing.protocol_tvl", tsCol: "updated_at"},
	"etf_flow":       {table: "catalog.tracked_etfs", idCol: "ticker", landed: "landing.etf_flows", tsCol: "updated_at"},
	"stablecoin_cap": {table: "catalog.tracked_stablecoins", idCol: "symbol", landed: "landing.stablecoin_caps", tsCol: "updated_at"},
	"liquidity_pool": {table: "catalog.tracked_pools", idCol: "pool_id", landed: "landing.liquidity_pools", tsCol: "observed_at"},
}

func sourceFor(kind string) (candidateSource, error) {
	src, ok := candidateSources[kind]
	if !ok {
		return candidateSource{}, fmt.Errorf("unknown candidate kind: %s", kind)
	}
	return src, nil
}

// Count returns the candidate set size for an entity kind.
func (c *Catalog) Count(ctx context.Context, kind string) (int, error) {
	src, err := sourceFor(kind)
	if err != nil {
		return 0, err
	}
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE active", src.table)
	if err := c.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count candidates for %s: %w", kind, err)
	}
	return n, nil
}

// List returns one page of candidate identifiers in stable order, so batch
// offsets line up across a dispatch.
func (c *Catalog) List(ctx context.Context, kind string, offset, limit int) ([]string, error) {
	src, err := sourceFor(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE active ORDER BY %s OFFSET $1 LIMIT $2",
		src.idCol, src.table, src.idCol,
	)
	rows, err := c.db.QueryContext(ctx, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list candidates for %s: %w", kind, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// HighWaterMark returns the most recent successful landing write for an
// entity kind. Re-invoking a job with a candidate set narrowed to entries
// older than this mark is how failed work gets resumed.
func (c *Catalog) HighWaterMark(ctx context.Context, kind string) (time.Time, error) {
	src, err := sourceFor(kind)
	if err != nil {
		return time.Time{}, err
	}
	query := fmt.Sprintf("SELECT MAX(%s) FROM %s", src.tsCol, src.landed)
	var mark sql.NullTime
	if err := c.db.QueryRowContext(ctx, query).Scan(&mark); err != nil {
		return time.Time{}, fmt.Errorf("high-water mark for %s: %w", kind, err)
	}
	if !mark.Valid {
		return time.Time{}, nil
	}
	return mark.Time.UTC(), nil
}
