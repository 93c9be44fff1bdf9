// Package scrub routes rejected records into an auditable quarantine store.
package scrub

import (
	"fmt"
	"sync"

	"github.com/Aiuser8/defi-alive-jobs/internal/quality"
)

// FieldMapping binds one source field to one quarantine column.
type FieldMapping struct {
	SourceField  string
	TargetColumn string
}

// MappingRegistry holds the ordered per-collection field mappings. It is
// populated at startup and validated once, instead of being re-derived from a
// switch on every call.
type MappingRegistry struct {
	mu       sync.RWMutex
	mappings map[string][]FieldMapping
}

// NewMappingRegistry creates an empty mapping registry.
func NewMappingRegistry() *MappingRegistry {
	return &MappingRegistry{mappings: make(map[string][]FieldMapping)}
}

// Register adds the mapping for a quarantine collection.
// Panics if the collection is already registered.
func (r *MappingRegistry) Register(collection string, fields []FieldMapping) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.mappings[collection]; exists {
		panic(fmt.Sprintf("scrub mapping already registered: %s", collection))
	}
	r.mappings[collection] = fields
}

// Get returns the mapping for a collection.
func (r *MappingRegistry) Get(collection string) ([]FieldMapping, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.mappings[collection]
	return m, ok
}

// Validate checks every registered mapping for empty or duplicate targets.
// Called once at startup.
func (r *MappingRegistry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for collection, fields := range r.mappings {
		if len(fields) == 0 {
			return fmt.Errorf("scrub mapping %q has no fields", collection)
		}
		seen := make(map[string]bool, len(fields))
		for _, f := range fields {
			if f.SourceField == "" || f.TargetColumn == "" {
				return fmt.Errorf("scrub mapping %q has an empty field binding", collection)
			}
			if seen[f.TargetColumn] {
				return fmt.Errorf("scrub mapping %q maps %q twice", collection, f.TargetColumn)
			}
			seen[f.TargetColumn] = true
		}
	}
	return nil
}

// Apply projects a record onto the collection's column namespace. Fields
// absent from the record are dropped, not written as null placeholders.
func (r *MappingRegistry) Apply(collection string, rec quality.Record) map[string]any {
	fields, ok := r.Get(collection)
	if !ok {
		return nil
	}
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, present := rec[f.SourceField]; present && v != nil {
			out[f.TargetColumn] = v
		}
	}
	return out
}

// DefaultMappings returns the quarantine mappings for every ingestion job.
func DefaultMappings() *MappingRegistry {
	r := NewMappingRegistry()
	r.Register("scrub_token_prices", []FieldMapping{
		{SourceField: "token_address", TargetColumn: "token_address"},
		{SourceField: "chain", TargetColumn: "chain"},
		{SourceField: "price", TargetColumn: "price"},
		{SourceField: "timestamp", TargetColumn: "observed_at"},
	})
	r.Register("scrub_lending_markets", []FieldMapping{
		{SourceField: "market_id", TargetColumn: "market_id"},
		{SourceField: "protocol", TargetColumn: "protocol"},
		{SourceField: "apyBase", TargetColumn: "apy_base"},
		{SourceField: "apyReward", TargetColumn: "apy_reward"},
		{SourceField: "tvlUsd", TargetColumn: "tvl_usd"},
	})
	r.Register("scrub_protocol_tvl", []FieldMapping{
		{SourceField: "protocol", TargetColumn: "protocol"},
		{SourceField: "total_liquidity_usd", TargetColumn: "total_liquidity_usd"},
		{SourceField: "day", TargetColumn: "day"},
	})
	r.Register("scrub_etf_flows", []FieldMapping{
		{SourceField: "ticker", TargetColumn: "ticker"},
		{SourceField: "day", TargetColumn: "day"},
		{SourceField: "flow_usd", TargetColumn: "flow_usd"},
	})
	r.Register("scrub_stablecoin_caps", []FieldMapping{
		{SourceField: "symbol", TargetColumn: "symbol"},
		{SourceField: "chain", TargetColumn: "chain"},
		{SourceField: "circulating_usd", TargetColumn: "circulating_usd"},
	})
	r.Register("scrub_liquidity_pools", []FieldMapping{
		{SourceField: "pool_id", TargetColumn: "pool_id"},
		{SourceField: "chain", TargetColumn: "chain"},
		{SourceField: "tvlUsd", TargetColumn: "tvl_usd"},
		{SourceField: "apy", TargetColumn: "apy"},
	})
	return r
}
