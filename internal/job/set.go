package job

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/Aiuser8/defi-alive-jobs/internal/marketdata"
	"github.com/Aiuser8/defi-alive-jobs/internal/quality"
	"github.com/Aiuser8/defi-alive-jobs/internal/report"
	"github.com/Aiuser8/defi-alive-jobs/internal/scrub"
	"github.com/Aiuser8/defi-alive-jobs/internal/store"
)

// Set holds every ingestion job, indexed by job name.
type Set struct {
	jobs map[string]*Job
}

// SetConfig carries the shared collaborators for building the job set.
type SetConfig struct {
	Client      *marketdata.Client
	Store       *store.Store
	Candidates  Candidates
	BatchSize   int
	Concurrency int
	Log         logrus.FieldLogger
}

// jobSpec binds one job name to its entity kind, scrub target, and feed.
type jobSpec struct {
	name       string
	kind       string
	collection string
	fetch      func(c *marketdata.Client) FetchFn
}

var jobSpecs = []jobSpec{
	{"token-prices", quality.KindPrice, "scrub_token_prices",
		func(c *marketdata.Client) FetchFn {
			return func(ctx context.Context, ids []string, _ FetchOptions) (marketdata.RecordSet, error) {
				return c.GetPrices(ctx, ids)
			}
		}},
	{"lending-markets", quality.KindLendingMarket, "scrub_lending_markets",
		func(c *marketdata.Client) FetchFn {
			return func(ctx context.Context, ids []string, _ FetchOptions) (marketdata.RecordSet, error) {
				return c.GetLendingMarkets(ctx, ids)
			}
		}},
	{"protocol-tvl", quality.KindProtocolTVL, "scrub_protocol_tvl",
		func(c *marketdata.Client) FetchFn {
			return func(ctx context.Context, ids []string, _ FetchOptions) (marketdata.RecordSet, error) {
				return c.GetProtocolTVL(ctx, ids)
			}
		}},
	{"etf-flows", quality.KindETFFlow, "scrub_etf_flows",
		func(c *marketdata.Client) FetchFn {
			return func(ctx context.Context, ids []string, opts FetchOptions) (marketdata.RecordSet, error) {
				return c.GetETFFlows(ctx, ids, opts.Since, opts.Until, opts.Full)
			}
		}},
	{"stablecoin-caps", quality.KindStablecoinCap, "scrub_stablecoin_caps",
		func(c *marketdata.Client) FetchFn {
			return func(ctx context.Context, ids []string, _ FetchOptions) (marketdata.RecordSet, error) {
				return c.GetStablecoinCaps(ctx, ids)
			}
		}},
	{"liquidity-pools", quality.KindLiquidityPool, "scrub_liquidity_pools",
		func(c *marketdata.Client) FetchFn {
			return func(ctx context.Context, ids []string, _ FetchOptions) (marketdata.RecordSet, error) {
				return c.GetPools(ctx, ids)
			}
		}},
}

// NewSet wires every ingestion job. Registries are validated here so a
// miswired deployment fails at startup, not mid-run.
func NewSet(cfg SetConfig) (*Set, error) {
	mappings := scrub.DefaultMappings()
	if err := mappings.Validate(); err != nil {
		return nil, err
	}

	validators := quality.DefaultRegistry()
	kinds := make([]string, len(jobSpecs))
	for i, spec := range jobSpecs {
		kinds[i] = spec.kind
	}
	if err := validators.Validate(kinds...); err != nil {
		return nil, err
	}

	scrubber := scrub.NewRouter(mappings, cfg.Store, cfg.Log)
	aggregator := report.NewAggregator(cfg.Store, cfg.Log)

	jobs := make(map[string]*Job, len(jobSpecs))
	for _, spec := range jobSpecs {
		validator, _ := validators.Get(spec.kind)
		landing, err := NewStoreLanding(cfg.Store, spec.kind)
		if err != nil {
			return nil, err
		}
		jobs[spec.name] = New(Config{
			Name:            spec.name,
			EntityKind:      spec.kind,
			ScrubCollection: spec.collection,
			BatchSize:       cfg.BatchSize,
			Concurrency:     cfg.Concurrency,
			Candidates:      cfg.Candidates,
			Landing:         landing,
			Fetch:           spec.fetch(cfg.Client),
			Validator:       validator,
			Scrubber:        scrubber,
			Aggregator:      aggregator,
			Log:             cfg.Log,
		})
	}
	return &Set{jobs: jobs}, nil
}

// Get returns the job registered under name.
func (s *Set) Get(name string) (*Job, bool) {
	j, ok := s.jobs[name]
	return j, ok
}

// Names returns the registered job names, sorted.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String implements fmt.Stringer for startup logging.
func (s *Set) String() string {
	return fmt.Sprintf("jobs%v", s.Names())
}
