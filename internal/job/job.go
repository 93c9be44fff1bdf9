// Package job wires one ingestion job per entity kind: feed fetch, quality
// gate, landing upsert, scrub routing, and the run-level summary.
package job

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Aiuser8/defi-alive-jobs/internal/dispatch"
	"github.com/Aiuser8/defi-alive-jobs/internal/marketdata"
	"github.com/Aiuser8/defi-alive-jobs/internal/quality"
	"github.com/Aiuser8/defi-alive-jobs/internal/report"
	"github.com/Aiuser8/defi-alive-jobs/internal/run"
	"github.com/Aiuser8/defi-alive-jobs/internal/scrub"
)

// FetchOptions narrow a feed call. Zero values mean the feed's defaults.
type FetchOptions struct {
	Since        time.Time
	Until        time.Time
	Full         bool
	RecentPoints int
}

// FetchFn pulls raw records for one batch of candidate identifiers.
type FetchFn func(ctx context.Context, ids []string, opts FetchOptions) (marketdata.RecordSet, error)

// Candidates loads candidate identifiers for a run.
type Candidates interface {
	Count(ctx context.Context, kind string) (int, error)
	List(ctx context.Context, kind string, offset, limit int) ([]string, error)
}

// LandingSession is one storage session scoped to a batch.
type LandingSession interface {
	// Upsert lands one clean record by its natural key.
	Upsert(ctx context.Context, rec quality.Record, observedAt time.Time) error
	// Priors returns previously observed numeric values per candidate id,
	// for relative-change rules.
	Priors(ctx context.Context, ids []string) (map[string]map[string]float64, error)
}

// Landing hands out batch-scoped storage sessions.
type Landing interface {
	RunSession(ctx context.Context, fn func(ctx context.Context, sess LandingSession) error) error
}

// Params are the caller-supplied knobs for one run.
type Params struct {
	Offset      int
	Limit       int // 0 means the whole candidate set
	BatchSize   int
	Concurrency int
	Fetch       FetchOptions
}

// Result is the outcome of one job run.
type Result struct {
	Run      *run.Context
	Dispatch dispatch.Summary
}

// Job is one ingestion pipeline bound to an entity kind.
type Job struct {
	Name            string
	EntityKind      string
	ScrubCollection string
	BatchSize       int
	Concurrency     int

	candidates Candidates
	landing    Landing
	fetch      FetchFn
	validator  quality.Validator
	scrubber   *scrub.Router
	aggregator *report.Aggregator
	log        logrus.FieldLogger
}

// Config assembles a job from its collaborators.
type Config struct {
	Name            string
	EntityKind      string
	ScrubCollection string
	BatchSize       int
	Concurrency     int

	Candidates Candidates
	Landing    Landing
	Fetch      FetchFn
	Validator  quality.Validator
	Scrubber   *scrub.Router
	Aggregator *report.Aggregator
	Log        logrus.FieldLogger
}

// New creates a job.
func New(cfg Config) *Job {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	return &Job{
		Name:            cfg.Name,
		EntityKind:      cfg.EntityKind,
		ScrubCollection: cfg.ScrubCollection,
		BatchSize:       cfg.BatchSize,
		Concurrency:     cfg.Concurrency,
		candidates:      cfg.Candidates,
		landing:         cfg.Landing,
		fetch:           cfg.Fetch,
		validator:       cfg.Validator,
		scrubber:        cfg.Scrubber,
		aggregator:      cfg.Aggregator,
		log:             cfg.Log,
	}
}

// Run executes the job over its candidate set: plan batches, dispatch them
// under bounded concurrency, then write the run summary. Setup failures
// (candidate count unavailable) return a FatalError before any batch runs.
func (j *Job) Run(ctx context.Context, p Params) (*Result, error) {
	runCtx := run.NewContext(j.Name)
	log := j.log.WithFields(logrus.Fields{"job": j.Name, "run_id": runCtx.RunID})

	total, err := j.candidates.Count(ctx, j.EntityKind)
	if err != nil {
		return nil, &FatalError{Stage: "load candidate set", Err: err}
	}

	size := total - p.Offset
	if p.Limit > 0 && p.Limit < size {
		size = p.Limit
	}
	if size < 0 {
		size = 0
	}

	batchSize := p.BatchSize
	if batchSize <= 0 {
		batchSize = j.BatchSize
	}
	concurrency := p.Concurrency
	if concurrency <= 0 {
		concurrency = j.Concurrency
	}

	log.WithFields(logrus.Fields{"candidates": size, "batch_size": batchSize}).Info("dispatching run")

	summary := dispatch.Dispatch(ctx, size, batchSize, concurrency,
		func(ctx context.Context, b dispatch.Batch) (run.Counts, error) {
			counts, err := j.RunBatch(ctx, runCtx, p.Offset+b.Offset, b.Limit, p.Fetch)
			runCtx.Metrics.Merge(counts)
			return counts, err
		},
		dispatch.WithLogger(log),
	)

	j.aggregator.Record(ctx, runCtx)

	log.WithFields(logrus.Fields{
		"batches":    summary.TotalBatches,
		"successful": summary.SuccessfulBatches,
		"failed":     summary.FailedBatches,
	}).Info("run finished")

	return &Result{Run: runCtx, Dispatch: summary}, nil
}

// RunBatch processes one slice of the candidate set. This is the direct
// in-process contract the dispatcher invokes; the HTTP layer never sits
// between internal components.
func (j *Job) RunBatch(ctx context.Context, runCtx *run.Context, offset, limit int, opts FetchOptions) (run.Counts, error) {
	var batch run.Metrics

	ids, err := j.candidates.List(ctx, j.EntityKind, offset, limit)
	if err != nil {
		return batch.Snapshot(), &FatalError{Stage: "load candidate page", Err: err}
	}

	sessErr := j.landing.RunSession(ctx, func(ctx context.Context, sess LandingSession) error {
		priors, err := sess.Priors(ctx, ids)
		if err != nil {
			// Missing priors only disables relative-change rules.
			j.log.WithField("job", j.Name).Warnf("prior values unavailable: %v", err)
			priors = nil
		}

		recs, err := j.fetch(ctx, ids, opts)
		if err != nil {
			for range ids {
				batch.RecordError("fetch_failed")
			}
			return &FetchError{Feed: j.EntityKind, Err: err}
		}

		for _, id := range ids {
			rec, ok := recs[id]
			if !ok {
				batch.RecordError(CodeMissingFromFeed)
				continue
			}
			j.processRecord(ctx, runCtx, sess, &batch, id, rec, priors[id])
		}
		return nil
	})

	return batch.Snapshot(), sessErr
}

// processRecord applies the quality gate to one record and lands or
// quarantines it. Per-record errors never escape the record.
func (j *Job) processRecord(ctx context.Context, runCtx *run.Context, sess LandingSession, batch *run.Metrics, id string, rec quality.Record, prior map[string]float64) {
	result := j.validator(rec, &quality.Context{Prior: prior})

	if !result.Valid {
		j.scrubber.Route(ctx, runCtx, j.ScrubCollection, rec, result)
		batch.RecordScrubbed(result.Outlier, result.ErrorStrings())
		return
	}

	if err := sess.Upsert(ctx, rec, recordObservedAt(rec)); err != nil {
		// A failed landing write reclassifies the record as a quarantine
		// candidate rather than dropping it.
		j.log.WithFields(logrus.Fields{"job": j.Name, "id": id}).Warnf("landing write failed: %v", err)
		result.Errors = append(result.Errors, quality.ErrorCode(CodeLandingWriteFailed))
		j.scrubber.Route(ctx, runCtx, j.ScrubCollection, rec, result)
		batch.RecordScrubbed(result.Outlier, []string{CodeLandingWriteFailed})
		return
	}

	batch.RecordClean(result.Outlier)
}

// recordObservedAt prefers the record's own timestamp, falling back to now.
func recordObservedAt(rec quality.Record) time.Time {
	if ts, ok := quality.NumField(rec, "timestamp"); ok && ts > 0 {
		return time.Unix(int64(ts), 0).UTC()
	}
	return time.Now().UTC()
}
