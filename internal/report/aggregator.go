// Package report accumulates run-level quality metrics into one summary row
// per run.
package report

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Aiuser8/defi-alive-jobs/internal/run"
)

// Summary is one quality summary row, keyed by (job_name, run_id).
// OverallQualityScore is always derived from the counters, never supplied.
type Summary struct {
	JobName             string
	RunID               string
	Counts              run.Counts
	OverallQualityScore float64
	ProcessingTimeMs    int64
	FinishedAt          time.Time
}

// Store upserts summary rows.
type Store interface {
	UpsertQualitySummary(ctx context.Context, s Summary) error
}

// Aggregator writes one summary row per run. Safe to call more than once per
// run: each call replaces the row's counters, it does not accumulate.
type Aggregator struct {
	store Store
	log   logrus.FieldLogger
}

// NewAggregator creates an aggregator over the given store.
func NewAggregator(store Store, log logrus.FieldLogger) *Aggregator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Aggregator{store: store, log: log}
}

// Record upserts the summary row for the run. Persistence failures are logged
// and swallowed so the reporting path never masks the primary job's outcome.
func (a *Aggregator) Record(ctx context.Context, runCtx *run.Context) {
	counts := runCtx.Metrics.Snapshot()
	summary := Summary{
		JobName:             runCtx.JobName,
		RunID:               runCtx.RunID,
		Counts:              counts,
		OverallQualityScore: counts.QualityScore(),
		ProcessingTimeMs:    runCtx.Elapsed(),
		FinishedAt:          time.Now().UTC(),
	}

	if err := a.store.UpsertQualitySummary(ctx, summary); err != nil {
		a.log.WithFields(logrus.Fields{
			"job":    runCtx.JobName,
			"run_id": runCtx.RunID,
		}).Errorf("quality summary write failed: %v", err)
	}
}
