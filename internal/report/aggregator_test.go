package report

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/Aiuser8/defi-alive-jobs/internal/run"
)

type fakeStore struct {
	rows map[string]Summary // keyed by job_name/run_id
	err  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]Summary)}
}

func (f *fakeStore) UpsertQualitySummary(_ context.Context, s Summary) error {
	if f.err != nil {
		return f.err
	}
	f.rows[s.JobName+"/"+s.RunID] = s
	return nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestAggregator_DerivesScore(t *testing.T) {
	store := newFakeStore()
	agg := NewAggregator(store, quietLogger())

	runCtx := run.NewContext("protocol-tvl")
	for i := 0; i < 8; i++ {
		runCtx.Metrics.RecordClean(false)
	}
	runCtx.Metrics.RecordScrubbed(true, []string{"negative_tvl"})
	runCtx.Metrics.RecordError("fetch_failed")

	agg.Record(context.Background(), runCtx)

	if len(store.rows) != 1 {
		t.Fatalf("rows = %d", len(store.rows))
	}
	var row Summary
	for _, r := range store.rows {
		row = r
	}
	if row.Counts.Total != 10 || row.Counts.Clean != 8 {
		t.Errorf("counts = %+v", row.Counts)
	}
	if row.OverallQualityScore != 80 {
		t.Errorf("score = %v, want 80", row.OverallQualityScore)
	}
	if row.Counts.Errors["negative_tvl"] != 1 {
		t.Errorf("error summary = %v", row.Counts.Errors)
	}
}

func TestAggregator_ReplacementNotAccumulation(t *testing.T) {
	store := newFakeStore()
	agg := NewAggregator(store, quietLogger())

	runCtx := run.NewContext("token-prices")
	runCtx.Metrics.RecordClean(false)
	agg.Record(context.Background(), runCtx)

	runCtx.Metrics.RecordClean(false)
	runCtx.Metrics.RecordScrubbed(false, nil)
	agg.Record(context.Background(), runCtx)

	if len(store.rows) != 1 {
		t.Fatalf("two calls with one run id left %d rows", len(store.rows))
	}
	var row Summary
	for _, r := range store.rows {
		row = r
	}
	// Latest call's counters, not a sum across calls.
	if row.Counts.Total != 3 || row.Counts.Clean != 2 || row.Counts.Scrubbed != 1 {
		t.Errorf("counts = %+v", row.Counts)
	}
}

func TestAggregator_ZeroRecords(t *testing.T) {
	store := newFakeStore()
	agg := NewAggregator(store, quietLogger())

	runCtx := run.NewContext("etf-flows")
	agg.Record(context.Background(), runCtx)

	for _, row := range store.rows {
		if row.OverallQualityScore != 0 {
			t.Errorf("score for empty run = %v, want 0", row.OverallQualityScore)
		}
	}
}

func TestAggregator_SwallowsPersistenceFailure(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("summary table locked")
	agg := NewAggregator(store, quietLogger())

	// Must not panic or propagate; the primary job's outcome stands.
	agg.Record(context.Background(), run.NewContext("token-prices"))
}
