// Package dispatch partitions a candidate set into bounded batches and runs
// them under a sliding concurrency window with per-batch fault isolation.
package dispatch

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Aiuser8/defi-alive-jobs/internal/run"
)

// DefaultSuccessThreshold is the fraction of batches that must succeed for a
// dispatch to count as an overall success.
const DefaultSuccessThreshold = 0.7

// Batch is one planned slice of the candidate set.
type Batch struct {
	Index  int
	Offset int
	Limit  int
}

// BatchFn executes one batch and reports its quality counters. Any error or
// panic is contained at the dispatcher boundary.
type BatchFn func(ctx context.Context, b Batch) (run.Counts, error)

// Outcome records how one planned batch finished. Exactly one outcome exists
// per planned batch, success or failure.
type Outcome struct {
	Batch   Batch
	Success bool
	Counts  run.Counts
	Err     error
}

// Summary is the verdict for one dispatch call.
type Summary struct {
	TotalBatches      int
	SuccessfulBatches int
	FailedBatches     int
	SuccessRate       float64
	Success           bool
	Outcomes          []Outcome
}

// Counts sums the counters of every batch that produced them.
func (s Summary) Counts() run.Counts {
	var total run.Counts
	for _, o := range s.Outcomes {
		total = total.Add(o.Counts)
	}
	return total
}

// Option adjusts dispatcher behavior.
type Option func(*settings)

type settings struct {
	successThreshold float64
	batchTimeout     time.Duration
	log              logrus.FieldLogger
}

// WithSuccessThreshold overrides the fraction of batches that must succeed.
func WithSuccessThreshold(fraction float64) Option {
	return func(s *settings) {
		if fraction > 0 && fraction <= 1 {
			s.successThreshold = fraction
		}
	}
}

// WithBatchTimeout bounds each batch with a deadline. The deadline is carried
// by the batch's context, so timed-out I/O is cancelled rather than left
// running in the background.
func WithBatchTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.batchTimeout = d
	}
}

// WithLogger routes dispatcher logging to the given logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *settings) {
		s.log = log
	}
}

// Plan splits a candidate set into fixed-size sequential slices. The final
// batch takes the remainder, so the limits always sum to candidateSetSize.
func Plan(candidateSetSize, batchSize int) []Batch {
	if candidateSetSize <= 0 || batchSize <= 0 {
		return nil
	}
	count := (candidateSetSize + batchSize - 1) / batchSize
	batches := make([]Batch, count)
	for i := 0; i < count; i++ {
		offset := i * batchSize
		limit := batchSize
		if offset+limit > candidateSetSize {
			limit = candidateSetSize - offset
		}
		batches[i] = Batch{Index: i, Offset: offset, Limit: limit}
	}
	return batches
}

// Dispatch runs the planned batches in sliding windows of maxConcurrency.
// Each window is fully launched, then the dispatcher waits for every batch in
// it before launching the next. A failing or panicking batch yields a failed
// outcome and never aborts its siblings.
func Dispatch(ctx context.Context, candidateSetSize, batchSize, maxConcurrency int, fn BatchFn, opts ...Option) Summary {
	cfg := settings{
		successThreshold: DefaultSuccessThreshold,
		log:              logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	batches := Plan(candidateSetSize, batchSize)
	outcomes := make([]Outcome, len(batches))

	for start := 0; start < len(batches); start += maxConcurrency {
		end := start + maxConcurrency
		if end > len(batches) {
			end = len(batches)
		}

		var wg sync.WaitGroup
		for _, b := range batches[start:end] {
			wg.Add(1)
			go func(b Batch) {
				defer wg.Done()
				outcomes[b.Index] = runBatch(ctx, b, fn, &cfg)
			}(b)
		}
		wg.Wait()
	}

	return verdict(outcomes, cfg.successThreshold)
}

// runBatch invokes one batch, converting errors and panics into an Outcome.
func runBatch(ctx context.Context, b Batch, fn BatchFn, cfg *settings) (out Outcome) {
	out.Batch = b

	defer func() {
		if r := recover(); r != nil {
			out.Success = false
			out.Err = fmt.Errorf("batch %d panicked: %v", b.Index, r)
			cfg.log.WithField("batch", b.Index).Errorf("recovered batch panic: %v", r)
		}
	}()

	batchCtx := ctx
	if cfg.batchTimeout > 0 {
		var cancel context.CancelFunc
		batchCtx, cancel = context.WithTimeout(ctx, cfg.batchTimeout)
		defer cancel()
	}

	counts, err := fn(batchCtx, b)
	out.Counts = counts
	if err != nil {
		out.Success = false
		out.Err = err
		cfg.log.WithField("batch", b.Index).Warnf("batch failed: %v", err)
		return out
	}
	out.Success = true
	return out
}

// verdict computes the partial-success decision: the run succeeds iff
// successfulBatches >= ceil(totalBatches * threshold).
func verdict(outcomes []Outcome, threshold float64) Summary {
	s := Summary{
		TotalBatches: len(outcomes),
		Outcomes:     outcomes,
	}
	for _, o := range outcomes {
		if o.Success {
			s.SuccessfulBatches++
		} else {
			s.FailedBatches++
		}
	}
	if s.TotalBatches > 0 {
		s.SuccessRate = float64(s.SuccessfulBatches) / float64(s.TotalBatches)
	}
	required := int(math.Ceil(float64(s.TotalBatches) * threshold))
	s.Success = s.SuccessfulBatches >= required
	return s
}
