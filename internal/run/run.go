// Package run carries per-run identity and quality counters through a job.
//
// Every validate/route/aggregate call receives a *Context explicitly; there is
// no ambient run state. Counters are mutex-guarded so concurrent batches can
// share one run's metrics.
package run

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Context identifies one execution of a job.
type Context struct {
	JobName   string
	RunID     string
	StartedAt time.Time

	Metrics Metrics
}

// NewContext creates a run context with a fresh run id.
func NewContext(jobName string) *Context {
	return &Context{
		JobName:   jobName,
		RunID:     uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}
}

// Elapsed returns wall-clock time since the run started, in milliseconds.
func (c *Context) Elapsed() int64 {
	return time.Since(c.StartedAt).Milliseconds()
}

// Counts is an immutable snapshot of quality counters.
type Counts struct {
	Total    int            `json:"total_records"`
	Clean    int            `json:"clean_records"`
	Scrubbed int            `json:"scrubbed_records"`
	Errored  int            `json:"error_records"`
	Outliers int            `json:"outlier_records"`
	Errors   map[string]int `json:"error_summary,omitempty"`
}

// Add merges another snapshot into this one.
func (c Counts) Add(other Counts) Counts {
	sum := Counts{
		Total:    c.Total + other.Total,
		Clean:    c.Clean + other.Clean,
		Scrubbed: c.Scrubbed + other.Scrubbed,
		Errored:  c.Errored + other.Errored,
		Outliers: c.Outliers + other.Outliers,
	}
	if len(c.Errors) > 0 || len(other.Errors) > 0 {
		sum.Errors = make(map[string]int, len(c.Errors)+len(other.Errors))
		for code, n := range c.Errors {
			sum.Errors[code] += n
		}
		for code, n := range other.Errors {
			sum.Errors[code] += n
		}
	}
	return sum
}

// QualityScore derives the overall score as clean/total*100, 0 when empty.
// The score is always derived here, never supplied by a caller.
func (c Counts) QualityScore() float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Clean) / float64(c.Total) * 100
}

// Metrics accumulates quality counters for one run.
type Metrics struct {
	mu     sync.Mutex
	counts Counts
}

// RecordClean counts a record that passed validation and landed cleanly.
func (m *Metrics) RecordClean(outlier bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts.Total++
	m.counts.Clean++
	if outlier {
		m.counts.Outliers++
	}
}

// RecordScrubbed counts a record routed to quarantine, tallying its error codes.
func (m *Metrics) RecordScrubbed(outlier bool, codes []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts.Total++
	m.counts.Scrubbed++
	if outlier {
		m.counts.Outliers++
	}
	for _, code := range codes {
		if m.counts.Errors == nil {
			m.counts.Errors = make(map[string]int)
		}
		m.counts.Errors[code]++
	}
}

// RecordError counts a record lost to a fetch or processing error.
func (m *Metrics) RecordError(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts.Total++
	m.counts.Errored++
	if code != "" {
		if m.counts.Errors == nil {
			m.counts.Errors = make(map[string]int)
		}
		m.counts.Errors[code]++
	}
}

// Merge folds a batch-level snapshot into the run totals.
func (m *Metrics) Merge(other Counts) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts = m.counts.Add(other)
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() Counts {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.counts
	if m.counts.Errors != nil {
		out.Errors = make(map[string]int, len(m.counts.Errors))
		for code, n := range m.counts.Errors {
			out.Errors[code] = n
		}
	}
	return out
}
