package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/Aiuser8/defi-alive-jobs/internal/report"
	"github.com/Aiuser8/defi-alive-jobs/internal/scrub"
)

// InsertScrubEntry appends one row to the entry's quarantine collection.
// There is no natural-key dedup here; dedup is a reporting-time concern.
func (s *Store) InsertScrubEntry(ctx context.Context, e scrub.Entry) error {
	// Column names come from the startup-validated mapping registry, never
	// from record data, so building the statement from them is safe.
	cols := make([]string, 0, len(e.Fields))
	for col := range e.Fields {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	args := make([]any, 0, len(cols)+7)
	placeholders := make([]string, 0, len(cols)+7)
	for i, col := range cols {
		args = append(args, e.Fields[col])
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
	}
	diag := []any{
		e.Result.Score,
		e.Result.ErrorStrings(),
		e.Result.Outlier,
		e.Result.OutlierReason,
		e.JobName,
		e.RunID,
		e.OriginalPayload,
		e.RetryCount,
	}
	for _, v := range diag {
		args = append(args, v)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	allCols := append(cols,
		"quality_score", "error_codes", "is_outlier", "outlier_reason",
		"job_name", "run_id", "original_payload", "retry_count")

	stmt := fmt.Sprintf(
		"INSERT INTO quarantine.%s (%s, inserted_at) VALUES (%s, now())",
		e.TargetCollection,
		strings.Join(allCols, ", "),
		strings.Join(placeholders, ", "),
	)
	_, err := s.pool.Exec(ctx, stmt, args...)
	return err
}

// UpsertQualitySummary writes the one summary row for a run. A later call for
// the same (job_name, run_id) overwrites the counters, it does not accumulate.
func (s *Store) UpsertQualitySummary(ctx context.Context, sum report.Summary) error {
	errSummary, err := json.Marshal(sum.Counts.Errors)
	if err != nil {
		return fmt.Errorf("marshal error summary: %w", err)
	}
	const stmt = `
INSERT INTO quarantine.quality_summaries
  (job_name, run_id, total_records, clean_records, scrubbed_records, error_records,
   outlier_records, overall_quality_score, processing_time_ms, error_summary, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (job_name, run_id) DO UPDATE SET
  total_records = EXCLUDED.total_records,
  clean_records = EXCLUDED.clean_records,
  scrubbed_records = EXCLUDED.scrubbed_records,
  error_records = EXCLUDED.error_records,
  outlier_records = EXCLUDED.outlier_records,
  overall_quality_score = EXCLUDED.overall_quality_score,
  processing_time_ms = EXCLUDED.processing_time_ms,
  error_summary = EXCLUDED.error_summary,
  finished_at = EXCLUDED.finished_at`
	_, err = s.pool.Exec(ctx, stmt,
		sum.JobName, sum.RunID,
		sum.Counts.Total, sum.Counts.Clean, sum.Counts.Scrubbed, sum.Counts.Errored,
		sum.Counts.Outliers, sum.OverallQualityScore, sum.ProcessingTimeMs,
		errSummary, sum.FinishedAt,
	)
	return err
}
