package scrub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Aiuser8/defi-alive-jobs/internal/quality"
	"github.com/Aiuser8/defi-alive-jobs/internal/run"
)

// Entry is one append-only quarantine row. It always carries the full
// original payload so a rejected record can be replayed later.
type Entry struct {
	TargetCollection string
	Fields           map[string]any
	Result           quality.Result
	RunID            string
	JobName          string
	OriginalPayload  []byte
	RetryCount       int
	InsertedAt       time.Time
}

// Store persists quarantine entries.
type Store interface {
	InsertScrubEntry(ctx context.Context, e Entry) error
}

// Router maps rejected records onto their quarantine collection and persists
// them. Route never fails the caller: a broken audit write must not abort the
// batch that triggered it.
type Router struct {
	mappings *MappingRegistry
	store    Store
	log      logrus.FieldLogger
}

// NewRouter creates a scrub router over the given mapping registry and store.
func NewRouter(mappings *MappingRegistry, store Store, log logrus.FieldLogger) *Router {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Router{mappings: mappings, store: store, log: log}
}

// Route persists one rejected record with its diagnostics. Mapping misses and
// persistence failures are logged and swallowed.
func (r *Router) Route(ctx context.Context, runCtx *run.Context, collection string, rec quality.Record, result quality.Result) {
	fields := r.mappings.Apply(collection, rec)
	if len(fields) == 0 {
		r.log.WithFields(logrus.Fields{
			"job":        runCtx.JobName,
			"run_id":     runCtx.RunID,
			"collection": collection,
		}).Warn("no fields survived scrub mapping, skipping quarantine write")
		return
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		// Raw records come straight off a JSON decode, so this only happens
		// if a job injected an unmarshalable value.
		r.log.WithField("collection", collection).Warnf("could not serialize original payload: %v", err)
		payload = nil
	}

	entry := Entry{
		TargetCollection: collection,
		Fields:           fields,
		Result:           result,
		RunID:            runCtx.RunID,
		JobName:          runCtx.JobName,
		OriginalPayload:  payload,
		InsertedAt:       time.Now().UTC(),
	}

	if err := r.store.InsertScrubEntry(ctx, entry); err != nil {
		r.log.WithFields(logrus.Fields{
			"job":        runCtx.JobName,
			"run_id":     runCtx.RunID,
			"collection": collection,
		}).Errorf("quarantine write failed: %v", err)
	}
}
