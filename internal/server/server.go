// Package server is the thin HTTP adapter over the ingestion jobs. It parses
// trigger parameters and renders run verdicts; it never sits between internal
// components.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Aiuser8/defi-alive-jobs/internal/job"
	"github.com/Aiuser8/defi-alive-jobs/internal/store"
)

// Catalog answers candidate-set questions for the status endpoint.
type Catalog interface {
	Count(ctx context.Context, kind string) (int, error)
	HighWaterMark(ctx context.Context, kind string) (time.Time, error)
}

// Server hosts one trigger endpoint per ingestion job.
type Server struct {
	jobs    *job.Set
	store   *store.Store
	catalog Catalog
	log     logrus.FieldLogger
}

// New creates the HTTP server.
func New(jobs *job.Set, st *store.Store, catalog Catalog, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{jobs: jobs, store: st, catalog: catalog, log: log}
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.Health)
	r.GET("/jobs", s.ListJobs)
	r.GET("/jobs/:name", s.JobStatus)
	r.POST("/jobs/:name/run", s.RunJob)

	return r
}

// Health reports process and database liveness.
func (s *Server) Health(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListJobs returns the registered job names.
func (s *Server) ListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": s.jobs.Names()})
}

// JobStatus reports a job's candidate-set size and its landing high-water
// mark. A failed run is resumed by re-triggering with a candidate set narrowed
// to entries older than the mark.
func (s *Server) JobStatus(c *gin.Context) {
	name := c.Param("name")
	j, ok := s.jobs.Get(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "unknown job: " + name})
		return
	}

	ctx := c.Request.Context()
	count, err := s.catalog.Count(ctx, j.EntityKind)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "job": name, "error": err.Error()})
		return
	}
	mark, err := s.catalog.HighWaterMark(ctx, j.EntityKind)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "job": name, "error": err.Error()})
		return
	}

	body := gin.H{
		"job":         name,
		"entity_kind": j.EntityKind,
		"candidates":  count,
	}
	if !mark.IsZero() {
		body["high_water_mark"] = mark.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, body)
}

// RunJob triggers one ingestion run. Any handled completion answers 200 with
// the verdict in the body, partial failure included; 423 means another full
// sync holds the lock; 500 is reserved for setup failure.
func (s *Server) RunJob(c *gin.Context) {
	name := c.Param("name")
	j, ok := s.jobs.Get(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "unknown job: " + name})
		return
	}

	params, err := parseParams(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "job": name, "error": err.Error()})
		return
	}

	ctx := c.Request.Context()

	// A run over the whole candidate set is a full sync; those must not
	// overlap. Narrowed runs coexist freely.
	if params.Offset == 0 && params.Limit == 0 {
		lock, err := s.store.AcquireRunLock(ctx, name, "full")
		if errors.Is(err, store.ErrLockHeld) {
			c.JSON(http.StatusLocked, gin.H{"success": false, "job": name, "error": "a full sync for this job is already running"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "job": name, "error": err.Error()})
			return
		}
		defer lock.Unlock(ctx)
	}

	result, err := j.Run(ctx, *params)
	if err != nil {
		s.log.WithField("job", name).Errorf("run setup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "job": name, "error": err.Error()})
		return
	}

	counts := result.Run.Metrics.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"success": result.Dispatch.Success,
		"job":     name,
		"run_id":  result.Run.RunID,
		"metrics": gin.H{
			"total_records":         counts.Total,
			"clean_records":         counts.Clean,
			"scrubbed_records":      counts.Scrubbed,
			"error_records":         counts.Errored,
			"outlier_records":       counts.Outliers,
			"overall_quality_score": counts.QualityScore(),
			"processing_time_ms":    result.Run.Elapsed(),
			"error_summary":         counts.Errors,
		},
		"batches": gin.H{
			"total":        result.Dispatch.TotalBatches,
			"successful":   result.Dispatch.SuccessfulBatches,
			"failed":       result.Dispatch.FailedBatches,
			"success_rate": result.Dispatch.SuccessRate,
		},
	})
}
