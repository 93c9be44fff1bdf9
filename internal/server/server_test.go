package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Aiuser8/defi-alive-jobs/internal/job"
)

type fakeCatalog struct {
	count int
	mark  time.Time
}

func (f *fakeCatalog) Count(_ context.Context, _ string) (int, error) {
	return f.count, nil
}

func (f *fakeCatalog) HighWaterMark(_ context.Context, _ string) (time.Time, error) {
	return f.mark, nil
}

func testRouter(t *testing.T, catalog Catalog) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	// Storage and feed collaborators stay unwired: these tests only
	// exercise routing, the job index, and the status endpoint.
	jobs, err := job.NewSet(job.SetConfig{Log: log})
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	return New(jobs, nil, catalog, log).Router()
}

func TestListJobs(t *testing.T) {
	router := testRouter(t, &fakeCatalog{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/jobs", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Jobs []string `json:"jobs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []string{"etf-flows", "lending-markets", "liquidity-pools", "protocol-tvl", "stablecoin-caps", "token-prices"}
	if len(body.Jobs) != len(want) {
		t.Fatalf("jobs = %v", body.Jobs)
	}
	for i, name := range want {
		if body.Jobs[i] != name {
			t.Errorf("jobs[%d] = %q, want %q", i, body.Jobs[i], name)
		}
	}
}

func TestRunJobUnknownName(t *testing.T) {
	router := testRouter(t, &fakeCatalog{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/jobs/nope/run", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRunJobMalformedParams(t *testing.T) {
	router := testRouter(t, &fakeCatalog{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/jobs/token-prices/run?offset=abc", nil))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestJobStatus(t *testing.T) {
	mark := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	router := testRouter(t, &fakeCatalog{count: 1200, mark: mark})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/jobs/token-prices", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Job           string `json:"job"`
		EntityKind    string `json:"entity_kind"`
		Candidates    int    `json:"candidates"`
		HighWaterMark string `json:"high_water_mark"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Job != "token-prices" || body.EntityKind != "price" {
		t.Errorf("body = %+v", body)
	}
	if body.Candidates != 1200 {
		t.Errorf("candidates = %d", body.Candidates)
	}
	if body.HighWaterMark != "2026-08-30T12:00:00Z" {
		t.Errorf("high_water_mark = %q", body.HighWaterMark)
	}
}

func TestJobStatusOmitsEmptyMark(t *testing.T) {
	router := testRouter(t, &fakeCatalog{count: 3})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/jobs/etf-flows", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, present := body["high_water_mark"]; present {
		t.Error("a never-landed job must not report a high-water mark")
	}
}
