package marketdata

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

// stubTransport serves canned responses in order, recording each request.
type stubTransport struct {
	responses []stubResponse
	requests  []*http.Request
}

type stubResponse struct {
	status int
	body   string
}

func (s *stubTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s.requests = append(s.requests, req)
	i := len(s.requests) - 1
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	r := s.responses[i]
	return &http.Response{
		StatusCode: r.status,
		Body:       io.NopCloser(strings.NewReader(r.body)),
		Header:     make(http.Header),
	}, nil
}

func newTestClient(transport *stubTransport, groupSize int) *Client {
	return NewClient(&ClientConfig{
		BaseURL:    "http://upstream.test",
		APIKey:     "test-key",
		RateLimit:  1000,
		RateBurst:  100,
		GroupSize:  groupSize,
		GroupDelay: time.Millisecond,
		Transport:  transport,
	})
}

func TestGetRetriesServerErrors(t *testing.T) {
	transport := &stubTransport{responses: []stubResponse{
		{status: 500, body: "boom"},
		{status: 429, body: "slow down"},
		{status: 200, body: `{"ok":true}`},
	}}
	client := newTestClient(transport, 50)

	resp, err := client.Get(context.Background(), "/v1/prices/current", nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("StatusCode = %d", resp.StatusCode)
	}
	if len(transport.requests) != 3 {
		t.Errorf("requests = %d, want retry through 500 and 429", len(transport.requests))
	}
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	transport := &stubTransport{responses: []stubResponse{
		{status: 400, body: "bad request"},
	}}
	client := newTestClient(transport, 50)

	_, err := client.Get(context.Background(), "/v1/prices/current", nil)

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("err = %v, want HTTPError", err)
	}
	if httpErr.StatusCode != 400 {
		t.Errorf("StatusCode = %d", httpErr.StatusCode)
	}
	if len(transport.requests) != 1 {
		t.Errorf("requests = %d, a 400 must not be retried", len(transport.requests))
	}
}

func TestGetExhaustsRetries(t *testing.T) {
	transport := &stubTransport{responses: []stubResponse{
		{status: 503, body: "unavailable"},
	}}
	client := newTestClient(transport, 50)

	_, err := client.Get(context.Background(), "/v1/prices/current", nil)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	// MaxRetries defaults to 3: one initial attempt plus three retries.
	if len(transport.requests) != 4 {
		t.Errorf("requests = %d, want 4", len(transport.requests))
	}
}

func TestGetSetsAPIKeyHeader(t *testing.T) {
	transport := &stubTransport{responses: []stubResponse{
		{status: 200, body: `{}`},
	}}
	client := newTestClient(transport, 50)

	if _, err := client.Get(context.Background(), "/v1/pools", nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := transport.requests[0].Header.Get("x-api-key"); got != "test-key" {
		t.Errorf("x-api-key = %q", got)
	}
}

func TestGetPricesGroupsIdentifiers(t *testing.T) {
	transport := &stubTransport{responses: []stubResponse{
		{status: 200, body: `{"ethereum:0xa":{"price":1},"ethereum:0xb":{"price":2}}`},
		{status: 200, body: `{"ethereum:0xc":{"price":3}}`},
	}}
	client := newTestClient(transport, 2)

	recs, err := client.GetPrices(context.Background(), []string{"ethereum:0xa", "ethereum:0xb", "ethereum:0xc"})
	if err != nil {
		t.Fatalf("GetPrices: %v", err)
	}

	if len(transport.requests) != 2 {
		t.Fatalf("requests = %d, want identifiers split into groups of 2", len(transport.requests))
	}
	if got := transport.requests[0].URL.Query().Get("tokens"); got != "ethereum:0xa,ethereum:0xb" {
		t.Errorf("first group = %q", got)
	}
	if got := transport.requests[1].URL.Query().Get("tokens"); got != "ethereum:0xc" {
		t.Errorf("second group = %q", got)
	}
	if len(recs) != 3 {
		t.Errorf("merged records = %d", len(recs))
	}
}

func TestGetETFFlowsDateWindow(t *testing.T) {
	transport := &stubTransport{responses: []stubResponse{
		{status: 200, body: `{}`},
	}}
	client := newTestClient(transport, 50)

	since := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)
	if _, err := client.GetETFFlows(context.Background(), []string{"IBIT"}, since, until, false); err != nil {
		t.Fatalf("GetETFFlows: %v", err)
	}

	q := transport.requests[0].URL.Query()
	if q.Get("start_date") != "2025-03-01" || q.Get("end_date") != "2025-03-07" {
		t.Errorf("date window = %q..%q", q.Get("start_date"), q.Get("end_date"))
	}
}

func TestGetETFFlowsFullIgnoresWindow(t *testing.T) {
	transport := &stubTransport{responses: []stubResponse{
		{status: 200, body: `{}`},
	}}
	client := newTestClient(transport, 50)

	since := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	if _, err := client.GetETFFlows(context.Background(), []string{"IBIT"}, since, time.Time{}, true); err != nil {
		t.Fatalf("GetETFFlows: %v", err)
	}

	q := transport.requests[0].URL.Query()
	if q.Has("start_date") || q.Has("end_date") {
		t.Error("full history request must not carry a date window")
	}
}
