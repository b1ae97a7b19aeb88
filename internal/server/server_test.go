package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/urlrisk/internal/database"
	"github.com/nao1215/urlrisk/internal/model"
)

var scanDate = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeScanner struct {
	mu   sync.Mutex
	urls []string
}

func (f *fakeScanner) Scan(_ context.Context, rawURL string) *model.ScanResult {
	f.mu.Lock()
	f.urls = append(f.urls, rawURL)
	f.mu.Unlock()

	target, _ := model.NormalizeURL(rawURL)
	r := model.NewScanResult(target, scanDate)
	r.ThreatScore = 2
	return r
}

type fakeHistory struct {
	results map[string]*model.ScanResult
	err     error
	query   database.Query
}

func (f *fakeHistory) Recent(_ context.Context, q database.Query) ([]database.Summary, error) {
	f.query = q
	if f.err != nil {
		return nil, f.err
	}
	out := make([]database.Summary, 0, len(f.results))
	for id, r := range f.results {
		out = append(out, database.Summary{ID: id, URL: r.URL, ThreatLevel: r.ThreatLevel})
	}
	return out, nil
}

func (f *fakeHistory) Get(_ context.Context, id string) (*model.ScanResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.results[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", database.ErrNotFound, id)
	}
	return r, nil
}

func newTestServer(opts ...Option) (*Server, *fakeScanner) {
	sc := &fakeScanner{}
	return New(sc, append([]Option{WithLogger(discardLogger())}, opts...)...), sc
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer()
	rec := do(t, s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
}

func TestScan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"valid url", `{"url":"example.com"}`, http.StatusOK, ""},
		{"invalid json", `{"url":`, http.StatusBadRequest, "invalid JSON"},
		{"missing url", `{}`, http.StatusBadRequest, "url is required"},
		{"unsupported scheme", `{"url":"ftp://example.com"}`, http.StatusBadRequest, ""},
		{"oversized body", `{"url":"` + strings.Repeat("a", 5000) + `"}`, http.StatusRequestEntityTooLarge, "too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, sc := newTestServer()
			rec := do(t, s, http.MethodPost, "/api/v1/scan", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				if len(sc.urls) != 0 {
					t.Error("rejected request reached the scanner")
				}
				if !strings.Contains(rec.Body.String(), tt.wantError) {
					t.Errorf("body = %s, want %q", rec.Body.String(), tt.wantError)
				}
				return
			}

			var result model.ScanResult
			if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
				t.Fatalf("invalid response: %v", err)
			}
			if result.URL != "https://example.com" || result.ThreatScore != 2 {
				t.Errorf("result = %+v", result)
			}
		})
	}
}

func TestScanRateLimit(t *testing.T) {
	t.Parallel()

	s, sc := newTestServer(WithRateLimit(0.001, 2))
	for i, want := range []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests} {
		rec := do(t, s, http.MethodPost, "/api/v1/scan", `{"url":"example.com"}`)
		if rec.Code != want {
			t.Fatalf("request %d: status = %d, want %d", i, rec.Code, want)
		}
		if want == http.StatusTooManyRequests && rec.Header().Get("Retry-After") == "" {
			t.Error("Retry-After missing")
		}
	}
	if len(sc.urls) != 2 {
		t.Errorf("scanner called %d times, want 2", len(sc.urls))
	}

	// History is not rate limited.
	if rec := do(t, s, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}
}

func TestHistory(t *testing.T) {
	t.Parallel()

	stored := model.NewScanResult("https://example.com/", scanDate)
	newHistory := func() *fakeHistory {
		return &fakeHistory{results: map[string]*model.ScanResult{"abc": stored}}
	}

	t.Run("list", func(t *testing.T) {
		t.Parallel()
		h := newHistory()
		s, _ := newTestServer(WithHistory(h))
		rec := do(t, s, http.MethodGet, "/api/v1/history?url=example.com&limit=5", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var got []database.Summary
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("invalid response: %v", err)
		}
		if len(got) != 1 || got[0].ID != "abc" {
			t.Errorf("got %+v", got)
		}
		if h.query.URL != "https://example.com" || h.query.Limit != 5 {
			t.Errorf("query = %+v, want normalized url and limit", h.query)
		}
	})

	t.Run("bad limit", func(t *testing.T) {
		t.Parallel()
		s, _ := newTestServer(WithHistory(newHistory()))
		if rec := do(t, s, http.MethodGet, "/api/v1/history?limit=-1", ""); rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("get", func(t *testing.T) {
		t.Parallel()
		s, _ := newTestServer(WithHistory(newHistory()))
		rec := do(t, s, http.MethodGet, "/api/v1/history/abc", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"url":"https://example.com/"`) {
			t.Errorf("body = %s", rec.Body.String())
		}
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		s, _ := newTestServer(WithHistory(newHistory()))
		if rec := do(t, s, http.MethodGet, "/api/v1/history/nope", ""); rec.Code != http.StatusNotFound {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("store error", func(t *testing.T) {
		t.Parallel()
		h := newHistory()
		h.err = errors.New("database is locked")
		s, _ := newTestServer(WithHistory(h))
		rec := do(t, s, http.MethodGet, "/api/v1/history", "")
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d", rec.Code)
		}
		if strings.Contains(rec.Body.String(), "locked") {
			t.Error("internal error leaked to the client")
		}
	})

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()
		s, _ := newTestServer()
		if rec := do(t, s, http.MethodGet, "/api/v1/history", ""); rec.Code != http.StatusNotFound {
			t.Errorf("status = %d", rec.Code)
		}
	})
}

func TestUnknownRouteAndMethod(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer()
	if rec := do(t, s, http.MethodGet, "/api/v1/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/v1/scan", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /scan status = %d", rec.Code)
	}
}

// deadlineScanner blocks until its context ends and returns a timeout result.
type deadlineScanner struct {
	hadDeadline bool
}

func (d *deadlineScanner) Scan(ctx context.Context, rawURL string) *model.ScanResult {
	_, d.hadDeadline = ctx.Deadline()
	<-ctx.Done()
	target, _ := model.NormalizeURL(rawURL)
	r := model.NewScanResult(target, scanDate)
	r.Error = "timeout: " + ctx.Err().Error()
	r.ThreatScore = 4
	r.ThreatLevel = model.ThreatSuspicious
	return r
}

func TestScanTimeoutAnswersWithResult(t *testing.T) {
	t.Parallel()

	sc := &deadlineScanner{}
	s := New(sc, WithLogger(discardLogger()), WithScanTimeout(20*time.Millisecond))
	rec := do(t, s, http.MethodPost, "/api/v1/scan", `{"url":"slow.example.com"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	if !sc.hadDeadline {
		t.Error("scan context carried no deadline")
	}
	var result model.ScanResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if result.ThreatScore != 4 || !strings.HasPrefix(result.Error, "timeout") {
		t.Errorf("result = %d/%q, want the timeout verdict", result.ThreatScore, result.Error)
	}
}

type panicScanner struct{}

func (panicScanner) Scan(context.Context, string) *model.ScanResult { panic("boom") }

func TestRecoverer(t *testing.T) {
	t.Parallel()

	s := New(panicScanner{}, WithLogger(discardLogger()))
	rec := do(t, s, http.MethodPost, "/api/v1/scan", `{"url":"example.com"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s, _ := newTestServer()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
