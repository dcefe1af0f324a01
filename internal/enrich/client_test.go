package enrich

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithRetries(2, time.Millisecond),
		WithRateLimit(1000, 1000),
	)
}

func TestHeadlines(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v8/finance/search" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "ACME" {
			t.Errorf("q = %q, want ACME", got)
		}
		if got := r.URL.Query().Get("newsCount"); got != "5" {
			t.Errorf("newsCount = %q, want 5", got)
		}
		w.Write([]byte(`{"news":[
			{"title":"FDA approval granted","providerPublishTime":1756100000},
			{"title":"Quiet market day"}
		]}`))
	})

	got, err := c.Headlines(context.Background(), "ACME")
	if err != nil {
		t.Fatalf("Headlines failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d headlines, want 2", len(got))
	}
	if got[0].Title != "FDA approval granted" {
		t.Errorf("Title = %q", got[0].Title)
	}
	if got[0].PublishedAt.Unix() != 1756100000 {
		t.Errorf("PublishedAt = %v", got[0].PublishedAt)
	}
	if !got[1].PublishedAt.IsZero() {
		t.Errorf("missing publish time should stay zero, got %v", got[1].PublishedAt)
	}
}

func TestHeadlines_NoneFound(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"news":[]}`))
	})

	got, err := c.Headlines(context.Background(), "DULL")
	if err != nil {
		t.Fatalf("Headlines failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d headlines, want 0", len(got))
	}
}

func TestHeadlines_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"news":[{"title":"Merger announced"}]}`))
	})

	got, err := c.Headlines(context.Background(), "MRGR")
	if err != nil {
		t.Fatalf("Headlines failed after retry: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d headlines, want 1", len(got))
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestHeadlines_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.Headlines(context.Background(), "NOPE")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("err = %v, want 404 APIError", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (no retry on 4xx)", calls.Load())
	}
}

func TestFetchProfile(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v10/finance/quoteSummary/ACME" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"quoteSummary":{"result":[{
			"price":{"shortName":"Acme Corp","averageDailyVolume3Month":{"raw":1500000}},
			"summaryProfile":{"sector":"Healthcare","industry":"Biotechnology"},
			"defaultKeyStatistics":{"floatShares":{"raw":8000000},"shortPercentOfFloat":{"raw":0.15}}
		}]}}`))
	})

	p, err := c.FetchProfile(context.Background(), "ACME")
	if err != nil {
		t.Fatalf("FetchProfile failed: %v", err)
	}
	if p.Name != "Acme Corp" || p.Sector != "Healthcare" {
		t.Errorf("profile = %+v", p)
	}
	if p.FloatShares == nil || *p.FloatShares != 8000000 {
		t.Errorf("FloatShares = %v, want 8000000", p.FloatShares)
	}
	if p.AvgVolume == nil || *p.AvgVolume != 1500000 {
		t.Errorf("AvgVolume = %v, want 1500000", p.AvgVolume)
	}
	if p.ShortPct == nil || *p.ShortPct != 0.15 {
		t.Errorf("ShortPct = %v, want 0.15", p.ShortPct)
	}
}

func TestFetchProfile_EmptyResult(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quoteSummary":{"result":[]}}`))
	})

	p, err := c.FetchProfile(context.Background(), "GONE")
	if err != nil {
		t.Fatalf("FetchProfile failed: %v", err)
	}
	if p.Name != "" || p.FloatShares != nil {
		t.Errorf("profile should be empty, got %+v", p)
	}
}
