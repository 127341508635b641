package ratefeed_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"roomledger/internal/adapters/ratefeed"
	"roomledger/internal/domain"
)

func TestClient_GetCategoryRates_RetriesThenSuccess(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch atomic.AddInt32(&hits, 1) {
		case 1, 2:
			// two transient failures
			w.WriteHeader(500)
		default:
			w.WriteHeader(200)
			_, _ = w.Write([]byte(`[{"id":"r-1","start":"2025-03-01","end":"2025-03-31","price":130}]`))
		}
	}))
	defer ts.Close()

	cl, err := ratefeed.New(ts.URL, "test-key", 100) // high RPS for tests
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := cl.GetCategoryRates(ctx, 7)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 1 || got[0]["id"] != "r-1" {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if atomic.LoadInt32(&hits) < 3 {
		t.Fatalf("expected at least 3 calls due to retries, got %d", hits)
	}
}

func TestClient_GetCategoryRates_EnvelopeAndLegacyPath(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/room-types/7/rates" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"a"},{"id":"b"}]}`))
	}))
	defer ts.Close()

	cl, _ := ratefeed.New(ts.URL, "test-key", 100)
	got, err := cl.GetCategoryRates(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestClient_GetCategoryRates_MissKinds(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()
	cl, _ := ratefeed.New(ts.URL, "test-key", 100)
	if _, err := cl.GetCategoryRates(context.Background(), 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("404: got %v", err)
	}

	forbidden := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer forbidden.Close()
	cl, _ = ratefeed.New(forbidden.URL, "test-key", 100)
	if _, err := cl.GetCategoryRates(context.Background(), 1); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("403: got %v", err)
	}
}

func TestNew_RequiresKeyAndBase(t *testing.T) {
	if _, err := ratefeed.New("http://feed", "", 1); err == nil {
		t.Fatal("expected error without key")
	}
	if _, err := ratefeed.New("", "k", 1); err == nil {
		t.Fatal("expected error without base URL")
	}
}

func TestClient_GetCategoryRates_BadRequestIsFinal(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "unknown currency", http.StatusBadRequest)
	}))
	defer ts.Close()

	cl, _ := ratefeed.New(ts.URL, "test-key", 100)
	_, err := cl.GetCategoryRates(context.Background(), 3)
	var se *ratefeed.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadRequest || se.Body != "unknown currency" {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("400 must not be retried, got %d calls", n)
	}
}

func TestClient_GetCategoryRates_GivesUpAfterMaxAttempts(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	cl, _ := ratefeed.New(ts.URL, "test-key", 100, ratefeed.WithMaxAttempts(2))
	_, err := cl.GetCategoryRates(context.Background(), 3)
	var se *ratefeed.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Fatalf("expected 2 attempts, got %d", n)
	}
}

func TestClient_RetriesWaitForTheLimiter(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	// one token per second, burst one: the two retries each wait for a fresh token
	cl, _ := ratefeed.New(ts.URL, "test-key", 1)
	start := time.Now()
	if _, err := cl.GetCategoryRates(context.Background(), 3); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 1500*time.Millisecond {
		t.Fatalf("retries bypassed the limiter: 3 calls in %s", elapsed)
	}
}
