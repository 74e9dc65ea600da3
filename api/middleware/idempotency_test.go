package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/iTakecare/leazr-backend/pkg/logger"
)

type fakeIdempotencyStore struct {
	mu      sync.Mutex
	records map[string]string
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{records: map[string]string{}}
}

func (f *fakeIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.records[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (f *fakeIdempotencyStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.records[key]; exists {
		return false, nil
	}
	f.records[key] = value.(string)
	return true, nil
}

func (f *fakeIdempotencyStore) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.records, key)
	}
	return nil
}

func (f *fakeIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "leazr:idempotency:" + scope + ":" + id
}

func idempotentRouter(store *fakeIdempotencyStore, calls *int) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	r := chi.NewRouter()
	r.Use(Idempotency(store, logg))
	r.Post("/api/v1/offers", func(w http.ResponseWriter, req *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"offer-1"}}`))
	})
	r.Post("/api/v1/offers/{offerID}/duration", func(w http.ResponseWriter, req *http.Request) {
		*calls++
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"data":{"duration_months":24}}`))
	})
	r.Get("/api/v1/offers", func(w http.ResponseWriter, req *http.Request) {
		*calls++
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeIdempotencyStore()
	calls := 0
	router := idempotentRouter(store, &calls)

	body := `{"client_name":"ACME"}`
	first := httptest.NewRequest(http.MethodPost, "/api/v1/offers", strings.NewReader(body))
	first.Header.Set("Idempotency-Key", "key-1")
	firstRec := httptest.NewRecorder()
	router.ServeHTTP(firstRec, first)

	if firstRec.Code != http.StatusCreated {
		t.Fatalf("expected 201 on first call, got %d", firstRec.Code)
	}
	if calls != 1 {
		t.Fatalf("expected handler invoked once, got %d", calls)
	}

	second := httptest.NewRequest(http.MethodPost, "/api/v1/offers", strings.NewReader(body))
	second.Header.Set("Idempotency-Key", "key-1")
	secondRec := httptest.NewRecorder()
	router.ServeHTTP(secondRec, second)

	if secondRec.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201, got %d", secondRec.Code)
	}
	if calls != 1 {
		t.Fatalf("expected handler not re-invoked, got %d calls", calls)
	}
	if got := secondRec.Body.String(); got != `{"data":{"id":"offer-1"}}` {
		t.Fatalf("unexpected replayed body: %s", got)
	}
	if ct := secondRec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected stored content type replayed, got %q", ct)
	}
}

func TestIdempotencyRejectsHashMismatch(t *testing.T) {
	store := newFakeIdempotencyStore()
	calls := 0
	router := idempotentRouter(store, &calls)

	first := httptest.NewRequest(http.MethodPost, "/api/v1/offers", strings.NewReader(`{"client_name":"ACME"}`))
	first.Header.Set("Idempotency-Key", "key-1")
	router.ServeHTTP(httptest.NewRecorder(), first)

	second := httptest.NewRequest(http.MethodPost, "/api/v1/offers", strings.NewReader(`{"client_name":"Globex"}`))
	second.Header.Set("Idempotency-Key", "key-1")
	secondRec := httptest.NewRecorder()
	router.ServeHTTP(secondRec, second)

	if secondRec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on key reuse with new body, got %d", secondRec.Code)
	}
	if calls != 1 {
		t.Fatalf("expected handler invoked once, got %d", calls)
	}
}

func TestIdempotencyRequiresHeaderOnGuardedRoutes(t *testing.T) {
	store := newFakeIdempotencyStore()
	calls := 0
	router := idempotentRouter(store, &calls)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/offers", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without Idempotency-Key, got %d", rec.Code)
	}
	if calls != 0 {
		t.Fatalf("expected handler not invoked, got %d calls", calls)
	}
}

func TestIdempotencySkipsUnguardedRoutes(t *testing.T) {
	store := newFakeIdempotencyStore()
	calls := 0
	router := idempotentRouter(store, &calls)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/offers", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if calls != 1 {
		t.Fatalf("expected handler invoked, got %d calls", calls)
	}
	if len(store.records) != 0 {
		t.Fatalf("expected nothing persisted for unguarded route, got %d records", len(store.records))
	}
}

func TestIdempotencyGuardsNestedOfferRoutes(t *testing.T) {
	store := newFakeIdempotencyStore()
	calls := 0
	router := idempotentRouter(store, &calls)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/offers/abc/duration", strings.NewReader(`{"duration_months":24}`))
	req.Header.Set("Idempotency-Key", "dur-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(store.records) != 1 {
		t.Fatalf("expected one stored record, got %d", len(store.records))
	}
}
