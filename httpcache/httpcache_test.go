package httpcache_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/offload/cache/memory"
	"github.com/xraph/offload/httpcache"
)

type downStore struct{}

var errDown = errors.New("down")

func (downStore) Get(context.Context, string) ([]byte, error)              { return nil, errDown }
func (downStore) Set(context.Context, string, []byte, time.Duration) error { return errDown }
func (downStore) Delete(context.Context, string) error                     { return errDown }
func (downStore) Clear(context.Context) error                              { return errDown }
func (downStore) Ping(context.Context) error                               { return errDown }

// stamped answers with a body that changes on every call.
func stamped(calls *atomic.Int32) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"timestamp":%d}`, n)
	})
}

func do(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestMiddleware_ReplaysResponse(t *testing.T) {
	var calls atomic.Int32
	h := httpcache.New(memory.New(), 300*time.Second).Middleware(stamped(&calls))

	first := do(h, http.MethodGet, "/cache/full-view/")
	if first.Header().Get(httpcache.Header) != "MISS" {
		t.Errorf("first X-Cache = %q, want MISS", first.Header().Get(httpcache.Header))
	}
	second := do(h, http.MethodGet, "/cache/full-view/")
	if second.Header().Get(httpcache.Header) != "HIT" {
		t.Errorf("second X-Cache = %q, want HIT", second.Header().Get(httpcache.Header))
	}

	if first.Body.String() != second.Body.String() {
		t.Errorf("replayed body %q differs from original %q", second.Body, first.Body)
	}
	if second.Header().Get("Content-Type") != "application/json" {
		t.Error("stored headers not replayed")
	}
	if second.Header().Get("Cache-Control") != "max-age=300" {
		t.Errorf("Cache-Control = %q", second.Header().Get("Cache-Control"))
	}
	if calls.Load() != 1 {
		t.Errorf("handler ran %d times, want 1", calls.Load())
	}
}

func TestMiddleware_QueryOrderSharesKey(t *testing.T) {
	var calls atomic.Int32
	h := httpcache.New(memory.New(), time.Minute).Middleware(stamped(&calls))

	do(h, http.MethodGet, "/p?b=2&a=1")
	if rec := do(h, http.MethodGet, "/p?a=1&b=2"); rec.Header().Get(httpcache.Header) != "HIT" {
		t.Error("reordered query missed the cache")
	}
	do(h, http.MethodGet, "/p?a=1&b=3")
	if calls.Load() != 2 {
		t.Errorf("handler ran %d times, want 2", calls.Load())
	}
}

func TestMiddleware_CachesEmptyImplicitOK(t *testing.T) {
	var calls atomic.Int32
	h := httpcache.New(memory.New(), 300*time.Second).Middleware(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.Header().Set("X-Served", "yes")
		}),
	)

	first := do(h, http.MethodGet, "/cache/empty/")
	if first.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", first.Code)
	}
	if first.Header().Get(httpcache.Header) != "MISS" {
		t.Errorf("first X-Cache = %q, want MISS", first.Header().Get(httpcache.Header))
	}
	second := do(h, http.MethodGet, "/cache/empty/")
	if second.Header().Get(httpcache.Header) != "HIT" {
		t.Errorf("second X-Cache = %q, want HIT", second.Header().Get(httpcache.Header))
	}
	if second.Code != http.StatusOK || second.Header().Get("X-Served") != "yes" {
		t.Errorf("replay = %d %v, want 200 with stored headers", second.Code, second.Header())
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("handler ran %d times, want 1", n)
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		method, target, want string
	}{
		{http.MethodGet, "/cache/full-view/", "page:GET:/cache/full-view/"},
		{http.MethodGet, "/x?z=1&a=2", "page:GET:/x?a=2&z=1"},
		{http.MethodHead, "/x", "page:HEAD:/x"},
	}
	for _, tt := range tests {
		if got := httpcache.Key(httptest.NewRequest(tt.method, tt.target, nil)); got != tt.want {
			t.Errorf("Key(%s %s) = %q, want %q", tt.method, tt.target, got, tt.want)
		}
	}
}

func TestMiddleware_SkipsUncacheable(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		handler http.HandlerFunc
	}{
		{"post", http.MethodPost, func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) }},
		{"not found", http.MethodGet, func(w http.ResponseWriter, _ *http.Request) { http.NotFound(w, nil) }},
		{"no-store", http.MethodGet, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			_, _ = w.Write([]byte("ok"))
		}},
		{"cookie", http.MethodGet, func(w http.ResponseWriter, _ *http.Request) {
			http.SetCookie(w, &http.Cookie{Name: "s", Value: "1"})
			_, _ = w.Write([]byte("ok"))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New()
			h := httpcache.New(store, time.Minute).Middleware(tt.handler)
			do(h, tt.method, "/x")
			if rec := do(h, tt.method, "/x"); rec.Header().Get(httpcache.Header) == "HIT" {
				t.Error("uncacheable response served from cache")
			}
			if store.Len() != 0 {
				t.Errorf("stored %d entries", store.Len())
			}
		})
	}
}

func TestMiddleware_BackendDownServesUncached(t *testing.T) {
	var calls atomic.Int32
	h := httpcache.New(downStore{}, time.Minute).Middleware(stamped(&calls))

	for range 2 {
		rec := do(h, http.MethodGet, "/cache/full-view/")
		if rec.Code != http.StatusOK || rec.Body.Len() == 0 {
			t.Fatalf("response = %d %q", rec.Code, rec.Body)
		}
	}
	if calls.Load() != 2 {
		t.Errorf("handler ran %d times, want 2", calls.Load())
	}
}
