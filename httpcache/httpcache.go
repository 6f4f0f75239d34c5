// Package httpcache caches whole HTTP responses in a cache.Store.
//
// A cached response is replayed byte for byte, body and headers included,
// until its TTL runs out. Only GET and HEAD requests answered with 200 are
// stored. The key is built from the method, the path and the sorted query
// string, so /a?x=1&y=2 and /a?y=2&x=1 share an entry.
package httpcache

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/xraph/offload/cache"
)

// Namespace prefixes every page key in the store.
const Namespace = "page:"

// Header reports whether a response came from the cache.
const Header = "X-Cache"

type stored struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithCodec sets the codec used for stored responses.
func WithCodec(codec cache.Codec) Option {
	return func(c *Cache) { c.codec = codec }
}

// Cache is a response cache over a cache.Store.
type Cache struct {
	acc    *cache.Accessor
	ttl    time.Duration
	codec  cache.Codec
	logger *slog.Logger
}

// New creates a Cache that keeps responses for ttl.
func New(store cache.Store, ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		ttl:    ttl,
		codec:  cache.JSONCodec{},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	c.acc = cache.New(store, cache.WithCodec(c.codec), cache.WithLogger(c.logger))
	return c
}

// Key returns the store key for r.
func Key(r *http.Request) string {
	var b strings.Builder
	b.WriteString(Namespace)
	b.WriteString(r.Method)
	b.WriteByte(':')
	b.WriteString(r.URL.Path)
	if q := r.URL.Query(); len(q) > 0 {
		b.WriteByte('?')
		b.WriteString(q.Encode())
	}
	return b.String()
}

// Middleware serves cached responses and stores fresh cacheable ones.
// Store failures are logged and the request is served uncached.
func (c *Cache) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		key := Key(r)
		ctx := r.Context()

		var hit stored
		found, err := c.acc.Get(ctx, key, &hit)
		if err != nil {
			c.logger.Warn("response cache read failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		if found {
			replay(w, &hit)
			return
		}

		rec := &recorder{ResponseWriter: w, maxAge: c.ttl}
		next.ServeHTTP(rec, r)
		// A handler that wrote nothing answered an implicit 200.
		if rec.status == 0 {
			rec.WriteHeader(http.StatusOK)
		}
		if !rec.cacheable() {
			return
		}
		page := stored{Status: rec.status, Header: rec.header, Body: rec.body.Bytes()}
		if err := c.acc.Set(ctx, key, page, c.ttl); err != nil {
			c.logger.Warn("response cache write failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	})
}

func replay(w http.ResponseWriter, s *stored) {
	h := w.Header()
	for k, v := range s.Header {
		h[k] = append([]string(nil), v...)
	}
	h.Set(Header, "HIT")
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

// recorder passes the response through while keeping a copy of it.
type recorder struct {
	http.ResponseWriter
	maxAge time.Duration

	status int
	header http.Header
	body   bytes.Buffer
}

func (r *recorder) WriteHeader(code int) {
	if r.status != 0 {
		return
	}
	r.status = code
	h := r.ResponseWriter.Header()
	if code == http.StatusOK && h.Get("Cache-Control") == "" && r.maxAge > 0 {
		h.Set("Cache-Control", "max-age="+strconv.Itoa(int(r.maxAge.Seconds())))
	}
	r.header = h.Clone()
	h.Set(Header, "MISS")
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(p)
	return r.ResponseWriter.Write(p)
}

func (r *recorder) cacheable() bool {
	if r.status != http.StatusOK {
		return false
	}
	cc := r.header.Get("Cache-Control")
	return !strings.Contains(cc, "no-store") && !strings.Contains(cc, "private") && r.header.Get("Set-Cookie") == ""
}
