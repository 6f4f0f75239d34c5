package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xraph/offload/cache"
	"github.com/xraph/offload/engine"
	"github.com/xraph/offload/httpcache"
	"github.com/xraph/offload/product"
)

// Cache keys and lifetimes of the cache endpoints.
const (
	FunctionKey = "heavy_computation_result"
	FunctionTTL = 300 * time.Second

	ProductsKey = "all_products_with_high_price"
	ProductsTTL = 600 * time.Second

	FragmentKey = "template.cache.product_list"
	FragmentTTL = 300 * time.Second

	DefaultPageTTL = 300 * time.Second
)

// Delays simulate slow work behind the cache endpoints.
type Delays struct {
	Compute time.Duration
	Query   time.Duration
	Page    time.Duration
}

// DefaultDelays returns the demo timings.
func DefaultDelays() Delays {
	return Delays{Compute: 3 * time.Second, Query: 2 * time.Second, Page: 2 * time.Second}
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for request logs and handler errors.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithDelays overrides the simulated delays.
func WithDelays(d Delays) Option {
	return func(s *Server) { s.delays = d }
}

// WithPageTTL sets how long full responses are cached.
func WithPageTTL(ttl time.Duration) Option {
	return func(s *Server) { s.pageTTL = ttl }
}

// WithPageCodec sets the codec used for cached responses.
func WithPageCodec(c cache.Codec) Option {
	return func(s *Server) { s.pageCodec = c }
}

// Server holds the handlers' collaborators.
type Server struct {
	eng      *engine.Engine
	cache    *cache.Accessor
	products product.Store
	pages    *httpcache.Cache

	logger    *slog.Logger
	delays    Delays
	pageTTL   time.Duration
	pageCodec cache.Codec
}

// New creates a Server. Full responses share acc's store, so clearing the
// cache drops them too.
func New(eng *engine.Engine, acc *cache.Accessor, products product.Store, opts ...Option) *Server {
	s := &Server{
		eng:       eng,
		cache:     acc,
		products:  products,
		logger:    slog.Default(),
		delays:    DefaultDelays(),
		pageTTL:   DefaultPageTTL,
		pageCodec: cache.JSONCodec{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.pages = httpcache.New(acc.Store(), s.pageTTL,
		httpcache.WithLogger(s.logger),
		httpcache.WithCodec(s.pageCodec),
	)
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.StripSlashes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)

	r.Get("/process-dataset", s.handleProcessDataset)
	r.Get("/generate-report", s.handleGenerateReport)
	r.Get("/task-status/{id}", s.handleTaskStatus)

	r.Route("/cache", func(r chi.Router) {
		r.Get("/function", s.handleCachedFunction)
		r.Get("/orm", s.handleCachedQuery)
		r.With(s.pages.Middleware).Get("/full-view", s.handleFullView)
		r.Get("/template", s.handleTemplate)
		r.Get("/clear", s.handleClear)
		r.Post("/clear", s.handleClear)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/jobs/counts", s.handleJobCounts)
		r.Get("/crons", s.handleCrons)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]any{
		"service": "offload",
		"endpoints": map[string]string{
			"process_dataset": "/process-dataset/?size=100",
			"generate_report": "/generate-report/?type=sales&user_id=1",
			"task_status":     "/task-status/{task_id}/",
			"cache_function":  "/cache/function/",
			"cache_orm":       "/cache/orm/",
			"cache_full_view": "/cache/full-view/",
			"cache_template":  "/cache/template/",
			"cache_clear":     "/cache/clear/",
			"job_counts":      "/v1/jobs/counts",
			"crons":           "/v1/crons",
			"health":          "/health",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := map[string]string{"store": "ok", "cache": "ok"}
	if err := s.eng.Ping(r.Context()); err != nil {
		status = http.StatusServiceUnavailable
		checks["store"] = err.Error()
	}
	if err := s.cache.Ping(r.Context()); err != nil {
		status = http.StatusServiceUnavailable
		checks["cache"] = err.Error()
	}
	overall := "ok"
	if status != http.StatusOK {
		overall = "unavailable"
	}
	writeJSON(w, s.logger, status, map[string]any{"status": overall, "checks": checks})
}
