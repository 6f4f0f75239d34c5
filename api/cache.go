package api

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/xraph/offload/cache"
	"github.com/xraph/offload/product"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const timestampLayout = "2006-01-02 15:04:05"

// productView is the cached projection of a product.
type productView struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
}

func cacheStatus(hit bool, miss string) string {
	if hit {
		return "HIT - Retrieved from cache"
	}
	return "MISS - " + miss
}

// heavyComputation returns the sum of i*i for i below 10000.
func heavyComputation(ctx context.Context, delay time.Duration) (int64, error) {
	if err := sleep(ctx, delay); err != nil {
		return 0, err
	}
	var sum int64
	for i := int64(0); i < 10000; i++ {
		sum += i * i
	}
	return sum, nil
}

func (s *Server) handleCachedFunction(w http.ResponseWriter, r *http.Request) {
	result, hit, err := cache.GetOrCompute(r.Context(), s.cache, FunctionKey, FunctionTTL,
		func(ctx context.Context) (int64, error) { return heavyComputation(ctx, s.delays.Compute) },
	)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, map[string]any{
		"result":       result,
		"cache_status": cacheStatus(hit, "Computed and cached"),
		"message":      "Result of sum(i*i for i < 10000)",
	})
}

func (s *Server) handleCachedQuery(w http.ResponseWriter, r *http.Request) {
	views, hit, err := cache.GetOrCompute(r.Context(), s.cache, ProductsKey, ProductsTTL,
		func(ctx context.Context) ([]productView, error) {
			if err := sleep(ctx, s.delays.Query); err != nil {
				return nil, err
			}
			rows, err := s.products.List(ctx, product.ListOpts{MinPrice: 100})
			if err != nil {
				return nil, err
			}
			views := make([]productView, 0, len(rows))
			for _, p := range rows {
				views = append(views, productView{Name: p.Name, Price: p.Price, Stock: p.Stock})
			}
			return views, nil
		},
	)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, map[string]any{
		"products":     views,
		"count":        len(views),
		"cache_status": cacheStatus(hit, "Queried database"),
		"db_queried":   !hit,
		"message":      "Products priced at 100 or more",
	})
}

func (s *Server) handleFullView(w http.ResponseWriter, r *http.Request) {
	if err := sleep(r.Context(), s.delays.Page); err != nil {
		s.writeError(w, r, err)
		return
	}
	count, err := s.products.Count(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, map[string]any{
		"message":        "This entire view is cached for 5 minutes",
		"timestamp":      time.Now().Format(timestampLayout),
		"products_count": count,
		"cache_info":     "This response is cached. Refresh to see same timestamp for 5 minutes.",
	})
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	fragment, hit, err := cache.GetOrCompute(r.Context(), s.cache, FragmentKey, FragmentTTL,
		func(ctx context.Context) (string, error) {
			rows, err := s.products.List(ctx, product.ListOpts{Limit: 10})
			if err != nil {
				return "", err
			}
			var buf bytes.Buffer
			err = pageTemplates.ExecuteTemplate(&buf, "product_list.html", map[string]any{
				"Products":   rows,
				"RenderedAt": time.Now().Format(timestampLayout),
			})
			return buf.String(), err
		},
	)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var page bytes.Buffer
	err = pageTemplates.ExecuteTemplate(&page, "cached_template.html", map[string]any{
		"Timestamp":   time.Now().Format(timestampLayout),
		"ProductList": template.HTML(fragment),
		"CacheStatus": cacheStatus(hit, "Rendered and cached"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = page.WriteTo(w)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.cache.Clear(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, map[string]any{
		"message": "All cache cleared successfully",
		"status":  "success",
	})
}
