package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/offload"
	"github.com/xraph/offload/api"
	"github.com/xraph/offload/cache"
	cachememory "github.com/xraph/offload/cache/memory"
	"github.com/xraph/offload/engine"
	"github.com/xraph/offload/job"
	"github.com/xraph/offload/product"
	"github.com/xraph/offload/store/memory"
	"github.com/xraph/offload/tasks"
)

type brokenCache struct{}

var errDown = errors.New("connection refused")

func (brokenCache) Get(context.Context, string) ([]byte, error)              { return nil, errDown }
func (brokenCache) Set(context.Context, string, []byte, time.Duration) error { return errDown }
func (brokenCache) Delete(context.Context, string) error                     { return errDown }
func (brokenCache) Clear(context.Context) error                              { return errDown }
func (brokenCache) Ping(context.Context) error                               { return errDown }

type fixture struct {
	eng *engine.Engine
	srv *httptest.Server
}

func setup(t *testing.T, store cache.Store) *fixture {
	t.Helper()
	d, err := offload.New(
		offload.WithStore(memory.New()),
		offload.WithQueues([]string{"default", "reports"}),
		offload.WithPollInterval(5*time.Millisecond),
	)
	require.NoError(t, err)
	eng, err := engine.Build(d, engine.WithoutScheduler())
	require.NoError(t, err)
	tasks.Register(eng, tasks.Delays{}, nil)

	products := product.NewMemoryStore()
	_, err = product.Seed(context.Background(), products, rand.New(rand.NewPCG(7, 7)))
	require.NoError(t, err)

	s := api.New(eng, cache.New(store), products, api.WithDelays(api.Delays{}))
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &fixture{eng: eng, srv: srv}
}

func (f *fixture) do(t *testing.T, method, path string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	}
	return resp, body
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	return f.do(t, http.MethodGet, path)
}

func TestIndex(t *testing.T) {
	f := setup(t, cachememory.New())
	resp, body := f.get(t, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["endpoints"], "task_status")
}

func TestProcessDataset(t *testing.T) {
	f := setup(t, cachememory.New())

	for _, path := range []string{"/process-dataset/?size=10", "/process-dataset?size=10"} {
		resp, body := f.get(t, path)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, "Task queued successfully", body["status"])

		id, _ := body["task_id"].(string)
		require.NotEmpty(t, id)
		assert.Equal(t, "/task-status/"+id+"/", body["check_status_url"])

		// Nothing runs the pool, so the job stays queued.
		_, st := f.get(t, "/task-status/"+id+"/")
		assert.Equal(t, "PENDING", st["status"])
		assert.Equal(t, false, st["ready"])
	}
}

func TestProcessDataset_BadSize(t *testing.T) {
	f := setup(t, cachememory.New())
	for _, size := range []string{"abc", "-1"} {
		resp, body := f.get(t, "/process-dataset/?size="+size)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.NotEmpty(t, body["error"])
	}
}

func TestGenerateReport(t *testing.T) {
	f := setup(t, cachememory.New())
	resp, body := f.get(t, "/generate-report/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "sales", body["report_type"])

	id, _ := body["task_id"].(string)
	n, err := f.eng.Store().CountJobs(context.Background(), job.CountOpts{Queue: "reports"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "report %s should sit on the reports queue", id)

	resp, _ = f.get(t, "/generate-report/?user_id=x")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTaskStatus_Unknown(t *testing.T) {
	f := setup(t, cachememory.New())
	resp, body := f.get(t, "/task-status/not-a-task/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "UNKNOWN", body["status"])
	assert.Equal(t, "not-a-task", body["task_id"])
}

func TestTaskStatus_Success(t *testing.T) {
	f := setup(t, cachememory.New())
	_, body := f.get(t, "/generate-report/?type=inventory&user_id=3")
	id, _ := body["task_id"].(string)

	require.NoError(t, f.eng.Start(context.Background()))
	t.Cleanup(func() { _ = f.eng.Stop(context.Background()) })

	var st map[string]any
	require.Eventually(t, func() bool {
		_, st = f.get(t, "/task-status/"+id)
		return st["ready"] == true
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, "SUCCESS", st["status"])
	result, ok := st["result"].(map[string]any)
	require.True(t, ok, "result = %v", st["result"])
	assert.Equal(t, "inventory", result["report_type"])
	assert.EqualValues(t, 3, result["user_id"])
}

func TestCachedFunction(t *testing.T) {
	f := setup(t, cachememory.New())

	_, first := f.get(t, "/cache/function/")
	assert.Equal(t, "MISS - Computed and cached", first["cache_status"])
	assert.EqualValues(t, 333283335000, first["result"])

	_, second := f.get(t, "/cache/function/")
	assert.Equal(t, "HIT - Retrieved from cache", second["cache_status"])
	assert.Equal(t, first["result"], second["result"])
}

func TestCachedQuery(t *testing.T) {
	f := setup(t, cachememory.New())

	_, first := f.get(t, "/cache/orm/")
	assert.Equal(t, true, first["db_queried"])
	rows, _ := first["products"].([]any)
	assert.EqualValues(t, len(rows), first["count"])
	for _, row := range rows {
		p := row.(map[string]any)
		assert.GreaterOrEqual(t, p["price"].(float64), 100.0)
		assert.Len(t, p, 3)
	}

	_, second := f.get(t, "/cache/orm/")
	assert.Equal(t, false, second["db_queried"])
	assert.Equal(t, "HIT - Retrieved from cache", second["cache_status"])
	assert.Equal(t, first["products"], second["products"])
}

func TestFullView(t *testing.T) {
	f := setup(t, cachememory.New())

	resp, first := f.get(t, "/cache/full-view/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))
	assert.EqualValues(t, 30, first["products_count"])

	resp, second := f.get(t, "/cache/full-view/")
	assert.Equal(t, "HIT", resp.Header.Get("X-Cache"))
	assert.Equal(t, first["timestamp"], second["timestamp"])
}

func TestTemplate(t *testing.T) {
	f := setup(t, cachememory.New())

	get := func() string {
		resp, err := http.Get(f.srv.URL + "/cache/template/")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
		var b strings.Builder
		_, err = io.Copy(&b, resp.Body)
		require.NoError(t, err)
		return b.String()
	}

	first := get()
	assert.Contains(t, first, "Laptop")
	assert.Contains(t, first, "MISS - Rendered and cached")
	assert.NotContains(t, first, "Network Cable", "only the first ten products are listed")

	second := get()
	assert.Contains(t, second, "HIT - Retrieved from cache")
}

func TestClear(t *testing.T) {
	f := setup(t, cachememory.New())
	f.get(t, "/cache/function/")
	f.get(t, "/cache/full-view/")

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		resp, body := f.do(t, method, "/cache/clear/")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "All cache cleared successfully", body["message"])
		assert.Equal(t, "success", body["status"])
	}

	_, fn := f.get(t, "/cache/function/")
	assert.Equal(t, "MISS - Computed and cached", fn["cache_status"])
	resp, _ := f.get(t, "/cache/full-view/")
	assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))
}

func TestCacheBackendDown(t *testing.T) {
	f := setup(t, brokenCache{})

	resp, body := f.get(t, "/cache/function/")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, body["error"], "cache backend")

	resp, _ = f.do(t, http.MethodPost, "/cache/clear/")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	// The page cache serves uncached instead of failing.
	resp, _ = f.get(t, "/cache/full-view/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, health := f.get(t, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "unavailable", health["status"])
}

func TestAdminEndpoints(t *testing.T) {
	f := setup(t, cachememory.New())
	ctx := context.Background()
	for _, def := range tasks.Schedules(tasks.DefaultSchedule()) {
		require.NoError(t, engine.RegisterCron(ctx, f.eng, def))
	}
	f.get(t, "/process-dataset/")
	f.get(t, "/process-dataset/")

	_, counts := f.get(t, "/v1/jobs/counts")
	assert.EqualValues(t, 2, counts["PENDING"])

	_, crons := f.get(t, "/v1/crons")
	assert.EqualValues(t, 3, crons["count"])

	resp, health := f.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", health["status"])
}
