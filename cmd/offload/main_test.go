package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/xraph/offload/config"
	"github.com/xraph/offload/job"
	"github.com/xraph/offload/tasks"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger(&buf, "warn", "json")
	if err != nil {
		t.Fatal(err)
	}
	l.Info("hidden")
	l.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info logged at warn level")
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &rec); err != nil {
		t.Fatalf("not JSON: %q", out)
	}
	if rec["msg"] != "shown" || rec["k"] != "v" {
		t.Errorf("record = %v", rec)
	}

	if _, err := newLogger(&buf, "loud", "text"); err == nil {
		t.Error("expected error for bad level")
	}
	if _, err := newLogger(&buf, "info", "xml"); err == nil {
		t.Error("expected error for bad format")
	}
}

func TestIntArg(t *testing.T) {
	args := []string{"7", "x"}
	if n, err := intArg(args, 0, 1); err != nil || n != 7 {
		t.Errorf("intArg(0) = %d, %v", n, err)
	}
	if _, err := intArg(args, 1, 1); err == nil {
		t.Error("expected error for non-integer")
	}
	if n, _ := intArg(args, 2, 5); n != 5 {
		t.Errorf("missing arg = %d, want default", n)
	}
}

func TestListenHost(t *testing.T) {
	tests := map[string]string{
		":8000":          "localhost:8000",
		"0.0.0.0:9000":   "0.0.0.0:9000",
		"api.local:8080": "api.local:8080",
	}
	for in, want := range tests {
		if got := listenHost(in); got != want {
			t.Errorf("listenHost(%q) = %q, want %q", in, got, want)
		}
	}
}

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("OFFLOAD_STORE_BACKEND", "memory")
	t.Setenv("OFFLOAD_CACHE_BACKEND", "memory")
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestBuildAppMemory(t *testing.T) {
	cfg := memoryConfig(t)
	ctx := context.Background()
	var logs bytes.Buffer
	logger, _ := newLogger(&logs, "error", "text")

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = a.eng.Stop(ctx)
		_ = a.close()
	}()

	if err := a.registerSchedules(ctx, cfg.Schedule); err != nil {
		t.Fatal(err)
	}
	crons, err := a.eng.Store().ListCrons(ctx)
	if err != nil || len(crons) != 3 {
		t.Fatalf("crons = %d, %v", len(crons), err)
	}
	// Registration is idempotent across restarts.
	if err := a.registerSchedules(ctx, cfg.Schedule); err != nil {
		t.Fatal(err)
	}

	j, err := tasks.SubmitAdd(ctx, a.eng, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if j.State != job.StatePending {
		t.Errorf("state = %s", j.State)
	}
	if err := a.cache.Ping(ctx); err != nil {
		t.Errorf("cache ping: %v", err)
	}
	if n, _ := a.products.Count(ctx); n != 0 {
		t.Errorf("catalog not empty: %d", n)
	}
}

func TestSubmitCommand(t *testing.T) {
	memoryConfig(t)
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"submit", "report", "inventory", "4"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}

	var got map[string]string
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("output %q: %v", out.String(), err)
	}
	if got["name"] != tasks.GenerateReport || got["queue"] != "reports" || got["status"] != "PENDING" {
		t.Errorf("submission = %v", got)
	}
	if !strings.HasPrefix(got["check_status_url"], "/task-status/") {
		t.Errorf("check_status_url = %q", got["check_status_url"])
	}
}

func TestSeedCommand(t *testing.T) {
	memoryConfig(t)
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"seed"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Successfully created 30 products!") {
		t.Errorf("output = %q", out.String())
	}
}
