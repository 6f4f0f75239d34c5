package id_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/xraph/offload/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"JobID", id.NewJobID, "job_"},
		{"CronID", id.NewCronID, "cron_"},
		{"WorkerID", id.NewWorkerID, "wkr_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
			if len(got) != len(tt.prefix)+32 {
				t.Errorf("unexpected length %d for %q", len(got), got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"JobID", id.NewJobID, id.ParseJobID},
		{"CronID", id.NewCronID, id.ParseCronID},
		{"WorkerID", id.NewWorkerID, id.ParseWorkerID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestParseRejectsForeignIDs(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"celery uuid", "d9b1d7db-3b0e-4c5e-9b8e-3a1c7f0e2b11"},
		{"no suffix", "job_"},
		{"no prefix", "_0190c8f3a1b27c7e9d6b3f0a4e2d1c55"},
		{"short suffix", "job_abc123"},
		{"upper prefix", "JOB_0190c8f3a1b27c7e9d6b3f0a4e2d1c55"},
		{"non hex", "job_zz90c8f3a1b27c7e9d6b3f0a4e2d1c55"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := id.ParseJobID(tt.input); err == nil {
				t.Errorf("expected error for %q", tt.input)
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	cronID := id.NewCronID().String()
	if _, err := id.ParseJobID(cronID); err == nil {
		t.Fatalf("expected ParseJobID to reject %q", cronID)
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Fatal("zero ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("nil ID String() = %q, want empty", i.String())
	}
	if i.Prefix() != "" {
		t.Errorf("nil ID Prefix() = %q, want empty", i.Prefix())
	}
}

func TestJSONRoundTrip(t *testing.T) {
	type wrapper struct {
		ID id.ID `json:"id"`
	}

	original := wrapper{ID: id.NewJobID()}
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded wrapper
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.ID.String() != original.ID.String() {
		t.Errorf("got %q, want %q", decoded.ID.String(), original.ID.String())
	}

	var empty wrapper
	if err := json.Unmarshal([]byte(`{"id":""}`), &empty); err != nil {
		t.Fatalf("unmarshal empty: %v", err)
	}
	if !empty.ID.IsNil() {
		t.Error("empty string should decode to the nil ID")
	}
}

func TestUniqueness(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for range 1000 {
		s := id.NewJobID().String()
		if _, dup := seen[s]; dup {
			t.Fatalf("duplicate id %q", s)
		}
		seen[s] = struct{}{}
	}
}
