// Package id defines the prefixed identity type used by every offload entity.
//
// IDs render as "prefix_suffix" where the suffix is a UUIDv7 in compact hex
// form. They are globally unique, K-sortable by creation time, and URL-safe,
// so a job id can be handed straight to a status URL.
package id

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Prefix identifies the entity type encoded in an ID.
type Prefix string

// Prefix constants for all entity types.
const (
	PrefixJob    Prefix = "job"
	PrefixCron   Prefix = "cron"
	PrefixWorker Prefix = "wkr"
)

// ID is a prefix-qualified UUIDv7.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receiver for UnmarshalText.
type ID struct {
	prefix Prefix
	uuid   uuid.UUID
	valid  bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new ID with the given prefix.
// It panics if prefix is invalid or the clock source fails (programming error).
func New(prefix Prefix) ID {
	if !validPrefix(string(prefix)) {
		panic(fmt.Sprintf("id: invalid prefix %q", prefix))
	}
	u, err := uuid.NewV7()
	if err != nil {
		panic(fmt.Sprintf("id: generate uuid: %v", err))
	}
	return ID{prefix: prefix, uuid: u, valid: true}
}

// Parse parses an ID string such as "job_0190c8f3a1b27c7e9d6b3f0a4e2d1c55".
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	sep := strings.LastIndexByte(s, '_')
	if sep <= 0 || sep == len(s)-1 {
		return Nil, fmt.Errorf("id: parse %q: missing prefix separator", s)
	}

	prefix, suffix := s[:sep], s[sep+1:]
	if !validPrefix(prefix) {
		return Nil, fmt.Errorf("id: parse %q: invalid prefix", s)
	}
	if len(suffix) != 32 {
		return Nil, fmt.Errorf("id: parse %q: suffix must be 32 hex characters", s)
	}

	u, err := uuid.Parse(suffix)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{prefix: Prefix(prefix), uuid: u, valid: true}, nil
}

// ParseWithPrefix parses an ID string and checks that its prefix matches.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// JobID identifies a job (prefix: "job").
type JobID = ID

// CronID identifies a cron entry (prefix: "cron").
type CronID = ID

// WorkerID identifies a worker pool (prefix: "wkr").
type WorkerID = ID

// NewJobID generates a new unique job ID.
func NewJobID() ID { return New(PrefixJob) }

// NewCronID generates a new unique cron ID.
func NewCronID() ID { return New(PrefixCron) }

// NewWorkerID generates a new unique worker ID.
func NewWorkerID() ID { return New(PrefixWorker) }

// ParseJobID parses a string and validates the "job" prefix.
func ParseJobID(s string) (ID, error) { return ParseWithPrefix(s, PrefixJob) }

// ParseCronID parses a string and validates the "cron" prefix.
func ParseCronID(s string) (ID, error) { return ParseWithPrefix(s, PrefixCron) }

// ParseWorkerID parses a string and validates the "wkr" prefix.
func ParseWorkerID(s string) (ID, error) { return ParseWithPrefix(s, PrefixWorker) }

// String returns "prefix_suffix", or an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return string(i.prefix) + "_" + hex.EncodeToString(i.uuid[:])
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return i.prefix
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

func validPrefix(p string) bool {
	if p == "" || len(p) > 63 {
		return false
	}
	for _, r := range p {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
