package cron

import (
	"time"

	"github.com/xraph/offload"
	"github.com/xraph/offload/id"
)

// Entry is a persisted recurring schedule.
type Entry struct {
	offload.Entity

	ID          id.CronID  `json:"id"`
	Name        string     `json:"name"`
	Schedule    string     `json:"schedule"`
	JobName     string     `json:"job_name"`
	Queue       string     `json:"queue,omitempty"`
	Payload     []byte     `json:"payload,omitempty"`
	LastRunAt   *time.Time `json:"last_run_at,omitempty"`
	NextRunAt   *time.Time `json:"next_run_at,omitempty"`
	LockedBy    string     `json:"locked_by,omitempty"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	Enabled     bool       `json:"enabled"`
}

// Due reports whether the entry should fire at now.
func (e *Entry) Due(now time.Time) bool {
	return e.Enabled && e.NextRunAt != nil && !e.NextRunAt.After(now)
}
