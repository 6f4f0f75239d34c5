package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/offload"
	"github.com/xraph/offload/id"
	"github.com/xraph/offload/job"
)

// KEYS: job hash, queue zset, job id set.
// ARGV: job id, queue score, then hash field/value pairs.
var enqueueScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV, 3))
redis.call('SADD', KEYS[3], ARGV[1])
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[1])
return 1
`)

// KEYS: queue zset, job hash. ARGV: job id, claim timestamp.
var claimScript = goredis.NewScript(`
if redis.call('ZREM', KEYS[1], ARGV[1]) == 0 then
  return 0
end
if redis.call('EXISTS', KEYS[2]) == 0 then
  return 0
end
redis.call('HSET', KEYS[2], 'state', 'STARTED', 'started_at', ARGV[2], 'heartbeat_at', ARGV[2], 'updated_at', ARGV[2])
return 1
`)

// optional hash fields, removed when the job no longer carries them.
var optionalFields = []string{"result", "last_error", "worker_id", "started_at", "completed_at", "heartbeat_at"}

func score(runAt time.Time) float64 { return float64(runAt.UnixMilli()) }

// EnqueueJob stores the job hash and adds it to its queue.
func (s *Store) EnqueueJob(ctx context.Context, j *job.Job) error {
	jID := j.ID.String()
	args := []any{jID, score(j.RunAt)}
	for field, value := range jobToMap(j) {
		args = append(args, field, value)
	}

	created, err := enqueueScript.Run(ctx, s.client,
		[]string{s.keys.job(jID), s.keys.queue(j.Queue), s.keys.jobIDs()},
		args...,
	).Int()
	if err != nil {
		return fmt.Errorf("offload/redis: enqueue job: %w", err)
	}
	if created == 0 {
		return offload.ErrJobAlreadyExists
	}
	return nil
}

// DequeueJobs claims up to limit due jobs, each queue in order. A job
// another caller claimed between the range read and the claim is skipped.
func (s *Store) DequeueJobs(ctx context.Context, queues []string, limit int) ([]*job.Job, error) {
	now := time.Now().UTC()
	stamp := now.Format(time.RFC3339Nano)
	upper := strconv.FormatInt(now.UnixMilli(), 10)

	var claimed []*job.Job
	for _, q := range queues {
		qk := s.keys.queue(q)
		for limit <= 0 || len(claimed) < limit {
			rng := &goredis.ZRangeBy{Min: "-inf", Max: upper}
			if limit > 0 {
				rng.Count = int64(limit - len(claimed))
			}
			ids, err := s.client.ZRangeByScore(ctx, qk, rng).Result()
			if err != nil {
				return claimed, fmt.Errorf("offload/redis: dequeue range: %w", err)
			}
			if len(ids) == 0 {
				break
			}

			for _, jID := range ids {
				ok, err := claimScript.Run(ctx, s.client, []string{qk, s.keys.job(jID)}, jID, stamp).Int()
				if err != nil {
					return claimed, fmt.Errorf("offload/redis: dequeue claim: %w", err)
				}
				if ok == 0 {
					continue
				}
				j, err := s.getJob(ctx, jID)
				if err != nil {
					return claimed, err
				}
				claimed = append(claimed, j)
			}
			if limit <= 0 {
				break
			}
		}
	}
	return claimed, nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return s.getJob(ctx, jobID.String())
}

// UpdateJob rewrites the job hash and keeps the queue membership in line
// with the new state.
func (s *Store) UpdateJob(ctx context.Context, j *job.Job) error {
	jID := j.ID.String()
	key := s.keys.job(jID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("offload/redis: update job exists: %w", err)
	}
	if exists == 0 {
		return offload.ErrJobNotFound
	}

	fields := jobToMap(j)
	fields["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	var drop []string
	for _, f := range optionalFields {
		if _, ok := fields[f]; !ok {
			drop = append(drop, f)
		}
	}

	pipe := s.client.TxPipeline()
	if len(drop) > 0 {
		pipe.HDel(ctx, key, drop...)
	}
	pipe.HSet(ctx, key, fields)
	switch {
	case j.State.Runnable():
		pipe.ZAdd(ctx, s.keys.queue(j.Queue), goredis.Z{Score: score(j.RunAt), Member: jID})
	case j.State.Terminal():
		pipe.ZRem(ctx, s.keys.queue(j.Queue), jID)
		if s.resultTTL > 0 {
			pipe.Expire(ctx, key, s.resultTTL)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("offload/redis: update job: %w", err)
	}
	return nil
}

// DeleteJob removes a job and its queue membership.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	jID := jobID.String()
	key := s.keys.job(jID)

	q, err := s.client.HGet(ctx, key, "queue").Result()
	if errors.Is(err, goredis.Nil) {
		return offload.ErrJobNotFound
	}
	if err != nil {
		return fmt.Errorf("offload/redis: delete job queue: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, s.keys.jobIDs(), jID)
	pipe.ZRem(ctx, s.keys.queue(q), jID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("offload/redis: delete job: %w", err)
	}
	return nil
}

// scan calls fn for every live job. Ids whose hash has expired are pruned
// from the id set on the way.
func (s *Store) scan(ctx context.Context, fn func(*job.Job)) error {
	ids, err := s.client.SMembers(ctx, s.keys.jobIDs()).Result()
	if err != nil {
		return fmt.Errorf("offload/redis: list job ids: %w", err)
	}
	var expired []any
	for _, jID := range ids {
		j, err := s.getJob(ctx, jID)
		if errors.Is(err, offload.ErrJobNotFound) {
			expired = append(expired, jID)
			continue
		}
		if err != nil {
			return err
		}
		fn(j)
	}
	if len(expired) > 0 {
		if err := s.client.SRem(ctx, s.keys.jobIDs(), expired...).Err(); err != nil {
			s.logger.Warn("redis: prune expired job ids", "error", err.Error())
		}
	}
	return nil
}

// ListJobsByState returns jobs in state, oldest first.
func (s *Store) ListJobsByState(ctx context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	var jobs []*job.Job
	err := s.scan(ctx, func(j *job.Job) {
		if j.State == state && (opts.Queue == "" || j.Queue == opts.Queue) {
			jobs = append(jobs, j)
		}
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(jobs, func(a, b int) bool { return jobs[a].CreatedAt.Before(jobs[b].CreatedAt) })

	if opts.Offset > 0 {
		if opts.Offset >= len(jobs) {
			return nil, nil
		}
		jobs = jobs[opts.Offset:]
	}
	if opts.Limit > 0 && len(jobs) > opts.Limit {
		jobs = jobs[:opts.Limit]
	}
	return jobs, nil
}

// HeartbeatJob stamps the job's heartbeat and holder.
func (s *Store) HeartbeatJob(ctx context.Context, jobID id.JobID, workerID id.WorkerID) error {
	key := s.keys.job(jobID.String())
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("offload/redis: heartbeat exists: %w", err)
	}
	if exists == 0 {
		return offload.ErrJobNotFound
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.client.HSet(ctx, key, "heartbeat_at", now, "worker_id", workerID.String()).Err(); err != nil {
		return fmt.Errorf("offload/redis: heartbeat job: %w", err)
	}
	return nil
}

// ReapStaleJobs returns STARTED jobs whose heartbeat is older than threshold.
func (s *Store) ReapStaleJobs(ctx context.Context, threshold time.Duration) ([]*job.Job, error) {
	cutoff := time.Now().UTC().Add(-threshold)
	var stale []*job.Job
	err := s.scan(ctx, func(j *job.Job) {
		if j.StaleAt(cutoff) {
			stale = append(stale, j)
		}
	})
	return stale, err
}

// RequeueStaleJob resets a still-stale STARTED job to PENDING. The hash is
// WATCHed, so a worker finishing the job between the read and the write
// aborts the reset and the call reports false.
func (s *Store) RequeueStaleJob(ctx context.Context, jobID id.JobID, cutoff time.Time) (bool, error) {
	jID := jobID.String()
	key := s.keys.job(jID)

	requeued := false
	err := s.client.Watch(ctx, func(tx *goredis.Tx) error {
		vals, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		if len(vals) == 0 {
			return offload.ErrJobNotFound
		}
		j, err := mapToJob(vals)
		if err != nil {
			return err
		}
		if !j.StaleAt(cutoff) {
			return nil
		}

		now := time.Now().UTC()
		stamp := formatTime(now)
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HDel(ctx, key, "worker_id", "started_at", "heartbeat_at")
			pipe.HSet(ctx, key, "state", string(job.StatePending), "run_at", stamp, "updated_at", stamp)
			pipe.ZAdd(ctx, s.keys.queue(j.Queue), goredis.Z{Score: score(now), Member: jID})
			return nil
		})
		if err != nil {
			return err
		}
		requeued = true
		return nil
	}, key)

	switch {
	case errors.Is(err, goredis.TxFailedErr):
		return false, nil
	case errors.Is(err, offload.ErrJobNotFound):
		return false, err
	case err != nil:
		return false, fmt.Errorf("offload/redis: requeue stale job: %w", err)
	}
	return requeued, nil
}

// CountJobs counts jobs matching opts.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	var n int64
	err := s.scan(ctx, func(j *job.Job) {
		if (opts.State == "" || j.State == opts.State) && (opts.Queue == "" || j.Queue == opts.Queue) {
			n++
		}
	})
	return n, err
}

func (s *Store) getJob(ctx context.Context, jID string) (*job.Job, error) {
	vals, err := s.client.HGetAll(ctx, s.keys.job(jID)).Result()
	if err != nil {
		return nil, fmt.Errorf("offload/redis: get job: %w", err)
	}
	if len(vals) == 0 {
		return nil, offload.ErrJobNotFound
	}
	return mapToJob(vals)
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func jobToMap(j *job.Job) map[string]any {
	m := map[string]any{
		"id":          j.ID.String(),
		"name":        j.Name,
		"queue":       j.Queue,
		"payload":     string(j.Payload),
		"state":       string(j.State),
		"max_retries": strconv.Itoa(j.MaxRetries),
		"retry_count": strconv.Itoa(j.RetryCount),
		"run_at":      formatTime(j.RunAt),
		"timeout":     strconv.FormatInt(int64(j.Timeout), 10),
		"created_at":  formatTime(j.CreatedAt),
		"updated_at":  formatTime(j.UpdatedAt),
	}
	if len(j.Result) > 0 {
		m["result"] = string(j.Result)
	}
	if j.LastError != "" {
		m["last_error"] = j.LastError
	}
	if !j.WorkerID.IsNil() {
		m["worker_id"] = j.WorkerID.String()
	}
	for field, t := range map[string]*time.Time{
		"started_at":   j.StartedAt,
		"completed_at": j.CompletedAt,
		"heartbeat_at": j.HeartbeatAt,
	} {
		if t != nil {
			m[field] = formatTime(*t)
		}
	}
	return m
}

// Hash values are written by this package, so malformed numbers and
// timestamps fall back to zero values instead of failing the read.
func mapToJob(m map[string]string) (*job.Job, error) {
	jID, err := id.ParseJobID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("offload/redis: parse job id: %w", err)
	}

	atoi := func(field string) int {
		n, _ := strconv.Atoi(m[field])
		return n
	}
	parseTime := func(field string) time.Time {
		t, _ := time.Parse(time.RFC3339Nano, m[field])
		return t
	}
	optTime := func(field string) *time.Time {
		if m[field] == "" {
			return nil
		}
		t := parseTime(field)
		return &t
	}
	timeout, _ := strconv.ParseInt(m["timeout"], 10, 64)

	j := &job.Job{
		Entity: offload.Entity{
			CreatedAt: parseTime("created_at"),
			UpdatedAt: parseTime("updated_at"),
		},
		ID:          jID,
		Name:        m["name"],
		Queue:       m["queue"],
		Payload:     []byte(m["payload"]),
		State:       job.State(m["state"]),
		MaxRetries:  atoi("max_retries"),
		RetryCount:  atoi("retry_count"),
		LastError:   m["last_error"],
		RunAt:       parseTime("run_at"),
		StartedAt:   optTime("started_at"),
		CompletedAt: optTime("completed_at"),
		HeartbeatAt: optTime("heartbeat_at"),
		Timeout:     time.Duration(timeout),
	}
	if r, ok := m["result"]; ok {
		j.Result = []byte(r)
	}
	if wid := m["worker_id"]; wid != "" {
		j.WorkerID, _ = id.ParseWorkerID(wid)
	}
	return j, nil
}
