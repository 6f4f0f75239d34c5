package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/offload"
	"github.com/xraph/offload/cron"
	"github.com/xraph/offload/id"
)

// KEYS: lock key. ARGV: holder.
var releaseScript = goredis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// RegisterCron stores a new entry and reserves its name.
func (s *Store) RegisterCron(ctx context.Context, entry *cron.Entry) error {
	cID := entry.ID.String()

	ok, err := s.client.HSetNX(ctx, s.keys.cronNames(), entry.Name, cID).Result()
	if err != nil {
		return fmt.Errorf("offload/redis: register cron name: %w", err)
	}
	if !ok {
		return offload.ErrDuplicateCron
	}

	data, err := marshalEntry(entry)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.keys.cron(cID), data, 0)
	pipe.SAdd(ctx, s.keys.cronIDs(), cID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("offload/redis: register cron: %w", err)
	}
	return nil
}

// GetCron retrieves an entry by ID, with the current lock holder filled in.
func (s *Store) GetCron(ctx context.Context, entryID id.CronID) (*cron.Entry, error) {
	return s.getCron(ctx, entryID.String())
}

// GetCronByName retrieves an entry by name.
func (s *Store) GetCronByName(ctx context.Context, name string) (*cron.Entry, error) {
	cID, err := s.client.HGet(ctx, s.keys.cronNames(), name).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, offload.ErrCronNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("offload/redis: get cron by name: %w", err)
	}
	return s.getCron(ctx, cID)
}

// ListCrons returns all entries ordered by name.
func (s *Store) ListCrons(ctx context.Context) ([]*cron.Entry, error) {
	ids, err := s.client.SMembers(ctx, s.keys.cronIDs()).Result()
	if err != nil {
		return nil, fmt.Errorf("offload/redis: list cron ids: %w", err)
	}

	entries := make([]*cron.Entry, 0, len(ids))
	for _, cID := range ids {
		e, err := s.getCron(ctx, cID)
		if errors.Is(err, offload.ErrCronNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].Name < entries[b].Name })
	return entries, nil
}

// AcquireCronLock sets the lock key with a PX expiry. A worker that
// already holds the lock extends it.
func (s *Store) AcquireCronLock(ctx context.Context, entryID id.CronID, workerID id.WorkerID, ttl time.Duration) (bool, error) {
	cID := entryID.String()
	if err := s.cronExists(ctx, cID); err != nil {
		return false, err
	}

	lockKey := s.keys.cronLock(cID)
	holder := workerID.String()
	ok, err := s.client.SetNX(ctx, lockKey, holder, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("offload/redis: acquire cron lock: %w", err)
	}
	if ok {
		return true, nil
	}

	current, err := s.client.Get(ctx, lockKey).Result()
	if errors.Is(err, goredis.Nil) {
		// Expired between SETNX and GET; try once more.
		return s.client.SetNX(ctx, lockKey, holder, ttl).Result()
	}
	if err != nil {
		return false, fmt.Errorf("offload/redis: read cron lock: %w", err)
	}
	if current != holder {
		return false, nil
	}
	if err := s.client.PExpire(ctx, lockKey, ttl).Err(); err != nil {
		return false, fmt.Errorf("offload/redis: extend cron lock: %w", err)
	}
	return true, nil
}

// ReleaseCronLock deletes the lock key only if workerID holds it.
func (s *Store) ReleaseCronLock(ctx context.Context, entryID id.CronID, workerID id.WorkerID) error {
	cID := entryID.String()
	if err := s.cronExists(ctx, cID); err != nil {
		return err
	}
	if err := releaseScript.Run(ctx, s.client, []string{s.keys.cronLock(cID)}, workerID.String()).Err(); err != nil {
		return fmt.Errorf("offload/redis: release cron lock: %w", err)
	}
	return nil
}

// UpdateCronEntry rewrites an entry. Lock state lives in its own key and
// is not touched.
func (s *Store) UpdateCronEntry(ctx context.Context, entry *cron.Entry) error {
	cID := entry.ID.String()
	if err := s.cronExists(ctx, cID); err != nil {
		return err
	}

	cp := *entry
	cp.UpdatedAt = time.Now().UTC()
	data, err := marshalEntry(&cp)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.keys.cron(cID), data, 0).Err(); err != nil {
		return fmt.Errorf("offload/redis: update cron: %w", err)
	}
	return nil
}

// DeleteCron removes an entry, its name reservation and its lock.
func (s *Store) DeleteCron(ctx context.Context, entryID id.CronID) error {
	cID := entryID.String()
	e, err := s.getCron(ctx, cID)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.keys.cron(cID), s.keys.cronLock(cID))
	pipe.SRem(ctx, s.keys.cronIDs(), cID)
	pipe.HDel(ctx, s.keys.cronNames(), e.Name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("offload/redis: delete cron: %w", err)
	}
	return nil
}

func (s *Store) cronExists(ctx context.Context, cID string) error {
	n, err := s.client.Exists(ctx, s.keys.cron(cID)).Result()
	if err != nil {
		return fmt.Errorf("offload/redis: cron exists: %w", err)
	}
	if n == 0 {
		return offload.ErrCronNotFound
	}
	return nil
}

func (s *Store) getCron(ctx context.Context, cID string) (*cron.Entry, error) {
	data, err := s.client.Get(ctx, s.keys.cron(cID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, offload.ErrCronNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("offload/redis: get cron: %w", err)
	}

	var e cron.Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("offload/redis: decode cron: %w", err)
	}

	lockKey := s.keys.cronLock(cID)
	holder, err := s.client.Get(ctx, lockKey).Result()
	switch {
	case errors.Is(err, goredis.Nil):
	case err != nil:
		return nil, fmt.Errorf("offload/redis: get cron lock: %w", err)
	default:
		e.LockedBy = holder
		if ttl, err := s.client.PTTL(ctx, lockKey).Result(); err == nil && ttl > 0 {
			until := time.Now().UTC().Add(ttl)
			e.LockedUntil = &until
		}
	}
	return &e, nil
}

func marshalEntry(e *cron.Entry) ([]byte, error) {
	cp := *e
	cp.LockedBy, cp.LockedUntil = "", nil
	data, err := json.Marshal(&cp)
	if err != nil {
		return nil, fmt.Errorf("offload/redis: encode cron: %w", err)
	}
	return data, nil
}
