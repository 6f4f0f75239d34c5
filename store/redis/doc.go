// Package redis implements store.Store on Redis through go-redis.
//
// Layout, under a configurable prefix (default "offload:"):
//
//	job:{id}         Hash    one job record
//	queue:{name}     ZSet    runnable job ids scored by RunAt (unix ms)
//	job_ids          Set     every job id, for listing and counting
//	cron:{id}        String  one cron entry as JSON
//	cron_ids         Set     every cron id
//	cron_names       Hash    cron name to id
//	cron_lock:{id}   String  holder of the entry lock, with a PX expiry
//
// A job is claimed by removing its id from the queue; only the caller whose
// ZREM succeeds owns it. Updating a job into PENDING or RETRY puts it back
// in its queue at the new RunAt.
//
//	s, err := redis.Open(ctx, "redis://localhost:6379/0", redis.WithResultTTL(24*time.Hour))
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
package redis
