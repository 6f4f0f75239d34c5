package redis

const defaultPrefix = "offload:"

type keys struct{ prefix string }

func (k keys) job(id string) string      { return k.prefix + "job:" + id }
func (k keys) queue(name string) string  { return k.prefix + "queue:" + name }
func (k keys) jobIDs() string            { return k.prefix + "job_ids" }
func (k keys) cron(id string) string     { return k.prefix + "cron:" + id }
func (k keys) cronIDs() string           { return k.prefix + "cron_ids" }
func (k keys) cronNames() string         { return k.prefix + "cron_names" }
func (k keys) cronLock(id string) string { return k.prefix + "cron_lock:" + id }
