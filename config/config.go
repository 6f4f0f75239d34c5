package config

import (
	"time"

	"github.com/xraph/offload/queue"
	"github.com/xraph/offload/tasks"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Store    StoreConfig    `mapstructure:"store"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Database DatabaseConfig `mapstructure:"database"`
	Tasks    TasksConfig    `mapstructure:"tasks"`
	Schedule tasks.Schedule `mapstructure:"schedule"`
}

// ServerConfig contains the HTTP server and logging settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	LogFormat       string        `mapstructure:"log_format" validate:"required,oneof=text json"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// RedisConfig points at the broker, result store and cache server.
type RedisConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// StoreConfig selects the job store.
type StoreConfig struct {
	Backend   string        `mapstructure:"backend" validate:"oneof=redis memory"`
	Prefix    string        `mapstructure:"prefix" validate:"required"`
	ResultTTL time.Duration `mapstructure:"result_ttl" validate:"gte=0"`
}

// CacheConfig selects the cache backend and its behavior.
type CacheConfig struct {
	Backend       string        `mapstructure:"backend" validate:"oneof=redis memory"`
	Prefix        string        `mapstructure:"prefix" validate:"required"`
	Codec         string        `mapstructure:"codec" validate:"oneof=json msgpack"`
	SingleFlight  bool          `mapstructure:"single_flight"`
	BypassOnError bool          `mapstructure:"bypass_on_error"`
	PageTTL       time.Duration `mapstructure:"page_ttl" validate:"gt=0"`
}

// WorkerConfig sizes the worker pool.
type WorkerConfig struct {
	Concurrency       int           `mapstructure:"concurrency" validate:"gt=0"`
	Queues            []string      `mapstructure:"queues" validate:"min=1,dive,required"`
	PollInterval      time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" validate:"gte=0"`
	StaleJobThreshold time.Duration `mapstructure:"stale_job_threshold" validate:"gte=0"`
	// Embedded runs the pool inside serve.
	Embedded bool `mapstructure:"embedded"`
	// Beat runs the cron scheduler alongside the pool.
	Beat bool `mapstructure:"beat"`
	// QueueLimits caps concurrency and admission rate per queue.
	QueueLimits []QueueLimit `mapstructure:"queue_limits" validate:"dive"`
}

// QueueLimit is the local admission policy of one queue.
type QueueLimit struct {
	Name           string  `mapstructure:"name" validate:"required"`
	MaxConcurrency int     `mapstructure:"max_concurrency" validate:"gte=0"`
	RateLimit      float64 `mapstructure:"rate_limit" validate:"gte=0"`
	RateBurst      int     `mapstructure:"rate_burst" validate:"gte=0"`
}

// QueueConfigs converts the queue limits for engine.WithQueueConfig.
func (c WorkerConfig) QueueConfigs() []queue.Config {
	out := make([]queue.Config, 0, len(c.QueueLimits))
	for _, l := range c.QueueLimits {
		out = append(out, queue.Config{
			Name:           l.Name,
			MaxConcurrency: l.MaxConcurrency,
			RateLimit:      l.RateLimit,
			RateBurst:      l.RateBurst,
		})
	}
	return out
}

// DatabaseConfig points at the product database. An empty URL keeps the
// catalog in memory.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// TasksConfig holds the simulated work durations of the demo jobs.
type TasksConfig struct {
	PerItem      time.Duration `mapstructure:"per_item" validate:"gte=0"`
	Report       time.Duration `mapstructure:"report" validate:"gte=0"`
	ReportStep   time.Duration `mapstructure:"report_step" validate:"gte=0"`
	Cleanup      time.Duration `mapstructure:"cleanup" validate:"gte=0"`
	DailySummary time.Duration `mapstructure:"daily_summary" validate:"gte=0"`
	Backup       time.Duration `mapstructure:"backup" validate:"gte=0"`
	Add          time.Duration `mapstructure:"add" validate:"gte=0"`
}

// Delays converts the section to tasks.Delays.
func (c TasksConfig) Delays() tasks.Delays {
	return tasks.Delays{
		PerItem:      c.PerItem,
		Report:       c.Report,
		ReportStep:   c.ReportStep,
		Cleanup:      c.Cleanup,
		DailySummary: c.DailySummary,
		Backup:       c.Backup,
		Add:          c.Add,
	}
}
