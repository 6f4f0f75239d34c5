package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/xraph/offload/tasks"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "OFFLOAD"

// ErrInvalid is returned when the loaded configuration fails validation.
var ErrInvalid = errors.New("config: invalid configuration")

// Load reads the configuration. When path is empty, offload.yaml is looked
// up in the working directory and may be absent. An explicit path must
// exist.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("offload")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: read offload.yaml: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterStructValidation(validateHeartbeat, WorkerConfig{})
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// validateHeartbeat requires heartbeats to land well inside the stale
// window whenever reaping is on.
func validateHeartbeat(sl validator.StructLevel) {
	w := sl.Current().Interface().(WorkerConfig)
	if w.StaleJobThreshold <= 0 {
		return
	}
	if w.HeartbeatInterval <= 0 || w.HeartbeatInterval >= w.StaleJobThreshold {
		sl.ReportError(w.HeartbeatInterval, "HeartbeatInterval", "heartbeat_interval", "ltfield", "StaleJobThreshold")
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "text")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("redis.url", "redis://localhost:6379/0")

	v.SetDefault("store.backend", "redis")
	v.SetDefault("store.prefix", "offload:")
	v.SetDefault("store.result_ttl", 24*time.Hour)

	v.SetDefault("cache.backend", "redis")
	v.SetDefault("cache.prefix", "offload:cache:")
	v.SetDefault("cache.codec", "json")
	v.SetDefault("cache.single_flight", false)
	v.SetDefault("cache.bypass_on_error", false)
	v.SetDefault("cache.page_ttl", 300*time.Second)

	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.queues", []string{"default", "reports"})
	v.SetDefault("worker.poll_interval", 500*time.Millisecond)
	v.SetDefault("worker.shutdown_timeout", 30*time.Second)
	v.SetDefault("worker.heartbeat_interval", 10*time.Second)
	v.SetDefault("worker.stale_job_threshold", time.Minute)
	v.SetDefault("worker.embedded", false)
	v.SetDefault("worker.beat", true)

	v.SetDefault("database.url", "")

	d := tasks.DefaultDelays()
	v.SetDefault("tasks.per_item", d.PerItem)
	v.SetDefault("tasks.report", d.Report)
	v.SetDefault("tasks.report_step", d.ReportStep)
	v.SetDefault("tasks.cleanup", d.Cleanup)
	v.SetDefault("tasks.daily_summary", d.DailySummary)
	v.SetDefault("tasks.backup", d.Backup)
	v.SetDefault("tasks.add", d.Add)

	s := tasks.DefaultSchedule()
	v.SetDefault("schedule.cleanup", s.Cleanup)
	v.SetDefault("schedule.daily_summary", s.DailySummary)
	v.SetDefault("schedule.backup", s.Backup)
}
