package tasks

import "github.com/xraph/offload/cron"

// Schedule holds the cron expressions of the periodic jobs. An empty
// expression leaves that job unscheduled.
type Schedule struct {
	Cleanup      string `mapstructure:"cleanup"`
	DailySummary string `mapstructure:"daily_summary"`
	Backup       string `mapstructure:"backup"`
}

// DefaultSchedule runs cleanup every three minutes, the summary at 08:00
// and the backup hourly.
func DefaultSchedule() Schedule {
	return Schedule{
		Cleanup:      "@every 3m",
		DailySummary: "0 8 * * *",
		Backup:       "@every 1h",
	}
}

// Schedules returns the cron definitions for s.
func Schedules(s Schedule) []*cron.Definition[struct{}] {
	all := []struct{ name, expr, job string }{
		{"cleanup-old-data", s.Cleanup, CleanupOldData},
		{"send-daily-summary", s.DailySummary, SendDailySummary},
		{"backup-database", s.Backup, BackupDatabase},
	}
	defs := make([]*cron.Definition[struct{}], 0, len(all))
	for _, c := range all {
		if c.expr == "" {
			continue
		}
		defs = append(defs, &cron.Definition[struct{}]{Name: c.name, Schedule: c.expr, JobName: c.job})
	}
	return defs
}
