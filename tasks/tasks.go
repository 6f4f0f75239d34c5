package tasks

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/xraph/offload/engine"
	"github.com/xraph/offload/job"
)

// Job names.
const (
	ProcessLargeDataset = "process_large_dataset"
	GenerateReport      = "generate_report"
	CleanupOldData      = "cleanup_old_data"
	SendDailySummary    = "send_daily_summary"
	BackupDatabase      = "backup_database"
	AddNumbers          = "add_numbers"
)

// TimestampLayout formats the timestamps in job results.
const TimestampLayout = "2006-01-02 15:04:05"

// Delays are the simulated processing times.
type Delays struct {
	PerItem      time.Duration // process_large_dataset, per item
	Report       time.Duration // generate_report, before building rows
	ReportStep   time.Duration // generate_report, each of ten heavy steps
	Cleanup      time.Duration
	DailySummary time.Duration
	Backup       time.Duration
	Add          time.Duration
}

// DefaultDelays returns the production timings.
func DefaultDelays() Delays {
	return Delays{
		PerItem:      100 * time.Millisecond,
		Report:       5 * time.Second,
		ReportStep:   300 * time.Millisecond,
		Cleanup:      2 * time.Second,
		DailySummary: 3 * time.Second,
		Backup:       4 * time.Second,
		Add:          3 * time.Second,
	}
}

// DatasetInput is the payload of process_large_dataset.
type DatasetInput struct {
	Size int `json:"size"`
}

// DatasetResult is the result of process_large_dataset.
type DatasetResult struct {
	Status         string `json:"status"`
	ProcessedItems int    `json:"processed_items"`
	TotalSum       int64  `json:"total_sum"`
}

// ReportInput is the payload of generate_report.
type ReportInput struct {
	ReportType string `json:"report_type"`
	UserID     int    `json:"user_id"`
}

// ReportResult is the result of generate_report.
type ReportResult struct {
	ReportType  string `json:"report_type"`
	UserID      int    `json:"user_id"`
	GeneratedAt string `json:"generated_at"`
	Rows        int    `json:"rows"`
	Status      string `json:"status"`
}

// CleanupResult is the result of cleanup_old_data.
type CleanupResult struct {
	Task         string `json:"task"`
	DeletedItems int    `json:"deleted_items"`
	Timestamp    string `json:"timestamp"`
}

// SummaryResult is the result of send_daily_summary.
type SummaryResult struct {
	Task       string `json:"task"`
	EmailsSent int    `json:"emails_sent"`
	Timestamp  string `json:"timestamp"`
}

// BackupResult is the result of backup_database.
type BackupResult struct {
	Task         string `json:"task"`
	BackupSizeMB int    `json:"backup_size_mb"`
	Timestamp    string `json:"timestamp"`
}

// AddInput is the payload of add_numbers.
type AddInput struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Tasks holds the job handlers and their simulated timings.
type Tasks struct {
	delays Delays
	now    func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates the handlers. A nil rng seeds one from the runtime.
func New(delays Delays, rng *rand.Rand) *Tasks {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Tasks{delays: delays, now: time.Now, rng: rng}
}

// Register creates the handlers and registers all six jobs with eng. The
// report job goes to the "reports" queue.
func Register(eng *engine.Engine, delays Delays, rng *rand.Rand) *Tasks {
	t := New(delays, rng)
	engine.Register(eng, job.NewDefinition(ProcessLargeDataset, t.ProcessLargeDataset))
	engine.Register(eng, job.NewDefinition(GenerateReport, t.GenerateReport, job.WithQueue("reports")))
	engine.Register(eng, job.NewDefinition(CleanupOldData, t.CleanupOldData))
	engine.Register(eng, job.NewDefinition(SendDailySummary, t.SendDailySummary))
	engine.Register(eng, job.NewDefinition(BackupDatabase, t.BackupDatabase))
	engine.Register(eng, job.NewDefinition(AddNumbers, t.AddNumbers))
	return t
}

// intn returns a uniform integer in [lo, hi].
func (t *Tasks) intn(lo, hi int) int {
	return int(t.sum(1, lo, hi))
}

// sum adds n uniform draws from [lo, hi].
func (t *Tasks) sum(n, lo, hi int) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var total int64
	for range n {
		total += int64(lo + t.rng.IntN(hi-lo+1))
	}
	return total
}

func (t *Tasks) stamp() string { return t.now().Format(TimestampLayout) }

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ProcessLargeDataset sums 1000 draws in [1,100] for each of in.Size items.
func (t *Tasks) ProcessLargeDataset(ctx context.Context, in DatasetInput) (DatasetResult, error) {
	var total int64
	for range in.Size {
		total += t.sum(1000, 1, 100)
		if err := sleep(ctx, t.delays.PerItem); err != nil {
			return DatasetResult{}, err
		}
	}
	return DatasetResult{
		Status:         "completed",
		ProcessedItems: max(in.Size, 0),
		TotalSum:       total,
	}, nil
}

// GenerateReport builds a report of 1000 to 5000 rows.
func (t *Tasks) GenerateReport(ctx context.Context, in ReportInput) (ReportResult, error) {
	if err := sleep(ctx, t.delays.Report); err != nil {
		return ReportResult{}, err
	}
	res := ReportResult{
		ReportType:  in.ReportType,
		UserID:      in.UserID,
		GeneratedAt: t.stamp(),
		Rows:        t.intn(1000, 5000),
		Status:      "success",
	}
	for range 10 {
		t.sum(10000, 1, 1000)
		if err := sleep(ctx, t.delays.ReportStep); err != nil {
			return ReportResult{}, err
		}
	}
	return res, nil
}

// CleanupOldData removes 10 to 100 stale items.
func (t *Tasks) CleanupOldData(ctx context.Context, _ struct{}) (CleanupResult, error) {
	if err := sleep(ctx, t.delays.Cleanup); err != nil {
		return CleanupResult{}, err
	}
	return CleanupResult{Task: CleanupOldData, DeletedItems: t.intn(10, 100), Timestamp: t.stamp()}, nil
}

// SendDailySummary mails 50 to 200 summaries.
func (t *Tasks) SendDailySummary(ctx context.Context, _ struct{}) (SummaryResult, error) {
	if err := sleep(ctx, t.delays.DailySummary); err != nil {
		return SummaryResult{}, err
	}
	return SummaryResult{Task: SendDailySummary, EmailsSent: t.intn(50, 200), Timestamp: t.stamp()}, nil
}

// BackupDatabase writes a 100 to 500 MB backup.
func (t *Tasks) BackupDatabase(ctx context.Context, _ struct{}) (BackupResult, error) {
	if err := sleep(ctx, t.delays.Backup); err != nil {
		return BackupResult{}, err
	}
	return BackupResult{Task: BackupDatabase, BackupSizeMB: t.intn(100, 500), Timestamp: t.stamp()}, nil
}

// AddNumbers returns in.X + in.Y.
func (t *Tasks) AddNumbers(ctx context.Context, in AddInput) (int, error) {
	if err := sleep(ctx, t.delays.Add); err != nil {
		return 0, err
	}
	return in.X + in.Y, nil
}

// SubmitDataset enqueues process_large_dataset.
func SubmitDataset(ctx context.Context, eng *engine.Engine, size int, opts ...job.Option) (*job.Job, error) {
	return engine.Enqueue(ctx, eng, ProcessLargeDataset, DatasetInput{Size: size}, opts...)
}

// SubmitReport enqueues generate_report.
func SubmitReport(ctx context.Context, eng *engine.Engine, reportType string, userID int, opts ...job.Option) (*job.Job, error) {
	return engine.Enqueue(ctx, eng, GenerateReport, ReportInput{ReportType: reportType, UserID: userID}, opts...)
}

// SubmitAdd enqueues add_numbers.
func SubmitAdd(ctx context.Context, eng *engine.Engine, x, y int, opts ...job.Option) (*job.Job, error) {
	return engine.Enqueue(ctx, eng, AddNumbers, AddInput{X: x, Y: y}, opts...)
}
