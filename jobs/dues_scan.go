package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/shiksha-erp/shiksha-erp/internal/fees"
	jobmetrics "github.com/shiksha-erp/shiksha-erp/internal/jobs"
	"github.com/shiksha-erp/shiksha-erp/internal/ledger"
)

// reminderDedupTTL keeps a reminder from repeating for the same student and
// fee month across nightly scans.
const reminderDedupTTL = 30 * 24 * time.Hour

// scanConcurrency bounds how many statements are computed at once.
const scanConcurrency = 8

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// StudentDirectory lists scan targets and resolves their names.
type StudentDirectory interface {
	ListActiveStudentIDs(ctx context.Context) ([]uuid.UUID, error)
	GetStudent(ctx context.Context, id uuid.UUID) (*fees.Student, error)
}

// StatementSource computes a student's fee statement for a point in time.
type StatementSource interface {
	Statement(ctx context.Context, studentID uuid.UUID, asOf time.Time) (*fees.Statement, error)
}

// Enqueuer submits follow-up tasks. *asynq.Client satisfies it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// DuesReminderScanJob walks every active student, computes their statement and
// enqueues one reminder per overdue installment month, deduplicated in Redis.
type DuesReminderScanJob struct {
	Students   StudentDirectory
	Statements StatementSource
	Redis      *redis.Client
	Enqueuer   Enqueuer
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	clock      func() time.Time
}

// NewDuesReminderScanJob initialises the scan handler.
func NewDuesReminderScanJob(students StudentDirectory, statements StatementSource, rdb *redis.Client, enqueuer Enqueuer, logger *slog.Logger, metrics *jobmetrics.Metrics) *DuesReminderScanJob {
	return &DuesReminderScanJob{
		Students:   students,
		Statements: statements,
		Redis:      rdb,
		Enqueuer:   enqueuer,
		Logger:     logger,
		Metrics:    metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the dues reminder scan.
func (j *DuesReminderScanJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Students == nil || j.Statements == nil {
		return errors.New("dues scan: handler not configured")
	}

	tracker := j.metrics().Track(TaskDuesReminderScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	asOf := j.now()
	logger := j.logger()
	logger.Info("starting dues reminder scan")

	ids, err := j.Students.ListActiveStudentIDs(ctx)
	if err != nil {
		resultErr = fmt.Errorf("dues scan: list students: %w", err)
		logger.Error("scan failed", slog.Any("error", err))
		return resultErr
	}

	var reminded, skipped, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			n, err := j.scanStudent(gctx, id, asOf)
			if err != nil {
				failed.Add(1)
				logger.Warn("student scan failed",
					slog.String("student_id", id.String()),
					slog.Any("error", err),
				)
				return nil
			}
			if n == 0 {
				skipped.Add(1)
			} else {
				reminded.Add(int64(n))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		resultErr = err
		return resultErr
	}

	logger.Info("completed dues reminder scan",
		slog.Int("students", len(ids)),
		slog.Int64("reminders", reminded.Load()),
		slog.Int64("skipped", skipped.Load()),
		slog.Int64("failures", failed.Load()),
		slog.Duration("duration", time.Since(asOf)),
	)
	return resultErr
}

// scanStudent returns the number of reminders enqueued for one student.
func (j *DuesReminderScanJob) scanStudent(ctx context.Context, id uuid.UUID, asOf time.Time) (int, error) {
	stmt, err := j.Statements.Statement(ctx, id, asOf)
	if err != nil {
		return 0, err
	}
	if !stmt.TotalOutstanding.IsPositive() {
		return 0, nil
	}

	student, err := j.Students.GetStudent(ctx, id)
	if err != nil {
		return 0, err
	}

	// Only months that have already started can be overdue.
	currentIdx := ledger.AcademicIndex(asOf)
	enqueued := 0
	for i, due := range stmt.MonthlyDues {
		if i > currentIdx {
			break
		}
		if due.Status == ledger.StatusPaid {
			continue
		}
		owed := due.Total.Sub(due.Paid)
		if !owed.IsPositive() {
			continue
		}
		fresh, err := j.dedup(ctx, id, due)
		if err != nil {
			return enqueued, err
		}
		if !fresh {
			continue
		}
		task, err := NewDuesReminderTask(DuesReminderPayload{
			StudentID:   id.String(),
			StudentName: student.Name,
			Month:       due.Month,
			Year:        due.Year,
			Amount:      owed.String(),
		})
		if err != nil {
			j.releaseDedup(ctx, id, due)
			return enqueued, err
		}
		if _, err := j.Enqueuer.EnqueueContext(ctx, task, asynq.Queue(QueueDefault)); err != nil {
			// Give the claim back so the next scan retries this reminder
			// instead of waiting out the TTL.
			j.releaseDedup(ctx, id, due)
			return enqueued, err
		}
		j.metrics().AddReminders(due.Month, 1)
		enqueued++
	}
	return enqueued, nil
}

// dedup claims the reminder slot for a student and fee month. It reports true
// when this scan is the first to claim it within the TTL window.
func (j *DuesReminderScanJob) dedup(ctx context.Context, id uuid.UUID, due ledger.MonthlyDue) (bool, error) {
	if j.Redis == nil {
		return true, nil
	}
	return j.Redis.SetNX(ctx, dedupKey(id, due), "1", reminderDedupTTL).Result()
}

// releaseDedup returns a claimed slot after a failed enqueue.
func (j *DuesReminderScanJob) releaseDedup(ctx context.Context, id uuid.UUID, due ledger.MonthlyDue) {
	if j.Redis == nil {
		return
	}
	if err := j.Redis.Del(ctx, dedupKey(id, due)).Err(); err != nil {
		j.logger().Warn("release reminder claim",
			slog.String("student_id", id.String()),
			slog.Any("error", err),
		)
	}
}

func dedupKey(id uuid.UUID, due ledger.MonthlyDue) string {
	return fmt.Sprintf("fees:reminder:%s:%s-%d", id, due.Month, due.Year)
}

func (j *DuesReminderScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDuesReminderScan))
	}
	return slog.Default().With(slog.String("job", TaskDuesReminderScan))
}

func (j *DuesReminderScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *DuesReminderScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
