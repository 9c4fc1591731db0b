package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/shiksha-erp/shiksha-erp/internal/fees"
	"github.com/shiksha-erp/shiksha-erp/internal/ledger"
)

type fakeDirectory struct {
	students map[uuid.UUID]*fees.Student
}

func (f *fakeDirectory) ListActiveStudentIDs(context.Context) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(f.students))
	for id := range f.students {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeDirectory) GetStudent(_ context.Context, id uuid.UUID) (*fees.Student, error) {
	s, ok := f.students[id]
	if !ok {
		return nil, fees.ErrNotFound
	}
	return s, nil
}

type fakeStatements struct {
	statements map[uuid.UUID]*fees.Statement
}

func (f *fakeStatements) Statement(_ context.Context, id uuid.UUID, _ time.Time) (*fees.Statement, error) {
	s, ok := f.statements[id]
	if !ok {
		return nil, fees.ErrNotFound
	}
	return s, nil
}

type capturingEnqueuer struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (c *capturingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = append(c.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func overdueStatement(id uuid.UUID) *fees.Statement {
	stmt := &fees.Statement{StudentID: id, SessionStartYear: 2025}
	stmt.TotalOutstanding = decimal.NewFromInt(2000)
	for i := 0; i < 12; i++ {
		due := ledger.MonthlyDue{
			Month:  ledger.MonthName(i),
			Year:   ledger.DisplayYear(i, 2025),
			Total:  decimal.NewFromInt(1000),
			Status: ledger.StatusDue,
		}
		if i == 0 {
			due.Paid = decimal.NewFromInt(1000)
			due.Status = ledger.StatusPaid
		}
		stmt.MonthlyDues = append(stmt.MonthlyDues, due)
	}
	return stmt
}

func settledStatement(id uuid.UUID) *fees.Statement {
	stmt := &fees.Statement{StudentID: id, SessionStartYear: 2025}
	stmt.TotalOutstanding = decimal.Zero
	return stmt
}

func newScanJob(t *testing.T, dir *fakeDirectory, stmts *fakeStatements, enq *capturingEnqueuer) *DuesReminderScanJob {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	job := NewDuesReminderScanJob(dir, stmts, redisClient, enq, nil, nil)
	// mid-June: April and May have started, June onwards has not ended yet
	job.clock = func() time.Time {
		return time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)
	}
	return job
}

func TestDuesScanEnqueuesRemindersForStartedUnpaidMonths(t *testing.T) {
	id := uuid.New()
	dir := &fakeDirectory{students: map[uuid.UUID]*fees.Student{
		id: {ID: id, Name: "Asha Verma", Active: true},
	}}
	stmts := &fakeStatements{statements: map[uuid.UUID]*fees.Statement{
		id: overdueStatement(id),
	}}
	enq := &capturingEnqueuer{}
	job := newScanJob(t, dir, stmts, enq)

	require.NoError(t, job.Handle(context.Background(), NewDuesReminderScanTask()))

	// April is paid; May and June are due and started.
	require.Len(t, enq.tasks, 2)

	var payload DuesReminderPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	require.Equal(t, id.String(), payload.StudentID)
	require.Equal(t, "Asha Verma", payload.StudentName)
	require.Equal(t, "May", payload.Month)
	require.Equal(t, 2025, payload.Year)
	require.Equal(t, "1000", payload.Amount)
}

func TestDuesScanSkipsSettledStudents(t *testing.T) {
	id := uuid.New()
	dir := &fakeDirectory{students: map[uuid.UUID]*fees.Student{
		id: {ID: id, Name: "Rohan Gupta", Active: true},
	}}
	stmts := &fakeStatements{statements: map[uuid.UUID]*fees.Statement{
		id: settledStatement(id),
	}}
	enq := &capturingEnqueuer{}
	job := newScanJob(t, dir, stmts, enq)

	require.NoError(t, job.Handle(context.Background(), NewDuesReminderScanTask()))
	require.Empty(t, enq.tasks)
}

func TestDuesScanDeduplicatesAcrossRuns(t *testing.T) {
	id := uuid.New()
	dir := &fakeDirectory{students: map[uuid.UUID]*fees.Student{
		id: {ID: id, Name: "Asha Verma", Active: true},
	}}
	stmts := &fakeStatements{statements: map[uuid.UUID]*fees.Statement{
		id: overdueStatement(id),
	}}
	enq := &capturingEnqueuer{}
	job := newScanJob(t, dir, stmts, enq)

	require.NoError(t, job.Handle(context.Background(), NewDuesReminderScanTask()))
	require.Len(t, enq.tasks, 2)

	require.NoError(t, job.Handle(context.Background(), NewDuesReminderScanTask()))
	require.Len(t, enq.tasks, 2, "second scan must not repeat reminders")
}

type failingEnqueuer struct{}

func (failingEnqueuer) EnqueueContext(context.Context, *asynq.Task, ...asynq.Option) (*asynq.TaskInfo, error) {
	return nil, errors.New("queue unavailable")
}

func TestDuesScanReleasesClaimWhenEnqueueFails(t *testing.T) {
	id := uuid.New()
	dir := &fakeDirectory{students: map[uuid.UUID]*fees.Student{
		id: {ID: id, Name: "Asha Verma", Active: true},
	}}
	stmts := &fakeStatements{statements: map[uuid.UUID]*fees.Statement{
		id: overdueStatement(id),
	}}
	enq := &capturingEnqueuer{}
	job := newScanJob(t, dir, stmts, enq)

	job.Enqueuer = failingEnqueuer{}
	require.NoError(t, job.Handle(context.Background(), NewDuesReminderScanTask()))

	// The failed enqueue must not burn the dedup slot for the TTL window.
	job.Enqueuer = enq
	require.NoError(t, job.Handle(context.Background(), NewDuesReminderScanTask()))
	require.Len(t, enq.tasks, 2)
}

func TestDuesScanSurvivesFailingStudent(t *testing.T) {
	healthy := uuid.New()
	broken := uuid.New()
	dir := &fakeDirectory{students: map[uuid.UUID]*fees.Student{
		healthy: {ID: healthy, Name: "Asha Verma", Active: true},
		broken:  {ID: broken, Name: "Missing Rows", Active: true},
	}}
	stmts := &fakeStatements{statements: map[uuid.UUID]*fees.Statement{
		healthy: overdueStatement(healthy),
	}}
	enq := &capturingEnqueuer{}
	job := newScanJob(t, dir, stmts, enq)

	require.NoError(t, job.Handle(context.Background(), NewDuesReminderScanTask()))
	require.Len(t, enq.tasks, 2)
}

func TestHandleDuesReminderTaskRejectsBadPayload(t *testing.T) {
	task := asynq.NewTask(TaskDuesReminder, []byte("{not json"))
	err := HandleDuesReminderTask(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}
