package fees

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/shiksha-erp/shiksha-erp/internal/ledger"
	"github.com/shiksha-erp/shiksha-erp/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for fee data.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ErrNotFound indicates resource not found.
var ErrNotFound = errors.New("fees: not found")

// ErrDuplicatePayment indicates an idempotency key was already processed.
var ErrDuplicatePayment = errors.New("fees: payment already recorded")

const pgUniqueViolation = "23505"

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// LoadSnapshot reads every row the ledger computation needs inside a single
// repeatable-read transaction, so the result is one consistent point in time
// even while payments are being recorded concurrently.
func (r *Repository) LoadSnapshot(ctx context.Context, studentID uuid.UUID, sessionStartYear int) (*Snapshot, error) {
	sessionStart := ledger.SessionStart(sessionStartYear)
	sessionEnd := sessionStart.AddDate(1, 0, 0)

	var snap Snapshot
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		student, err := getStudent(ctx, tx, studentID)
		if err != nil {
			return err
		}
		snap.Student = *student

		snap.Template, err = getFeeTemplate(ctx, tx, student.ClassID)
		if err != nil {
			return err
		}
		snap.Services, err = listServiceEnrollments(ctx, tx, studentID)
		if err != nil {
			return err
		}
		snap.AdjustmentLogs, err = listAdjustmentLogs(ctx, tx, studentID, sessionStart, sessionEnd)
		if err != nil {
			return err
		}
		snap.Payments, err = listPayments(ctx, tx, studentID, sessionStart, sessionEnd)
		if err != nil {
			return err
		}
		snap.FeeRecord, err = getFeeRecord(ctx, tx, studentID, sessionStartYear)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// ListActiveStudentIDs returns the ids of all active students, for the
// dues reminder scan.
func (r *Repository) ListActiveStudentIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM students WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("fees: list active students: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("fees: scan student id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetStudent fetches one student row.
func (r *Repository) GetStudent(ctx context.Context, id uuid.UUID) (*Student, error) {
	return getStudent(ctx, r.pool, id)
}

// ListPayments returns the payments recorded within one academic session,
// oldest first.
func (r *Repository) ListPayments(ctx context.Context, studentID uuid.UUID, sessionStartYear int) ([]PaymentRow, error) {
	sessionStart := ledger.SessionStart(sessionStartYear)
	return listPayments(ctx, r.pool, studentID, sessionStart, sessionStart.AddDate(1, 0, 0))
}

// InsertPayment appends one payment row. A reused idempotency key surfaces as
// ErrDuplicatePayment instead of a second row.
func (r *Repository) InsertPayment(ctx context.Context, input RecordPaymentInput) (*PaymentRow, error) {
	row := PaymentRow{
		ID:        uuid.New(),
		StudentID: input.StudentID,
		Amount:    input.Amount,
		PaidAt:    input.PaidAt,
		Method:    input.Method,
		Note:      input.Note,
	}

	var key pgtype.Text
	if input.IdempotencyKey != "" {
		key = pgtype.Text{String: input.IdempotencyKey, Valid: true}
	}

	query := `
		INSERT INTO payments (id, student_id, amount, paid_at, method, note, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING created_at`

	err := r.pool.QueryRow(ctx, query,
		row.ID, row.StudentID, row.Amount, row.PaidAt, row.Method, row.Note, key,
	).Scan(&row.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrDuplicatePayment
		}
		return nil, fmt.Errorf("fees: insert payment: %w", err)
	}
	return &row, nil
}

func getStudent(ctx context.Context, q querier, id uuid.UUID) (*Student, error) {
	query := `
		SELECT id, branch_id, class_id, name, admission_date, active
		FROM students
		WHERE id = $1`

	var s Student
	err := q.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.BranchID, &s.ClassID, &s.Name, &s.AdmissionDate, &s.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fees: get student: %w", err)
	}
	return &s, nil
}

// getFeeTemplate loads the class template with its monthly breakdown. A class
// without a template resolves to the zero template, which the ledger treats
// as zero tuition.
func getFeeTemplate(ctx context.Context, q querier, classID uuid.UUID) (ledger.FeeTemplate, error) {
	var (
		templateID uuid.UUID
		annual     decimal.NullDecimal
	)
	err := q.QueryRow(ctx,
		`SELECT id, annual_amount FROM fee_templates WHERE class_id = $1`,
		classID,
	).Scan(&templateID, &annual)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.FeeTemplate{}, nil
		}
		return ledger.FeeTemplate{}, fmt.Errorf("fees: get fee template: %w", err)
	}

	tmpl := ledger.FeeTemplate{}
	if annual.Valid {
		tmpl.AnnualAmount = annual.Decimal
	}

	query := `
		SELECT m.id, m.month, m.flat_total, i.label, i.amount
		FROM fee_template_months m
		LEFT JOIN fee_template_items i ON i.template_month_id = m.id
		WHERE m.template_id = $1
		ORDER BY m.id, i.id`

	rows, err := q.Query(ctx, query, templateID)
	if err != nil {
		return ledger.FeeTemplate{}, fmt.Errorf("fees: list template months: %w", err)
	}
	defer rows.Close()

	index := make(map[int64]int)
	for rows.Next() {
		var (
			monthID   int64
			month     string
			flatTotal decimal.NullDecimal
			label     pgtype.Text
			amount    decimal.NullDecimal
		)
		if err := rows.Scan(&monthID, &month, &flatTotal, &label, &amount); err != nil {
			return ledger.FeeTemplate{}, fmt.Errorf("fees: scan template month: %w", err)
		}

		pos, ok := index[monthID]
		if !ok {
			entry := ledger.TemplateMonth{Month: month}
			if flatTotal.Valid {
				entry.Amount = ledger.FlatAmount(flatTotal.Decimal)
			}
			index[monthID] = len(tmpl.Months)
			pos = len(tmpl.Months)
			tmpl.Months = append(tmpl.Months, entry)
		}
		if label.Valid {
			entry := &tmpl.Months[pos]
			entry.Amount.Kind = ledger.AmountItemized
			entry.Amount.Items = append(entry.Amount.Items, ledger.Component{
				Label:  label.String,
				Amount: amount.Decimal,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return ledger.FeeTemplate{}, fmt.Errorf("fees: iterate template months: %w", err)
	}
	return tmpl, nil
}

func listServiceEnrollments(ctx context.Context, q querier, studentID uuid.UUID) ([]ledger.ServiceEnrollment, error) {
	query := `
		SELECT service_type, monthly_charge, active, start_date
		FROM service_enrollments
		WHERE student_id = $1
		ORDER BY service_type`

	rows, err := q.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("fees: list service enrollments: %w", err)
	}
	defer rows.Close()

	var out []ledger.ServiceEnrollment
	for rows.Next() {
		var (
			enr       ledger.ServiceEnrollment
			svcType   string
			startDate pgtype.Date
		)
		if err := rows.Scan(&svcType, &enr.MonthlyCharge, &enr.Active, &startDate); err != nil {
			return nil, fmt.Errorf("fees: scan service enrollment: %w", err)
		}
		enr.Type = ledger.ServiceType(svcType)
		if startDate.Valid {
			start := startDate.Time
			enr.StartDate = &start
		}
		out = append(out, enr)
	}
	return out, rows.Err()
}

func listAdjustmentLogs(ctx context.Context, q querier, studentID uuid.UUID, from, to time.Time) ([]ledger.AdjustmentLog, error) {
	query := `
		SELECT logged_at, reason, amount
		FROM fee_adjustment_logs
		WHERE student_id = $1 AND logged_at >= $2 AND logged_at < $3
		ORDER BY logged_at`

	rows, err := q.Query(ctx, query, studentID, from, to)
	if err != nil {
		return nil, fmt.Errorf("fees: list adjustment logs: %w", err)
	}
	defer rows.Close()

	var out []ledger.AdjustmentLog
	for rows.Next() {
		var entry ledger.AdjustmentLog
		if err := rows.Scan(&entry.Date, &entry.Reason, &entry.Amount); err != nil {
			return nil, fmt.Errorf("fees: scan adjustment log: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func listPayments(ctx context.Context, q querier, studentID uuid.UUID, from, to time.Time) ([]PaymentRow, error) {
	query := `
		SELECT id, student_id, amount, paid_at, method, note, created_at
		FROM payments
		WHERE student_id = $1 AND paid_at >= $2 AND paid_at < $3
		ORDER BY paid_at`

	rows, err := q.Query(ctx, query, studentID, from, to)
	if err != nil {
		return nil, fmt.Errorf("fees: list payments: %w", err)
	}
	defer rows.Close()

	var out []PaymentRow
	for rows.Next() {
		var p PaymentRow
		if err := rows.Scan(&p.ID, &p.StudentID, &p.Amount, &p.PaidAt, &p.Method, &p.Note, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("fees: scan payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func getFeeRecord(ctx context.Context, q querier, studentID uuid.UUID, sessionStartYear int) (ledger.FeeRecord, error) {
	query := `
		SELECT previous_session_dues, due_date
		FROM fee_records
		WHERE student_id = $1 AND session_start_year = $2`

	var rec ledger.FeeRecord
	err := q.QueryRow(ctx, query, studentID, sessionStartYear).Scan(&rec.PreviousSessionDues, &rec.DueDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.FeeRecord{}, nil
		}
		return ledger.FeeRecord{}, fmt.Errorf("fees: get fee record: %w", err)
	}
	return rec, nil
}
