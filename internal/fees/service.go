package fees

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shiksha-erp/shiksha-erp/internal/ledger"
)

// RepositoryPort defines data access methods for fees.
type RepositoryPort interface {
	LoadSnapshot(ctx context.Context, studentID uuid.UUID, sessionStartYear int) (*Snapshot, error)
	GetStudent(ctx context.Context, id uuid.UUID) (*Student, error)
	ListPayments(ctx context.Context, studentID uuid.UUID, sessionStartYear int) ([]PaymentRow, error)
	InsertPayment(ctx context.Context, input RecordPaymentInput) (*PaymentRow, error)
}

// Service handles fee business logic.
type Service struct {
	repo RepositoryPort
	now  func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, now: time.Now}
}

// ErrInvalidAmount indicates a payment amount that is zero or negative.
var ErrInvalidAmount = errors.New("fees: payment amount must be positive")

// Statement computes the fee ledger for the academic session containing
// asOf (zero asOf means now). The statement reflects the snapshot the
// repository captured, not wall-clock time during computation.
func (s *Service) Statement(ctx context.Context, studentID uuid.UUID, asOf time.Time) (*Statement, error) {
	if studentID == uuid.Nil {
		return nil, fmt.Errorf("%w: student id required", ledger.ErrInvalidInput)
	}
	if asOf.IsZero() {
		asOf = s.now().UTC()
	}
	sessionStartYear := ledger.SessionStartYear(asOf)

	snap, err := s.repo.LoadSnapshot(ctx, studentID, sessionStartYear)
	if err != nil {
		return nil, err
	}

	payments := make([]ledger.Payment, len(snap.Payments))
	for i, p := range snap.Payments {
		payments[i] = ledger.Payment{Amount: p.Amount, PaidAt: p.PaidAt}
	}

	led, err := ledger.Build(ledger.Input{
		StudentID:        snap.Student.ID.String(),
		SessionStartYear: sessionStartYear,
		Template:         snap.Template,
		Services:         snap.Services,
		AdjustmentLogs:   snap.AdjustmentLogs,
		Payments:         payments,
		FeeRecord:        snap.FeeRecord,
		AdmissionDate:    snap.Student.AdmissionDate,
	})
	if err != nil {
		return nil, err
	}

	return &Statement{
		StudentID:        snap.Student.ID,
		SessionStartYear: sessionStartYear,
		Ledger:           *led,
	}, nil
}

// ListPayments returns the payments recorded in the session containing asOf.
func (s *Service) ListPayments(ctx context.Context, studentID uuid.UUID, asOf time.Time) ([]PaymentRow, error) {
	if _, err := s.repo.GetStudent(ctx, studentID); err != nil {
		return nil, err
	}
	if asOf.IsZero() {
		asOf = s.now().UTC()
	}
	return s.repo.ListPayments(ctx, studentID, ledger.SessionStartYear(asOf))
}

// RecordPayment appends a payment for an existing student. The ledger is
// never stored, so no recomputation happens here; the next statement read
// picks the new row up.
func (s *Service) RecordPayment(ctx context.Context, input RecordPaymentInput) (*PaymentRow, error) {
	if !input.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if _, err := s.repo.GetStudent(ctx, input.StudentID); err != nil {
		return nil, err
	}
	if input.PaidAt.IsZero() {
		input.PaidAt = s.now().UTC()
	}
	return s.repo.InsertPayment(ctx, input)
}
