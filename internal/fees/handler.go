package fees

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shiksha-erp/shiksha-erp/internal/ledger"
	"github.com/shiksha-erp/shiksha-erp/internal/observability"
	"github.com/shiksha-erp/shiksha-erp/internal/platform/httpx"
)

const idempotencyKeyHeader = "Idempotency-Key"

// Handler manages fee endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	metrics   *observability.Metrics
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
		metrics:   metrics,
	}
}

// MountRoutes registers fee routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/students/{studentID}/fees", func(r chi.Router) {
		r.Get("/ledger", h.getLedger)
		r.Get("/payments", h.listPayments)
		r.Post("/payments", h.createPayment)
	})
}

// getLedger returns the computed statement for the session containing the
// optional as_of date (default: today).
func (h *Handler) getLedger(w http.ResponseWriter, r *http.Request) {
	studentID, err := uuid.Parse(chi.URLParam(r, "studentID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Student ID", "student id must be a UUID")
		return
	}
	asOf, err := parseAsOf(r.URL.Query().Get("as_of"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "as_of must be YYYY-MM-DD")
		return
	}

	started := time.Now()
	statement, err := h.service.Statement(r.Context(), studentID, asOf)
	if err != nil {
		h.respondError(w, "compute fee ledger", err)
		return
	}
	h.metrics.ObserveLedgerBuild(time.Since(started))

	httpx.JSON(w, http.StatusOK, statement)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	studentID, err := uuid.Parse(chi.URLParam(r, "studentID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Student ID", "student id must be a UUID")
		return
	}
	asOf, err := parseAsOf(r.URL.Query().Get("as_of"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "as_of must be YYYY-MM-DD")
		return
	}

	payments, err := h.service.ListPayments(r.Context(), studentID, asOf)
	if err != nil {
		h.respondError(w, "list payments", err)
		return
	}
	if payments == nil {
		payments = []PaymentRow{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payments": payments})
}

type createPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	PaidAt string          `json:"paidDate" validate:"omitempty,datetime=2006-01-02"`
	Method string          `json:"method" validate:"required,oneof=cash cheque transfer upi"`
	Note   string          `json:"note" validate:"max=500"`
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	studentID, err := uuid.Parse(chi.URLParam(r, "studentID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Student ID", "student id must be a UUID")
		return
	}

	var req createPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	var paidAt time.Time
	if req.PaidAt != "" {
		paidAt, err = time.Parse("2006-01-02", req.PaidAt)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "paidDate must be YYYY-MM-DD")
			return
		}
	}

	payment, err := h.service.RecordPayment(r.Context(), RecordPaymentInput{
		StudentID:      studentID,
		Amount:         req.Amount,
		PaidAt:         paidAt,
		Method:         req.Method,
		Note:           req.Note,
		IdempotencyKey: r.Header.Get(idempotencyKeyHeader),
	})
	if err != nil {
		h.respondError(w, "record payment", err)
		return
	}

	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	var malformedErr *ledger.MalformedRecordError
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "student not found")
	case errors.Is(err, ErrDuplicatePayment):
		httpx.Problem(w, http.StatusConflict, "Duplicate Payment", err.Error())
	case errors.Is(err, ErrInvalidAmount):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Amount", err.Error())
	case errors.Is(err, ledger.ErrInvalidInput):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", err.Error())
	case errors.As(err, &malformedErr):
		// A malformed persisted row is a data-integrity problem, not a bad
		// request from this caller.
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusUnprocessableEntity, "Malformed Record", malformedErr.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func parseAsOf(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", raw)
}
