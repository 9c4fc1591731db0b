package fees

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestRouter(repo *memoryFeesRepo) http.Handler {
	handler := NewHandler(nil, NewService(repo), nil)
	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r
}

func TestCreatePaymentRejectsMalformedPaidDate(t *testing.T) {
	repo := newMemoryFeesRepo()
	student := seedStudent(repo)
	router := newTestRouter(repo)

	body := `{"amount":"500","paidDate":"07/01/2025","method":"cash"}`
	req := httptest.NewRequest(http.MethodPost, "/students/"+student.ID.String()+"/fees/payments", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Empty(t, repo.payments[student.ID])
}

func TestCreatePaymentParsesPaidDate(t *testing.T) {
	repo := newMemoryFeesRepo()
	student := seedStudent(repo)
	router := newTestRouter(repo)

	body := `{"amount":"500","paidDate":"2025-07-01","method":"cash"}`
	req := httptest.NewRequest(http.MethodPost, "/students/"+student.ID.String()+"/fees/payments", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	require.Len(t, repo.payments[student.ID], 1)
	require.Equal(t, time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC), repo.payments[student.ID][0].PaidAt)
}
