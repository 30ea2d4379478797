// internal/api/staff_test.go
package api

import (
	"net/http"
	"testing"
	"time"

	"gacp-certification/internal/applications"
	"gacp-certification/internal/common/auth"
	"gacp-certification/internal/common/errors"
	"gacp-certification/internal/common/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var applicationCols = []string{
	"id", "application_no", "session_id", "plant_id", "plant_group", "certification_purpose",
	"service_type", "applicant_name", "applicant_email", "applicant_phone", "province",
	"status", "process_instance_key", "submitted_at", "updated_at",
}

func newStaffHarness(t *testing.T, validator auth.TokenValidator) (*harness, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	svc, err := applications.NewService(applications.NewRepository(db), nil, "gacp-certification", logger.NewTestLogger(t))
	require.NoError(t, err)
	return newHarness(t, svc, validator), mock
}

func bearer() []string {
	return []string{"Authorization", "Bearer staff-token"}
}

func TestStaff_RequiresToken(t *testing.T) {
	h, mock := newStaffHarness(t, &fakeValidator{info: staffInfo("gacp-inspector")})

	rec := h.do(t, http.MethodGet, "/staff/applications", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, errors.ErrCodeAuthentication, errorCode(t, rec))

	rec = h.do(t, http.MethodGet, "/staff/applications", nil, "Authorization", "Bearer forged")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodGet, "/staff/applications", nil, "Authorization", "Basic c3RhZmY6cHc=")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStaff_RequiresStaffRole(t *testing.T) {
	h, _ := newStaffHarness(t, &fakeValidator{info: staffInfo("farmer")})

	rec := h.do(t, http.MethodGet, "/staff/dashboard", nil, bearer()...)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, errors.ErrCodeForbidden, errorCode(t, rec))
}

func TestStaff_NoValidatorConfigured(t *testing.T) {
	h := newHarness(t, nil, nil)

	rec := h.do(t, http.MethodGet, "/staff/dashboard", nil, bearer()...)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStaff_ListApplications(t *testing.T) {
	h, mock := newStaffHarness(t, &fakeValidator{info: staffInfo("GACP-INSPECTOR")})
	submitted := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	mock.ExpectQuery("FROM applications").
		WithArgs("SUBMITTED", 5, 10).
		WillReturnRows(sqlmock.NewRows(applicationCols).AddRow(
			"app-1", "APP-20260314-0001", "sess-1", "cannabis", "HIGH_CONTROL", "COMMERCIAL",
			"", "Green Leaf Co.", "info@greenleaf.example", "0812345678", "Chiang Mai",
			"SUBMITTED", int64(42), submitted, submitted,
		))

	rec := h.do(t, http.MethodGet, "/staff/applications?status=submitted&limit=5&offset=10", nil, bearer()...)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[struct {
		Applications []applications.Application `json:"applications"`
		Count        int                        `json:"count"`
	}](t, rec)
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "APP-20260314-0001", body.Applications[0].ApplicationNo)
	require.NotNil(t, body.Applications[0].ProcessInstanceKey)
	assert.Equal(t, int64(42), *body.Applications[0].ProcessInstanceKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStaff_ListApplicationsBadQuery(t *testing.T) {
	h, mock := newStaffHarness(t, &fakeValidator{info: staffInfo("gacp-inspector")})

	rec := h.do(t, http.MethodGet, "/staff/applications?status=pending-ish", nil, bearer()...)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = h.do(t, http.MethodGet, "/staff/applications?limit=ten", nil, bearer()...)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStaff_UpdateStatus(t *testing.T) {
	h, mock := newStaffHarness(t, &fakeValidator{info: staffInfo("gacp-inspector")})

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM applications").
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("SUBMITTED"))
	mock.ExpectExec("UPDATE applications SET status").
		WithArgs("UNDER_REVIEW", sqlmock.AnyArg(), "app-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO application_status_history").
		WithArgs("app-1", "SUBMITTED", "UNDER_REVIEW", "inspector.a", "documents received", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	rec := h.do(t, http.MethodPost, "/staff/applications/app-1/status",
		map[string]string{"status": "UNDER_REVIEW", "note": "documents received"}, bearer()...)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	change := decode[applications.StatusChange](t, rec)
	assert.Equal(t, applications.StatusSubmitted, change.From)
	assert.Equal(t, applications.StatusUnderReview, change.To)
	assert.Equal(t, "inspector.a", change.Actor)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStaff_UpdateStatusRejectsIllegalMove(t *testing.T) {
	h, mock := newStaffHarness(t, &fakeValidator{info: staffInfo("gacp-inspector")})

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM applications").
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("CERTIFICATE_ISSUED"))
	mock.ExpectRollback()

	rec := h.do(t, http.MethodPost, "/staff/applications/app-1/status",
		map[string]string{"status": "UNDER_REVIEW"}, bearer()...)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, errors.ErrCodeInvalidStatusTransition, errorCode(t, rec))
	assert.NoError(t, mock.ExpectationsWereMet())

	rec = h.do(t, http.MethodPost, "/staff/applications/app-1/status",
		map[string]string{"status": "LOST"}, bearer()...)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestStaff_GetApplicationNotFound(t *testing.T) {
	h, mock := newStaffHarness(t, &fakeValidator{info: staffInfo("gacp-inspector")})

	mock.ExpectQuery("FROM applications WHERE id").
		WithArgs("app-404").
		WillReturnRows(sqlmock.NewRows(append(applicationCols, "snapshot")))

	rec := h.do(t, http.MethodGet, "/staff/applications/app-404", nil, bearer()...)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, errors.ErrCodeApplicationNotFound, errorCode(t, rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStaff_SearchWithoutBackend(t *testing.T) {
	h, _ := newStaffHarness(t, &fakeValidator{info: staffInfo("gacp-inspector")})

	rec := h.do(t, http.MethodGet, "/staff/applications/search?q=cannabis", nil, bearer()...)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, errors.ErrCodeExternalService, errorCode(t, rec))
}

func TestStaff_Dashboard(t *testing.T) {
	h, mock := newStaffHarness(t, &fakeValidator{info: staffInfo("gacp-accountant")})
	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery("SELECT status, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("SUBMITTED", 3).
			AddRow("PAYMENT_PENDING", 2))
	mock.ExpectQuery("FROM payments").
		WithArgs("PENDING").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("FROM document_verifications").
		WithArgs("PENDING").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery("FROM audits").
		WithArgs("PENDING", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rec := h.do(t, http.MethodGet, "/staff/dashboard", nil, bearer()...)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sum := decode[applications.DashboardSummary](t, rec)
	assert.Equal(t, 5, sum.Total)
	assert.Equal(t, 2, sum.PendingPayments)
	assert.Equal(t, 7, sum.PendingVerifications)
	assert.Equal(t, 1, sum.UpcomingAudits)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPayment_WrongStageIsRejected(t *testing.T) {
	h, mock := newStaffHarness(t, nil)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status, snapshot FROM applications").
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "snapshot"}).AddRow("SUBMITTED", []byte(`{}`)))
	mock.ExpectRollback()

	rec := h.do(t, http.MethodPost, "/applications/app-1/payment",
		map[string]interface{}{"phase": 1, "amount": 5535, "reference": "KBANK-001"})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, errors.ErrCodePaymentVerificationError, errorCode(t, rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}
