// internal/applications/repository_test.go
package applications

import (
	"context"
	"database/sql"
	stderrors "errors"
	"regexp"
	"testing"
	"time"

	"gacp-certification/internal/common/errors"
	"gacp-certification/internal/wizard"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// ==========================
// Test Helper Functions
// ==========================

func newTestRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewRepository(db)
	repo.now = func() time.Time { return fixedNow }
	return repo, mock
}

func requireCode(t *testing.T, err error, code errors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok, "expected StandardError, got %v", err)
	assert.Equal(t, code, stdErr.Code)
}

var applicationRowColumns = []string{
	"id", "application_no", "session_id", "plant_id", "plant_group", "certification_purpose",
	"service_type", "applicant_name", "applicant_email", "applicant_phone", "province",
	"status", "process_instance_key", "submitted_at", "updated_at",
}

func testApplication() *Application {
	return &Application{
		ID:                   "app-1",
		SessionID:            "sess-1",
		PlantID:              wizard.PlantTurmeric,
		PlantGroup:           wizard.GroupGeneral,
		CertificationPurpose: wizard.PurposeCommercial,
		ServiceType:          wizard.ServiceNew,
		ApplicantName:        "Somchai Jaidee",
		Province:             "Chiang Mai",
		Snapshot:             []byte(`{"plantId":"turmeric"}`),
	}
}

func expectLockStatus(mock sqlmock.Sqlmock, id string, status Status) {
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status FROM applications WHERE id = $1 FOR UPDATE`)).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(string(status)))
}

func expectTransition(mock sqlmock.Sqlmock, id string, from, to Status) {
	expectLockStatus(mock, id, from)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE applications SET status = $1, updated_at = $2 WHERE id = $3`)).
		WithArgs(string(to), fixedNow, id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO application_status_history`).
		WithArgs(id, string(from), string(to), sqlmock.AnyArg(), sqlmock.AnyArg(), fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))
}

// ==========================
// Status machine
// ==========================

func TestStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to Status
		allowed  bool
	}{
		{StatusSubmitted, StatusUnderReview, true},
		{StatusUnderReview, StatusPaymentPending, true},
		{StatusUnderReview, StatusRevisionRequired, true},
		{StatusRevisionRequired, StatusSubmitted, true},
		{StatusPaymentVerified, StatusInspectionScheduled, true},
		{StatusInspectionCompleted, StatusPhase2PaymentPending, true},
		{StatusApproved, StatusCertificateIssued, true},
		{StatusSubmitted, StatusApproved, false},
		{StatusPaymentPending, StatusRejected, false},
		{StatusApproved, StatusExpired, false},
		{StatusRejected, StatusSubmitted, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}

	for _, s := range []Status{StatusCertificateIssued, StatusRejected, StatusExpired} {
		assert.True(t, s.Terminal(), s)
	}
	assert.False(t, StatusApproved.Terminal())
	assert.False(t, Status("ARCHIVED").Valid())
	assert.Equal(t, StatusPhase2PaymentPending, PaymentPendingStatus(wizard.PhaseOnsiteAudit))
	assert.Equal(t, StatusPaymentVerified, PaymentVerifiedStatus(wizard.PhaseDocumentReview))
}

func TestApplicationNumber(t *testing.T) {
	assert.Equal(t, "APP-20260314-0001", ApplicationNumber(fixedNow, 1))
	assert.Equal(t, "APP-20261231-0120", ApplicationNumber(time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC), 120))
}

// ==========================
// Create
// ==========================

func TestRepository_Create_Success(t *testing.T) {
	repo, mock := newTestRepository(t)
	app := testApplication()
	docs := []wizard.DocumentUpload{
		{ID: "id_card", URL: "https://files.example/id.pdf", Uploaded: true},
		{ID: "site_map", Uploaded: false},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM applications WHERE application_no LIKE $1`)).
		WithArgs("APP-20260314-%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectExec(`INSERT INTO applications`).
		WithArgs("app-1", "APP-20260314-0003", "sess-1", "turmeric", "GENERAL", "COMMERCIAL", "NEW",
			"Somchai Jaidee", "", "", "Chiang Mai", "SUBMITTED", sqlmock.AnyArg(), fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO application_status_history`).
		WithArgs("app-1", "DRAFT", "SUBMITTED", "applicant", sqlmock.AnyArg(), fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO document_verifications`).
		WithArgs(sqlmock.AnyArg(), "app-1", "id_card", "https://files.example/id.pdf", "PENDING").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE applications SET process_instance_key = $1 WHERE id = $2`)).
		WithArgs(int64(42), "app-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var seenNo string
	err := repo.Create(context.Background(), app, docs, func(_ context.Context, a *Application) (int64, error) {
		seenNo = a.ApplicationNo
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "APP-20260314-0003", app.ApplicationNo)
	assert.Equal(t, "APP-20260314-0003", seenNo)
	assert.Equal(t, StatusSubmitted, app.Status)
	require.NotNil(t, app.ProcessInstanceKey)
	assert.Equal(t, int64(42), *app.ProcessInstanceKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Create_BeforeCommitFailureRollsBack(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO applications`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO application_status_history`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectRollback()

	startErr := errors.NewProcessStartFailedError("gacp-certification", stderrors.New("gateway unavailable"))
	err := repo.Create(context.Background(), testApplication(), nil, func(context.Context, *Application) (int64, error) {
		return 0, startErr
	})

	requireCode(t, err, errors.ErrCodeProcessStartFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Create_DuplicateNumber(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO applications`).WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), testApplication(), nil, nil)

	requireCode(t, err, errors.ErrCodeDuplicateApplication)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Create_InsertFailure(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO applications`).WillReturnError(stderrors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), testApplication(), nil, nil)

	requireCode(t, err, errors.ErrCodeDatabaseInsertFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Reads
// ==========================

func TestRepository_Get(t *testing.T) {
	repo, mock := newTestRepository(t)

	cols := append(append([]string{}, applicationRowColumns...), "snapshot")
	mock.ExpectQuery(`SELECT .* FROM applications WHERE id = \$1`).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			"app-1", "APP-20260314-0001", "sess-1", "cannabis", "HIGH_CONTROL", "EXPORT",
			"NEW", "Green Valley Co.", "ops@greenvalley.example", "0812345678", "Chiang Mai",
			"UNDER_REVIEW", int64(77), fixedNow, fixedNow, []byte(`{"plantId":"cannabis","qrCount":100}`),
		))

	app, err := repo.Get(context.Background(), "app-1")

	require.NoError(t, err)
	assert.Equal(t, wizard.PlantCannabis, app.PlantID)
	assert.Equal(t, wizard.GroupHighControl, app.PlantGroup)
	assert.Equal(t, StatusUnderReview, app.Status)
	require.NotNil(t, app.ProcessInstanceKey)
	assert.Equal(t, int64(77), *app.ProcessInstanceKey)

	st, err := app.State()
	require.NoError(t, err)
	assert.Equal(t, 100, st.QRCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Get_NotFound(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectQuery(`SELECT .* FROM applications`).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing")

	requireCode(t, err, errors.ErrCodeApplicationNotFound)
}

func TestRepository_List(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectQuery(`SELECT .* FROM applications\s+WHERE \(\$1 = '' OR status = \$1\)`).
		WithArgs("SUBMITTED", 100, 0).
		WillReturnRows(sqlmock.NewRows(applicationRowColumns).
			AddRow("app-2", "APP-20260314-0002", "sess-2", "kratom", "HIGH_CONTROL", "RESEARCH",
				"NEW", "Ban Suan Community", "", "", "Surat Thani", "SUBMITTED", nil, fixedNow, fixedNow).
			AddRow("app-1", "APP-20260314-0001", "sess-1", "ginger", "GENERAL", "COMMERCIAL",
				"RENEWAL", "Somchai Jaidee", "", "", "Chiang Mai", "SUBMITTED", int64(5), fixedNow, fixedNow))

	apps, err := repo.List(context.Background(), ListFilter{Status: StatusSubmitted, Limit: 500})

	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, "APP-20260314-0002", apps[0].ApplicationNo)
	assert.Nil(t, apps[0].ProcessInstanceKey)
	assert.Nil(t, apps[0].Snapshot)
	assert.Equal(t, wizard.ServiceRenewal, apps[1].ServiceType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_History(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectQuery(`FROM application_status_history`).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "application_id", "from_status", "to_status", "actor", "note", "changed_at"}).
			AddRow(int64(1), "app-1", "DRAFT", "SUBMITTED", "applicant", "", fixedNow).
			AddRow(int64(2), "app-1", "SUBMITTED", "UNDER_REVIEW", "officer.a", "picked up", fixedNow.Add(time.Hour)))

	history, err := repo.History(context.Background(), "app-1")

	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, StatusUnderReview, history[1].To)
	assert.Equal(t, "officer.a", history[1].Actor)
}

// ==========================
// Status updates
// ==========================

func TestRepository_UpdateStatus(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectBegin()
	expectTransition(mock, "app-1", StatusSubmitted, StatusUnderReview)
	mock.ExpectCommit()

	change, err := repo.UpdateStatus(context.Background(), "app-1", StatusUnderReview, "officer.a", "picked up")

	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, change.From)
	assert.Equal(t, StatusUnderReview, change.To)
	assert.Equal(t, fixedNow, change.ChangedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_UpdateStatus_IllegalMove(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectBegin()
	expectLockStatus(mock, "app-1", StatusSubmitted)
	mock.ExpectRollback()

	_, err := repo.UpdateStatus(context.Background(), "app-1", StatusApproved, "officer.a", "")

	requireCode(t, err, errors.ErrCodeInvalidStatusTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_UpdateStatus_UnknownStatus(t *testing.T) {
	repo, mock := newTestRepository(t)

	_, err := repo.UpdateStatus(context.Background(), "app-1", Status("ARCHIVED"), "officer.a", "")

	requireCode(t, err, errors.ErrCodeValidationFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_CountByStatus(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectQuery(`SELECT status, COUNT\(\*\) FROM applications GROUP BY status`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("SUBMITTED", 4).
			AddRow("APPROVED", 1))

	counts, err := repo.CountByStatus(context.Background())

	require.NoError(t, err)
	assert.Equal(t, map[Status]int{StatusSubmitted: 4, StatusApproved: 1}, counts)
}
