// internal/applications/service_test.go
package applications

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"

	"gacp-certification/internal/common/errors"
	"gacp-certification/internal/common/logger"
	"gacp-certification/internal/wizard"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStarter struct {
	mu     sync.Mutex
	key    int64
	err    error
	calls  int
	lastID string
	vars   map[string]interface{}
}

func (f *fakeStarter) StartProcess(_ context.Context, processID string, vars map[string]interface{}) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastID = processID
	f.vars = vars
	return f.key, f.err
}

func submittableState() *wizard.State {
	st := wizard.NewState(fixedNow)
	st.PlantID = wizard.PlantTurmeric
	st.CertificationPurpose = wizard.PurposeCommercial
	st.CultivationMethod = wizard.MethodOutdoor
	st.ApplicantData = &wizard.ApplicantData{ApplicantType: "INDIVIDUAL", FirstName: "Somchai", LastName: "Jaidee", Phone: "0812345678"}
	st.SiteData = &wizard.SiteData{SiteName: "Ban Rai", GPSLat: "18.79", Province: "Chiang Mai"}
	st.CultivationDetails = &wizard.CultivationDetails{Method: wizard.MethodOutdoor, TotalPlants: 400}
	st.SecurityData = &wizard.SecurityData{HasFence: true}
	st.HarvestData = &wizard.HarvestData{HarvestMethod: "manual"}
	st.Documents = []wizard.DocumentUpload{{ID: "id_card", URL: "https://files.example/id.pdf", Uploaded: true}}
	return st
}

func newTestService(t *testing.T, starter ProcessStarter) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	repo, mock := newTestRepository(t)
	svc, err := NewService(repo, starter, "gacp-certification", logger.NewTestLogger(t))
	require.NoError(t, err)
	return svc, mock
}

func TestService_Submit_Success(t *testing.T) {
	starter := &fakeStarter{key: 2251799813685249}
	svc, mock := newTestService(t, starter)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO applications`).
		WithArgs(sqlmock.AnyArg(), "APP-20260314-0001", "sess-1", "turmeric", "GENERAL", "COMMERCIAL", "NEW",
			"Somchai Jaidee", "", "0812345678", "Chiang Mai", "SUBMITTED", sqlmock.AnyArg(), fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO application_status_history`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO document_verifications`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE applications SET process_instance_key`).
		WithArgs(int64(2251799813685249), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := svc.Submit(context.Background(), "sess-1", submittableState())

	require.NoError(t, err)
	assert.Equal(t, "APP-20260314-0001", res.ApplicationNo)
	assert.NotEmpty(t, res.ApplicationID)
	assert.Equal(t, StatusSubmitted, res.Status)
	assert.Equal(t, int64(2251799813685249), res.ProcessInstanceKey)

	assert.Equal(t, 1, starter.calls)
	assert.Equal(t, "gacp-certification", starter.lastID)
	assert.Equal(t, res.ApplicationID, starter.vars["applicationId"])
	assert.Equal(t, "GENERAL", starter.vars["plantGroup"])
	assert.NotEmpty(t, starter.vars["missingDocuments"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Submit_IncompleteWizard(t *testing.T) {
	starter := &fakeStarter{}
	svc, mock := newTestService(t, starter)

	st := submittableState()
	st.HarvestData = nil

	_, err := svc.Submit(context.Background(), "sess-1", st)

	requireCode(t, err, errors.ErrCodeStepLocked)
	stdErr, _ := errors.AsStandardError(err)
	assert.Equal(t, 5, stdErr.Metadata["firstIncompleteStep"])
	assert.Zero(t, starter.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Submit_SchemaViolation(t *testing.T) {
	starter := &fakeStarter{}
	svc, mock := newTestService(t, starter)

	st := submittableState()
	st.ApplicantData.IDCard = "12-34"

	_, err := svc.Submit(context.Background(), "sess-1", st)

	requireCode(t, err, errors.ErrCodeSchemaValidationFailed)
	assert.Zero(t, starter.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Submit_ProcessStartFailureLeavesNothing(t *testing.T) {
	starter := &fakeStarter{err: stderrors.New("rpc error: code = Unavailable")}
	svc, mock := newTestService(t, starter)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO applications`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO application_status_history`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO document_verifications`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectRollback()

	_, err := svc.Submit(context.Background(), "sess-1", submittableState())

	requireCode(t, err, errors.ErrCodeProcessStartFailed)
	assert.Equal(t, 1, starter.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Summary(t *testing.T) {
	svc, mock := newTestService(t, nil)
	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery(`GROUP BY status`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("SUBMITTED", 3).AddRow("PAYMENT_PENDING", 2))
	mock.ExpectQuery(`FROM payments WHERE status`).
		WithArgs("PENDING").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`FROM document_verifications WHERE status`).
		WithArgs("PENDING").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(`FROM audits WHERE result`).
		WithArgs("PENDING", fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	sum, err := svc.Summary(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 5, sum.Total)
	assert.Equal(t, 3, sum.ByStatus[StatusSubmitted])
	assert.Equal(t, 2, sum.PendingPayments)
	assert.Equal(t, 7, sum.PendingVerifications)
	assert.Equal(t, 1, sum.UpcomingAudits)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Summary_Error(t *testing.T) {
	svc, mock := newTestService(t, nil)
	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery(`GROUP BY status`).WillReturnError(stderrors.New("connection refused"))
	mock.ExpectQuery(`FROM payments`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`FROM document_verifications`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`FROM audits`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, err := svc.Summary(context.Background())

	requireCode(t, err, errors.ErrCodeQueryExecutionFailed)
}
