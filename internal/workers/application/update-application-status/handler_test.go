// internal/workers/application/update-application-status/handler_test.go
package updateapplicationstatus

import (
	"context"
	"regexp"
	"testing"
	"time"

	"gacp-certification/internal/applications"
	"gacp-certification/internal/common/errors"
	"gacp-certification/internal/common/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var submittedAt = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

var applicationColumns = []string{
	"id", "application_no", "session_id", "plant_id", "plant_group", "certification_purpose",
	"service_type", "applicant_name", "applicant_email", "applicant_phone", "province",
	"status", "process_instance_key", "submitted_at", "updated_at", "snapshot",
}

func newTestHandler(t *testing.T) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewHandler(LoadConfig(), applications.NewRepository(db), logger.NewTestLogger(t)), mock
}

func expectApplication(mock sqlmock.Sqlmock, id string, status applications.Status) {
	mock.ExpectQuery(`FROM applications WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(applicationColumns).AddRow(
			id, "APP-20260314-0001", "sess-1", "turmeric", "GENERAL", "COMMERCIAL",
			"NEW", "Somchai Jaidee", "", "0812345678", "Chiang Mai",
			string(status), nil, submittedAt, submittedAt, []byte(`{}`),
		))
}

func expectTransition(mock sqlmock.Sqlmock, id string, from, to applications.Status) {
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status FROM applications WHERE id = $1 FOR UPDATE`)).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(string(from)))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE applications SET status = $1, updated_at = $2 WHERE id = $3`)).
		WithArgs(string(to), sqlmock.AnyArg(), id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO application_status_history`).
		WithArgs(id, string(from), string(to), "workflow", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
}

func requireCode(t *testing.T, err error, code errors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok, "expected StandardError, got %v", err)
	assert.Equal(t, code, stdErr.Code)
}

func TestHandler_Execute_Transition(t *testing.T) {
	handler, mock := newTestHandler(t)
	expectApplication(mock, "app-1", applications.StatusSubmitted)
	expectTransition(mock, "app-1", applications.StatusSubmitted, applications.StatusUnderReview)

	output, err := handler.Execute(context.Background(), &Input{
		ApplicationID: "app-1",
		TargetStatus:  "under_review",
		Note:          "routed to general queue",
	})

	require.NoError(t, err)
	assert.True(t, output.Changed)
	assert.Equal(t, "UNDER_REVIEW", output.ApplicationStatus)
	assert.Equal(t, "SUBMITTED", output.PreviousStatus)
	assert.NotEmpty(t, output.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_AlreadyApplied(t *testing.T) {
	handler, mock := newTestHandler(t)
	expectApplication(mock, "app-1", applications.StatusUnderReview)

	output, err := handler.Execute(context.Background(), &Input{ApplicationID: "app-1", TargetStatus: "UNDER_REVIEW"})

	require.NoError(t, err)
	assert.False(t, output.Changed)
	assert.Equal(t, "UNDER_REVIEW", output.PreviousStatus)
	assert.Equal(t, submittedAt.Format(time.RFC3339), output.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_IllegalTransition(t *testing.T) {
	handler, mock := newTestHandler(t)
	expectApplication(mock, "app-1", applications.StatusSubmitted)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status FROM applications WHERE id = $1 FOR UPDATE`)).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("SUBMITTED"))
	mock.ExpectRollback()

	_, err := handler.Execute(context.Background(), &Input{ApplicationID: "app-1", TargetStatus: "APPROVED"})

	requireCode(t, err, errors.ErrCodeInvalidStatusTransition)
	stdErr, _ := errors.AsStandardError(err)
	assert.Equal(t, "APPLICATION_INVALID", errors.ConvertToBPMNError(stdErr).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_InvalidInput(t *testing.T) {
	handler, _ := newTestHandler(t)

	tests := []struct {
		name  string
		input Input
	}{
		{"missing id", Input{TargetStatus: "APPROVED"}},
		{"unknown status", Input{ApplicationID: "app-1", TargetStatus: "ARCHIVED"}},
		{"blank status", Input{ApplicationID: "app-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := handler.Execute(context.Background(), &tt.input)
			requireCode(t, err, errors.ErrCodeValidationFailed)
			stdErr, _ := errors.AsStandardError(err)
			assert.False(t, stdErr.Retryable)
		})
	}
}

func TestHandler_Execute_NotFound(t *testing.T) {
	handler, mock := newTestHandler(t)
	mock.ExpectQuery(`FROM applications WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(applicationColumns))

	_, err := handler.Execute(context.Background(), &Input{ApplicationID: "missing", TargetStatus: "UNDER_REVIEW"})

	requireCode(t, err, errors.ErrCodeApplicationNotFound)
}
