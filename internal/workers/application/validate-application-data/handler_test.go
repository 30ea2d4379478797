// internal/workers/application/validate-application-data/handler_test.go
package validateapplicationdata

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"gacp-certification/internal/applications"
	"gacp-certification/internal/common/errors"
	"gacp-certification/internal/common/logger"
	"gacp-certification/internal/wizard"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var submittedAt = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

var applicationColumns = []string{
	"id", "application_no", "session_id", "plant_id", "plant_group", "certification_purpose",
	"service_type", "applicant_name", "applicant_email", "applicant_phone", "province",
	"status", "process_instance_key", "submitted_at", "updated_at", "snapshot",
}

func completeState() *wizard.State {
	st := wizard.NewState(submittedAt)
	st.PlantID = wizard.PlantTurmeric
	st.CertificationPurpose = wizard.PurposeCommercial
	st.CultivationMethod = wizard.MethodOutdoor
	st.ApplicantData = &wizard.ApplicantData{
		ApplicantType: "INDIVIDUAL",
		FirstName:     "Somchai",
		LastName:      "Jaidee",
		IDCard:        "1101700207030",
		Phone:         "0812345678",
		Email:         "somchai@farm.example",
	}
	st.SiteData = &wizard.SiteData{SiteName: "Ban Rai", GPSLat: "18.79", Province: "Chiang Mai"}
	st.CultivationDetails = &wizard.CultivationDetails{Method: wizard.MethodOutdoor, TotalPlants: 400}
	st.SecurityData = &wizard.SecurityData{HasFence: true}
	st.HarvestData = &wizard.HarvestData{HarvestMethod: "manual"}
	st.Documents = []wizard.DocumentUpload{{ID: "id_card", URL: "https://files.example/id.pdf", Uploaded: true}}
	return st
}

func newTestHandler(t *testing.T, config *Config) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	handler, err := NewHandler(config, applications.NewRepository(db), logger.NewTestLogger(t))
	require.NoError(t, err)
	return handler, mock
}

func expectApplication(t *testing.T, mock sqlmock.Sqlmock, id string, st *wizard.State) {
	t.Helper()
	snapshot, err := json.Marshal(st)
	require.NoError(t, err)
	mock.ExpectQuery(`FROM applications WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(applicationColumns).AddRow(
			id, "APP-20260314-0001", "sess-1", string(st.PlantID), string(st.PlantID.Group()), string(st.CertificationPurpose),
			"NEW", "Somchai Jaidee", "", "0812345678", "Chiang Mai",
			"SUBMITTED", nil, submittedAt, submittedAt, snapshot,
		))
}

func codes(out *Output) []string {
	var c []string
	for _, e := range out.ValidationErrors {
		c = append(c, e.Code)
	}
	return c
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_ValidApplication(t *testing.T) {
	handler, mock := newTestHandler(t, LoadConfig())
	expectApplication(t, mock, "app-1", completeState())

	output, err := handler.Execute(context.Background(), &Input{ApplicationID: "app-1"})

	require.NoError(t, err)
	assert.True(t, output.IsValid, "%+v", output.ValidationErrors)
	assert.Equal(t, "app-1", output.ApplicationID)
	assert.Equal(t, wizard.LastStep, output.FirstIncompleteStep)
	assert.Empty(t, output.ValidationErrors)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_IncompleteStep(t *testing.T) {
	handler, mock := newTestHandler(t, LoadConfig())
	st := completeState()
	st.HarvestData = &wizard.HarvestData{}
	expectApplication(t, mock, "app-2", st)

	output, err := handler.Execute(context.Background(), &Input{ApplicationID: "app-2"})

	require.NoError(t, err)
	assert.False(t, output.IsValid)
	assert.Equal(t, 5, output.FirstIncompleteStep)
	assert.Contains(t, codes(output), CodeStepIncomplete)

	found := false
	for _, e := range output.ValidationErrors {
		if e.Code == CodeStepIncomplete {
			found = true
			assert.Equal(t, "harvest", e.Field)
		}
	}
	assert.True(t, found)
}

func TestHandler_Execute_ApplicantChecks(t *testing.T) {
	tests := []struct {
		name      string
		applicant wizard.ApplicantData
		config    *Config
		want      []string
	}{
		{
			name:      "bad id card check digit",
			applicant: wizard.ApplicantData{ApplicantType: "INDIVIDUAL", IDCard: "1101700207031", Phone: "0812345678"},
			config:    LoadConfig(),
			want:      []string{CodeInvalidIDCard},
		},
		{
			name:      "foreign phone number",
			applicant: wizard.ApplicantData{ApplicantType: "INDIVIDUAL", Phone: "+4420791234"},
			config:    LoadConfig(),
			want:      []string{CodeInvalidPhone},
		},
		{
			name:      "no contact",
			applicant: wizard.ApplicantData{ApplicantType: "INDIVIDUAL"},
			config:    LoadConfig(),
			want:      []string{CodeNoContact},
		},
		{
			name:      "no contact allowed",
			applicant: wizard.ApplicantData{ApplicantType: "INDIVIDUAL"},
			config:    &Config{Timeout: time.Second},
			want:      nil,
		},
		{
			name:      "juristic contact email is used",
			applicant: wizard.ApplicantData{ApplicantType: "JURISTIC", CompanyName: "Green Leaf", ContactEmail: "ops@greenleaf.example"},
			config:    LoadConfig(),
			want:      nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, mock := newTestHandler(t, tt.config)
			st := completeState()
			applicant := tt.applicant
			st.ApplicantData = &applicant
			expectApplication(t, mock, "app-3", st)

			output, err := handler.Execute(context.Background(), &Input{ApplicationID: "app-3"})

			require.NoError(t, err)
			assert.Equal(t, tt.want, codes(output))
			assert.Equal(t, len(tt.want) == 0, output.IsValid)
		})
	}
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_MissingApplicationID(t *testing.T) {
	handler, _ := newTestHandler(t, LoadConfig())

	_, err := handler.Execute(context.Background(), &Input{})

	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeValidationFailed, stdErr.Code)
}

func TestHandler_Execute_ApplicationNotFound(t *testing.T) {
	handler, mock := newTestHandler(t, LoadConfig())
	mock.ExpectQuery(`FROM applications WHERE id = \$1`).
		WithArgs("app-404").
		WillReturnRows(sqlmock.NewRows(applicationColumns))

	_, err := handler.Execute(context.Background(), &Input{ApplicationID: "app-404"})

	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeApplicationNotFound, stdErr.Code)
	assert.Equal(t, "APPLICATION_NOT_FOUND", errors.ConvertToBPMNError(stdErr).Code)
}

func TestHandler_Execute_CorruptSnapshot(t *testing.T) {
	handler, mock := newTestHandler(t, LoadConfig())
	mock.ExpectQuery(`FROM applications WHERE id = \$1`).
		WithArgs("app-5").
		WillReturnRows(sqlmock.NewRows(applicationColumns).AddRow(
			"app-5", "APP-20260314-0005", "sess-5", "ginger", "GENERAL", "RESEARCH",
			"NEW", "Ploy", "", "", "", "SUBMITTED", nil, submittedAt, submittedAt, []byte(`[1,2,3]`),
		))

	_, err := handler.Execute(context.Background(), &Input{ApplicationID: "app-5"})

	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeSchemaValidationFailed, stdErr.Code)
	assert.False(t, stdErr.Retryable)
}
