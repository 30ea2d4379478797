// internal/workers/application/check-readiness-score/handler_test.go
package checkreadinessscore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"gacp-certification/internal/applications"
	"gacp-certification/internal/common/errors"
	"gacp-certification/internal/common/logger"
	"gacp-certification/internal/wizard"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeReader struct {
	apps map[string]*applications.Application
	err  error
}

func (f *fakeReader) Get(_ context.Context, id string) (*applications.Application, error) {
	if f.err != nil {
		return nil, f.err
	}
	app, ok := f.apps[id]
	if !ok {
		return nil, errors.NewApplicationNotFoundError(id)
	}
	return app, nil
}

var generalSlots = []string{
	"app_form", "id_card", "house_reg", "land_deed", "site_map",
	"building_plan", "photos_exterior", "photos_interior", "production_plan", "security_measures",
}

func stateWith(plant wizard.PlantID, uploaded []string) *wizard.State {
	st := wizard.NewState(time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC))
	st.PlantID = plant
	st.CertificationPurpose = wizard.PurposeCommercial
	st.CultivationMethod = wizard.MethodOutdoor
	st.ApplicantData = &wizard.ApplicantData{ApplicantType: "INDIVIDUAL"}
	for _, slot := range uploaded {
		st.Documents = append(st.Documents, wizard.DocumentUpload{ID: slot, URL: "https://files.example/" + slot, Uploaded: true})
	}
	return st
}

func readerFor(t *testing.T, id string, st *wizard.State) *fakeReader {
	t.Helper()
	snapshot, err := json.Marshal(st)
	require.NoError(t, err)
	return &fakeReader{apps: map[string]*applications.Application{
		id: {ID: id, PlantID: st.PlantID, Status: applications.StatusSubmitted, Snapshot: snapshot},
	}}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_FullyReady(t *testing.T) {
	st := stateWith(wizard.PlantTurmeric, generalSlots)
	st.Plots = []wizard.Plot{{ID: "plot-1", Name: "North"}}
	st.Lots = []wizard.Lot{{ID: "lot-1", LotCode: "LOT-001", PlotID: "plot-1", PlantCount: 200}}
	st.SecurityData = &wizard.SecurityData{HasFence: true, HasCCTV: true, HasGuard: true, HasAccessControl: true}

	handler := NewHandler(LoadConfig(), readerFor(t, "app-1", st), nil, logger.NewTestLogger(t))
	output, err := handler.Execute(context.Background(), &Input{ApplicationID: "app-1"})

	require.NoError(t, err)
	assert.Equal(t, 100, output.ReadinessScore)
	assert.Equal(t, ScoreBreakdown{Documents: 60, FarmStructure: 20, Security: 20}, output.ScoreBreakdown)
	assert.Equal(t, LevelReady, output.QualificationLevel)
	assert.True(t, output.Ready)
	assert.Empty(t, output.MissingDocuments)
}

func TestHandler_Execute_PartialUploads(t *testing.T) {
	st := stateWith(wizard.PlantGinger, generalSlots[:5])
	st.Plots = []wizard.Plot{{ID: "plot-1", Name: "North"}}
	st.SecurityData = &wizard.SecurityData{HasFence: true}

	handler := NewHandler(LoadConfig(), readerFor(t, "app-2", st), nil, logger.NewTestLogger(t))
	output, err := handler.Execute(context.Background(), &Input{ApplicationID: "app-2"})

	require.NoError(t, err)
	assert.Equal(t, ScoreBreakdown{Documents: 30, FarmStructure: 10, Security: 5}, output.ScoreBreakdown)
	assert.Equal(t, 45, output.ReadinessScore)
	assert.Equal(t, LevelIncomplete, output.QualificationLevel)
	assert.False(t, output.Ready)
	assert.Equal(t, generalSlots[5:], output.MissingDocuments)
}

func TestHandler_Execute_ControlledPlantNeedsLicences(t *testing.T) {
	st := stateWith(wizard.PlantCannabis, generalSlots)
	st.Plots = []wizard.Plot{{ID: "plot-1", Name: "Greenhouse A"}}
	st.Lots = []wizard.Lot{{ID: "lot-1", LotCode: "LOT-001", PlotID: "plot-1"}}
	st.SecurityData = &wizard.SecurityData{HasFence: true, HasCCTV: true, HasGuard: true, HasAccessControl: true}

	handler := NewHandler(LoadConfig(), readerFor(t, "app-3", st), nil, logger.NewTestLogger(t))
	output, err := handler.Execute(context.Background(), &Input{ApplicationID: "app-3"})

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"license_bt11", "elearning_cert", "strain_cert"}, output.MissingDocuments)
	assert.Equal(t, 60*10/13, output.ScoreBreakdown.Documents)
	assert.Equal(t, LevelReady, output.QualificationLevel)
	assert.False(t, output.Ready, "missing licences keep the application out of review")
}

func TestLevel(t *testing.T) {
	assert.Equal(t, LevelReady, level(80))
	assert.Equal(t, LevelPartial, level(79))
	assert.Equal(t, LevelPartial, level(50))
	assert.Equal(t, LevelIncomplete, level(49))
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_Errors(t *testing.T) {
	handler := NewHandler(LoadConfig(), &fakeReader{}, nil, logger.NewTestLogger(t))

	_, err := handler.Execute(context.Background(), &Input{})
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeValidationFailed, stdErr.Code)

	_, err = handler.Execute(context.Background(), &Input{ApplicationID: "missing"})
	stdErr, ok = errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeApplicationNotFound, stdErr.Code)

	broken := &fakeReader{apps: map[string]*applications.Application{"bad": {ID: "bad", Snapshot: []byte(`"nope"`)}}}
	handler = NewHandler(LoadConfig(), broken, nil, logger.NewTestLogger(t))
	_, err = handler.Execute(context.Background(), &Input{ApplicationID: "bad"})
	stdErr, ok = errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeSchemaValidationFailed, stdErr.Code)
}
