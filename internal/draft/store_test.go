package draft

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"gacp-certification/internal/common/errors"
	"gacp-certification/internal/common/logger"
	"gacp-certification/internal/wizard"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var created = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

func newMiniredisStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewStore(client, "gacp_wizard_state_v3", ttl, logger.NewTestLogger(t)), mr
}

func sampleState() *wizard.State {
	st := wizard.NewState(created)
	st.CurrentStep = 3
	st.PlantID = wizard.PlantKratom
	st.CertificationPurpose = wizard.PurposeResearch
	st.CultivationMethod = wizard.MethodGreenhouse
	st.ApplicantData = &wizard.ApplicantData{ApplicantType: "COMMUNITY", CommunityName: "Ban Nong"}
	st.Documents = []wizard.DocumentUpload{{ID: "land_deed", Uploaded: true, URL: "https://cdn/land.pdf"}}
	st.Plots = []wizard.Plot{{ID: "p-1", Name: "North", AreaSize: "2", AreaUnit: wizard.UnitRai}}
	st.Submitting = true
	return st
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	s, mr := newMiniredisStore(t, 24*time.Hour)
	ctx := context.Background()
	st := sampleState()

	require.NoError(t, s.Save(ctx, "sess-1", st))
	assert.True(t, mr.Exists("gacp_wizard_state_v3:sess-1"))
	assert.Equal(t, 24*time.Hour, mr.TTL("gacp_wizard_state_v3:sess-1"))

	got, err := s.Load(ctx, "sess-1")
	require.NoError(t, err)

	want := st.Clone()
	want.Submitting = false
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("loaded draft mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_LoadMissing(t *testing.T) {
	s, _ := newMiniredisStore(t, 0)

	_, err := s.Load(context.Background(), "nobody")

	assert.True(t, stderrors.Is(err, ErrNotFound))
}

func TestStore_LoadCorruptDraftIsTreatedAsAbsent(t *testing.T) {
	s, mr := newMiniredisStore(t, 0)
	require.NoError(t, mr.Set("gacp_wizard_state_v3:bad", "{not json"))

	_, err := s.Load(context.Background(), "bad")

	assert.True(t, stderrors.Is(err, ErrNotFound))
}

func TestStore_LoadClampsStepFromOlderDraft(t *testing.T) {
	s, mr := newMiniredisStore(t, 0)
	raw, _ := json.Marshal(map[string]interface{}{"currentStep": 14, "plantId": "plai"})
	require.NoError(t, mr.Set("gacp_wizard_state_v3:old", string(raw)))

	st, err := s.Load(context.Background(), "old")

	require.NoError(t, err)
	assert.Equal(t, 0, st.CurrentStep)
	assert.Equal(t, wizard.PlantPlai, st.PlantID)
	assert.NotNil(t, st.Documents)
}

func TestStore_ExistsAndDelete(t *testing.T) {
	s, _ := newMiniredisStore(t, 0)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "sess-2", sampleState()))

	ok, err := s.Exists(ctx, "sess-2")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, "sess-2"))
	ok, err = s.Exists(ctx, "sess-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_SaveFailureIsDraftStorageError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := NewStore(client, "gacp_wizard_state_v3", time.Minute, logger.NewNoOpLogger())
	st := sampleState()
	data, _ := json.Marshal(st)

	mock.ExpectSet("gacp_wizard_state_v3:sess-3", data, time.Minute).SetErr(stderrors.New("READONLY replica"))

	err := s.Save(context.Background(), "sess-3", st)

	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeDraftStorageFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_LoadFailureIsDraftStorageError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := NewStore(client, "gacp_wizard_state_v3", 0, logger.NewNoOpLogger())
	mock.ExpectGet("gacp_wizard_state_v3:sess-4").SetErr(stderrors.New("connection refused"))

	_, err := s.Load(context.Background(), "sess-4")

	assert.False(t, stderrors.Is(err, ErrNotFound))
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeDraftStorageFailed, stdErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
