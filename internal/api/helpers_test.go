// internal/api/helpers_test.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"gacp-certification/internal/applications"
	"gacp-certification/internal/common/auth"
	"gacp-certification/internal/common/errors"
	"gacp-certification/internal/common/logger"
	"gacp-certification/internal/draft"
	"gacp-certification/internal/masterdata"
	"gacp-certification/internal/preview"
	"gacp-certification/internal/session"
	"gacp-certification/internal/wizard"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type fakeSubmitter struct {
	mu    sync.Mutex
	err   error
	calls int
	last  *wizard.State
}

func (f *fakeSubmitter) Submit(_ context.Context, _ string, st *wizard.State) (*applications.SubmissionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = st
	if f.err != nil {
		return nil, f.err
	}
	return &applications.SubmissionResult{
		ApplicationID: "app-1",
		ApplicationNo: "APP-20260314-0001",
		Status:        applications.StatusSubmitted,
		SubmittedAt:   fixedNow,
	}, nil
}

type fakeStorage struct {
	mu      sync.Mutex
	err     error
	n       int
	uploads map[string][]byte
	deleted []string
}

func (f *fakeStorage) Upload(_ context.Context, sessionID, slot, filename, _ string, body io.Reader) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.n++
	url := fmt.Sprintf("https://files.example/%s/%s/%d-%s", sessionID, slot, f.n, filename)
	if f.uploads == nil {
		f.uploads = make(map[string][]byte)
	}
	f.uploads[url] = data
	return url, nil
}

func (f *fakeStorage) Delete(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, url)
	return nil
}

type fakeValidator struct {
	info *auth.TokenInfo
	err  error
}

func (f *fakeValidator) ValidateToken(_ context.Context, token string) (*auth.TokenInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	if token != "staff-token" {
		return nil, errors.NewAuthenticationError("token is expired, revoked or malformed")
	}
	return f.info, nil
}

func staffInfo(roles ...string) *auth.TokenInfo {
	info := &auth.TokenInfo{Active: true, Username: "inspector.a"}
	info.RealmAccess.Roles = roles
	return info
}

type harness struct {
	router    http.Handler
	redis     *miniredis.Miniredis
	sessions  *session.Manager
	submitter *fakeSubmitter
	storage   *fakeStorage
}

func newHarness(t *testing.T, apps *applications.Service, validator auth.TokenValidator) *harness {
	t.Helper()
	log := logger.NewTestLogger(t)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	drafts := draft.NewStore(client, "gacp_wizard_state_v3", 0, log)
	submitter := &fakeSubmitter{}
	sessions := session.NewManager(drafts, submitter, session.Config{Debounce: 10 * time.Millisecond}, log,
		session.WithClock(func() time.Time { return fixedNow }))
	t.Cleanup(sessions.Close)

	renderer, err := preview.NewRenderer()
	require.NoError(t, err)

	storage := &fakeStorage{}
	router := NewRouter(Deps{
		Sessions:       sessions,
		Applications:   apps,
		MasterData:     masterdata.NewService(nil, nil, masterdata.Config{}, log),
		Previews:       renderer,
		Documents:      storage,
		Auth:           validator,
		Logger:         log,
		StaffRoles:     []string{"gacp-inspector", "gacp-accountant"},
		CORSOrigins:    []string{"https://gacp.example"},
		MaxUploadBytes: 1 << 20,
		Now:            func() time.Time { return fixedNow },
	})

	return &harness{router: router, redis: mr, sessions: sessions, submitter: submitter, storage: storage}
}

func (h *harness) do(t *testing.T, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *harness) createSession(t *testing.T) string {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/wizard/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var v sessionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	require.NotEmpty(t, v.SessionID)
	return v.SessionID
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) errors.ErrorCode {
	t.Helper()
	return decode[errors.StandardError](t, rec).Code
}
