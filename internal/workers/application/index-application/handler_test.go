// internal/workers/application/index-application/handler_test.go
package indexapplication

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"gacp-certification/internal/applications"
	"gacp-certification/internal/common/database"
	"gacp-certification/internal/common/errors"
	"gacp-certification/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	apps map[string]*applications.Application
}

func (f *fakeReader) Get(_ context.Context, id string) (*applications.Application, error) {
	app, ok := f.apps[id]
	if !ok {
		return nil, errors.NewApplicationNotFoundError(id)
	}
	return app, nil
}

// fakeBackend stands in for the Elasticsearch client behind applications.Search.
type fakeBackend struct {
	index string
	id    string
	doc   interface{}
	err   error
}

func (f *fakeBackend) IndexDocument(_ context.Context, index, id string, doc interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.index, f.id, f.doc = index, id, doc
	return nil
}

func (f *fakeBackend) Search(context.Context, string, map[string]interface{}, int, int) (*database.SearchResult, error) {
	return nil, stderrors.New("not used")
}

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func testApplication() *applications.Application {
	return &applications.Application{
		ID:            "app-1",
		ApplicationNo: "APP-20260314-0001",
		ApplicantName: "Somchai Jaidee",
		Province:      "Chiang Mai",
		Status:        applications.StatusUnderReview,
		Snapshot:      []byte(`{"plantId":"turmeric"}`),
	}
}

func newTestHandler(t *testing.T, backend *fakeBackend) *Handler {
	t.Helper()
	config := LoadConfig()
	reader := &fakeReader{apps: map[string]*applications.Application{"app-1": testApplication()}}
	h := NewHandler(config, reader, applications.NewSearch(backend, config.Index), logger.NewTestLogger(t))
	h.now = func() time.Time { return fixedNow }
	return h
}

func TestHandler_Execute_Success(t *testing.T) {
	backend := &fakeBackend{}
	handler := newTestHandler(t, backend)

	output, err := handler.Execute(context.Background(), &Input{ApplicationID: "app-1"})

	require.NoError(t, err)
	assert.Equal(t, &Output{
		ApplicationID: "app-1",
		Indexed:       true,
		Index:         "gacp-applications",
		Status:        "UNDER_REVIEW",
		IndexedAt:     "2026-03-14T09:30:00Z",
	}, output)

	assert.Equal(t, "gacp-applications", backend.index)
	assert.Equal(t, "app-1", backend.id)
	doc, ok := backend.doc.(applications.Application)
	require.True(t, ok)
	assert.Nil(t, doc.Snapshot)
	assert.Equal(t, "Chiang Mai", doc.Province)
}

func TestHandler_Execute_BackendFailureIsRetryable(t *testing.T) {
	handler := newTestHandler(t, &fakeBackend{err: stderrors.New("cluster red")})

	_, err := handler.Execute(context.Background(), &Input{ApplicationID: "app-1"})

	require.Error(t, err)
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeSearchQueryFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}

func TestHandler_Execute_Errors(t *testing.T) {
	handler := newTestHandler(t, &fakeBackend{})

	_, err := handler.Execute(context.Background(), &Input{})
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeValidationFailed, stdErr.Code)

	_, err = handler.Execute(context.Background(), &Input{ApplicationID: "nope"})
	stdErr, ok = errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeApplicationNotFound, stdErr.Code)
}
