package database

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gacp-certification/internal/common/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeElasticsearch answers with the product header the v8 client insists on.
func fakeElasticsearch(t *testing.T, handler http.HandlerFunc) *ElasticsearchClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := NewElasticsearch(config.ElasticsearchConfig{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client
}

func TestElasticsearch_Search(t *testing.T) {
	var gotBody map[string]interface{}
	client := fakeElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/gacp-applications/_search"))
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = w.Write([]byte(`{"took":3,"hits":{"total":{"value":1},"hits":[{"_source":{"applicationNo":"APP-20260314-0001"}}]}}`))
	})

	res, err := client.Search(context.Background(), "gacp-applications",
		map[string]interface{}{"query": map[string]interface{}{"match_all": map[string]interface{}{}}}, 0, 10)

	require.NoError(t, err)
	assert.Equal(t, int64(1), res.TotalHits)
	require.Len(t, res.Hits, 1)
	assert.JSONEq(t, `{"applicationNo":"APP-20260314-0001"}`, string(res.Hits[0]))
	assert.Contains(t, gotBody, "query")
}

func TestElasticsearch_IndexDocument(t *testing.T) {
	client := fakeElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/gacp-applications/_doc/app-1", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	})

	err := client.IndexDocument(context.Background(), "gacp-applications", "app-1", map[string]string{"status": "SUBMITTED"})
	assert.NoError(t, err)
}

func TestElasticsearch_SearchErrorStatus(t *testing.T) {
	client := fakeElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"index_not_found_exception"}}`))
	})

	_, err := client.Search(context.Background(), "missing", map[string]interface{}{}, 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search query failed")
}

func TestElasticsearch_MissingIndex(t *testing.T) {
	client := &ElasticsearchClient{}
	_, err := client.Search(context.Background(), "", nil, 0, 10)
	assert.ErrorIs(t, err, ErrMissingIndex)
	assert.ErrorIs(t, client.IndexDocument(context.Background(), "", "x", nil), ErrMissingIndex)
}
