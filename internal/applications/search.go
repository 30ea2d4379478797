// internal/applications/search.go
package applications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gacp-certification/internal/common/database"
	"gacp-certification/internal/common/errors"
)

const DefaultSearchIndex = "gacp-applications"

// SearchBackend is the part of the Elasticsearch client the staff search uses.
type SearchBackend interface {
	IndexDocument(ctx context.Context, index, id string, doc interface{}) error
	Search(ctx context.Context, index string, query map[string]interface{}, from, size int) (*database.SearchResult, error)
}

type Search struct {
	backend SearchBackend
	index   string
}

func NewSearch(backend SearchBackend, index string) *Search {
	if index == "" {
		index = DefaultSearchIndex
	}
	return &Search{backend: backend, index: index}
}

// Index writes the list view of app (no snapshot) under its id.
func (s *Search) Index(ctx context.Context, app *Application) error {
	doc := *app
	doc.Snapshot = nil
	if err := s.backend.IndexDocument(ctx, s.index, app.ID, doc); err != nil {
		return errors.NewSearchQueryFailedError(s.index, err)
	}
	return nil
}

type SearchPage struct {
	Total int64         `json:"total"`
	Items []Application `json:"items"`
}

// Query runs a free-text search over number, applicant, province and plant,
// optionally narrowed to one status.
func (s *Search) Query(ctx context.Context, text string, status Status, limit, offset int) (*SearchPage, error) {
	limit, offset = ListFilter{Limit: limit, Offset: offset}.page()

	boolQuery := map[string]interface{}{}
	if text = strings.TrimSpace(text); text != "" {
		boolQuery["must"] = []interface{}{
			map[string]interface{}{
				"multi_match": map[string]interface{}{
					"query":    text,
					"fields":   []string{"applicationNo^3", "applicantName^2", "province", "plantId"},
					"operator": "and",
				},
			},
		}
	} else {
		boolQuery["must"] = []interface{}{map[string]interface{}{"match_all": map[string]interface{}{}}}
	}
	if status != "" {
		boolQuery["filter"] = []interface{}{
			map[string]interface{}{"term": map[string]interface{}{"status.keyword": string(status)}},
		}
	}
	query := map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
		"sort":  []interface{}{map[string]interface{}{"submittedAt": "desc"}},
	}

	res, err := s.backend.Search(ctx, s.index, query, offset, limit)
	if err != nil {
		return nil, errors.NewSearchQueryFailedError(s.index, err)
	}

	page := &SearchPage{Total: res.TotalHits, Items: make([]Application, 0, len(res.Hits))}
	for _, hit := range res.Hits {
		var app Application
		if err := json.Unmarshal(hit, &app); err != nil {
			return nil, errors.NewSearchQueryFailedError(s.index, fmt.Errorf("decode hit: %w", err))
		}
		page.Items = append(page.Items, app)
	}
	return page, nil
}
