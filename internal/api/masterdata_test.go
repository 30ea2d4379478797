// internal/api/masterdata_test.go
package api

import (
	"context"
	stderrors "errors"
	"net/http"
	"testing"
	"time"

	"gacp-certification/internal/common/errors"
	"gacp-certification/internal/common/logger"
	"gacp-certification/internal/masterdata"
	"gacp-certification/internal/wizard"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMasterData_Get(t *testing.T) {
	h := newHarness(t, nil, nil)

	rec := h.do(t, http.MethodGet, "/master-data/plants", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[struct {
		Kind   masterdata.Kind   `json:"kind"`
		Source masterdata.Source `json:"source"`
		Data   []wizard.Plant    `json:"data"`
	}](t, rec)
	assert.Equal(t, masterdata.SourceFallback, res.Source)
	assert.Len(t, res.Data, len(wizard.Plants))

	rec = h.do(t, http.MethodGet, "/master-data/farm-layouts?method=indoor", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	layouts := decode[struct {
		Data []wizard.FarmLayout `json:"data"`
	}](t, rec)
	require.Len(t, layouts.Data, 1)
	assert.Equal(t, "hydroponic", layouts.Data[0].ID)

	rec = h.do(t, http.MethodGet, "/master-data/provinces", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCalculations_PlantCount(t *testing.T) {
	h := newHarness(t, nil, nil)

	tests := []struct {
		name   string
		body   map[string]interface{}
		status int
		count  int
		tiers  int
	}{
		{"raised bed in ngan", map[string]interface{}{"areaSize": "2", "areaUnit": "Ngan", "farmLayoutId": "raised_bed"}, http.StatusOK, 3200, 1},
		{"vertical rack capped at max tiers", map[string]interface{}{"areaSize": "10", "areaUnit": "Sqm", "farmLayoutId": "hydroponic", "growingStyleId": "vertical", "tiers": 9}, http.StatusOK, 300, 5},
		{"container is manual", map[string]interface{}{"areaSize": "1", "areaUnit": "Rai", "farmLayoutId": "container"}, http.StatusOK, 0, 1},
		{"layout required", map[string]interface{}{"areaSize": "1", "areaUnit": "Rai"}, http.StatusUnprocessableEntity, 0, 0},
		{"unknown style", map[string]interface{}{"areaSize": "1", "farmLayoutId": "hydroponic", "growingStyleId": "bonsai"}, http.StatusUnprocessableEntity, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(t, http.MethodPost, "/calculations/plant-count", tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status != http.StatusOK {
				return
			}
			pc := decode[wizard.PlantCount](t, rec)
			assert.Equal(t, tt.count, pc.Count)
			assert.Equal(t, tt.tiers, pc.Tiers)
		})
	}
}

func TestCalculations_QRCost(t *testing.T) {
	h := newHarness(t, nil, nil)

	rec := h.do(t, http.MethodPost, "/calculations/qr-cost", map[string]int{"qrCount": 500})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[qrCostResponse](t, rec)
	assert.Equal(t, 4.0, res.PricePer)
	assert.Equal(t, 2000.0, res.Total)

	rec = h.do(t, http.MethodPost, "/calculations/qr-cost", map[string]int{"qrCount": -1})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, errors.ErrCodeValidationFailed, errorCode(t, rec))

	rec = h.do(t, http.MethodPost, "/calculations/qr-cost", `{"qrCount":"many"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndReadiness(t *testing.T) {
	log := logger.NewTestLogger(t)
	router := NewRouter(Deps{
		Logger: log,
		Checks: map[string]ReadinessCheck{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return stderrors.New("dial tcp: connection refused") },
			"zeebe": func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		},
		ReadyTimeout: 50 * time.Millisecond,
	})
	h := &harness{router: router}

	rec := h.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/ready", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode[readiness](t, rec)
	assert.Equal(t, "unavailable", body.Status)
	assert.Equal(t, []string{"redis", "zeebe"}, body.Failed)
	assert.Equal(t, "ok", body.Checks["postgres"])

	rec = h.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
