// internal/api/masterdata.go
package api

import (
	"net/http"

	"gacp-certification/internal/common/errors"
	"gacp-certification/internal/common/logger"
	"gacp-certification/internal/masterdata"
	"gacp-certification/internal/wizard"
)

// MasterDataHandler serves lookup tables and the stateless calculators.
type MasterDataHandler struct {
	svc    *masterdata.Service
	logger logger.Logger
}

func NewMasterDataHandler(svc *masterdata.Service, log logger.Logger) *MasterDataHandler {
	return &MasterDataHandler{svc: svc, logger: log}
}

// Get handles GET /master-data/{kind}. Farm layouts accept ?method= to keep
// only the layouts of one cultivation method.
func (h *MasterDataHandler) Get(w http.ResponseWriter, r *http.Request) {
	kind := masterdata.Kind(r.PathValue("kind"))
	if method := r.URL.Query().Get("method"); method != "" && kind == masterdata.KindLayouts {
		layouts, err := h.svc.LayoutsFor(r.Context(), wizard.CultivationMethod(method))
		if err != nil {
			writeError(w, h.logger, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"kind": kind, "data": layouts})
		return
	}

	res, err := h.svc.Get(r.Context(), kind)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type plantCountRequest struct {
	AreaSize       string          `json:"areaSize"`
	AreaUnit       wizard.AreaUnit `json:"areaUnit"`
	FarmLayoutID   string          `json:"farmLayoutId"`
	GrowingStyleID string          `json:"growingStyleId,omitempty"`
	Tiers          int             `json:"tiers,omitempty"`
}

// PlantCount handles POST /calculations/plant-count
func (h *MasterDataHandler) PlantCount(w http.ResponseWriter, r *http.Request) {
	var req plantCountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if req.FarmLayoutID == "" {
		writeError(w, h.logger, r, errors.NewValidationError("farm layout is required", map[string]string{"farmLayoutId": "required"}))
		return
	}

	layout, err := h.svc.Layout(r.Context(), req.FarmLayoutID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	var style *wizard.GrowingStyle
	if req.GrowingStyleID != "" {
		s, err := h.svc.Style(r.Context(), req.GrowingStyleID)
		if err != nil {
			writeError(w, h.logger, r, err)
			return
		}
		style = &s
	}

	area := wizard.ToSquareMeters(wizard.ParseArea(req.AreaSize), req.AreaUnit)
	writeJSON(w, http.StatusOK, wizard.EstimatePlantCount(area, layout, style, req.Tiers))
}

type qrCostResponse struct {
	Count    int     `json:"qrCount"`
	PricePer float64 `json:"pricePerQR"`
	Total    float64 `json:"total"`
}

// QRCost handles POST /calculations/qr-cost
func (h *MasterDataHandler) QRCost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Count int `json:"qrCount"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if req.Count < 0 {
		writeError(w, h.logger, r, errors.NewValidationError("qr count must not be negative", map[string]string{"qrCount": "negative"}))
		return
	}
	writeJSON(w, http.StatusOK, qrCostResponse{
		Count:    req.Count,
		PricePer: wizard.QRPrice(req.Count),
		Total:    wizard.QRCost(req.Count),
	})
}
