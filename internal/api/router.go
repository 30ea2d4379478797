// internal/api/router.go
package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"gacp-certification/internal/applications"
	"gacp-certification/internal/common/auth"
	"gacp-certification/internal/common/logger"
	"gacp-certification/internal/masterdata"
	"gacp-certification/internal/preview"
	"gacp-certification/internal/session"
	"gacp-certification/internal/wizard"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DocumentStore keeps uploaded wizard documents and returns their public URL.
type DocumentStore interface {
	Upload(ctx context.Context, sessionID, slot, filename, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
}

// ReadinessCheck probes one backing service.
type ReadinessCheck func(ctx context.Context) error

// Deps wires the handlers to the services they drive.
type Deps struct {
	Sessions     *session.Manager
	Applications *applications.Service
	MasterData   *masterdata.Service
	Previews     *preview.Renderer
	Documents    DocumentStore
	Catalog      *wizard.DocumentCatalog
	Auth         auth.TokenValidator
	Checks       map[string]ReadinessCheck
	Logger       logger.Logger

	StaffRoles     []string
	CORSOrigins    []string
	MaxUploadBytes int64
	ReadyTimeout   time.Duration
	Now            func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = logger.NewNoOpLogger()
	}
	if d.Catalog == nil {
		d.Catalog = wizard.DefaultCatalog()
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 10 << 20
	}
	if d.ReadyTimeout <= 0 {
		d.ReadyTimeout = 3 * time.Second
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// NewRouter builds the HTTP surface of the service.
func NewRouter(d Deps) http.Handler {
	d = d.withDefaults()
	log := d.Logger.WithFields(map[string]interface{}{"component": "api"})
	mux := http.NewServeMux()

	handle := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, withObservability(log, pattern, h))
	}
	staff := func(pattern string, h http.HandlerFunc) {
		handle(pattern, requireStaff(d.Auth, d.StaffRoles, log, h))
	}

	health := NewHealthHandler(d.Checks, d.ReadyTimeout, log)
	wz := NewWizardHandler(d, log)
	md := NewMasterDataHandler(d.MasterData, log)
	st := NewStaffHandler(d.Applications, log)

	// Operational
	mux.HandleFunc("GET /health", health.Health)
	mux.HandleFunc("GET /ready", health.Ready)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Wizard sessions
	handle("POST /wizard/sessions", wz.CreateSession)
	handle("GET /wizard/{session}", wz.GetSession)
	handle("PATCH /wizard/{session}", wz.PatchSession)
	handle("PUT /wizard/{session}/{group}", wz.PutGroup)
	handle("POST /wizard/{session}/plots", wz.AddPlot)
	handle("DELETE /wizard/{session}/plots/{id}", wz.RemovePlot)
	handle("POST /wizard/{session}/lots", wz.AddLot)
	handle("DELETE /wizard/{session}/lots/{id}", wz.RemoveLot)
	handle("POST /wizard/{session}/documents/{slot}", wz.UploadDocument)
	handle("DELETE /wizard/{session}/documents/{slot}", wz.RemoveDocument)
	handle("GET /wizard/{session}/documents", wz.Requirements)

	// Navigation and lifecycle
	handle("GET /wizard/{session}/steps", wz.Steps)
	handle("GET /wizard/{session}/step/{n}", wz.OpenStep)
	handle("POST /wizard/{session}/next", wz.Next)
	handle("POST /wizard/{session}/back", wz.Back)
	handle("POST /wizard/{session}/draft", wz.SaveDraft)
	handle("POST /wizard/{session}/submit", wz.Submit)
	handle("POST /wizard/{session}/reset", wz.Reset)
	handle("POST /wizard/{session}/quote/accept", wz.AcceptQuotes)
	handle("GET /wizard/{session}/preview/{kind}", wz.Preview)

	// Master data and calculators
	handle("GET /master-data/{kind}", md.Get)
	handle("POST /calculations/plant-count", md.PlantCount)
	handle("POST /calculations/qr-cost", md.QRCost)

	// Farmer payment confirmation
	handle("POST /applications/{id}/payment", st.RecordPayment)

	// Staff back office
	staff("GET /staff/dashboard", st.Dashboard)
	staff("GET /staff/applications", st.ListApplications)
	staff("GET /staff/applications/search", st.SearchApplications)
	staff("GET /staff/applications/{id}", st.GetApplication)
	staff("POST /staff/applications/{id}/status", st.UpdateStatus)
	staff("GET /staff/audits", st.ListAudits)
	staff("POST /staff/audits", st.ScheduleAudit)
	staff("POST /staff/audits/{id}/result", st.RecordAuditResult)
	staff("GET /staff/accounting/payments", st.ListPayments)
	staff("POST /staff/accounting/payments/{id}/review", st.ReviewPayment)
	staff("GET /staff/verifications", st.ListVerifications)
	staff("POST /staff/verifications/{id}/review", st.ReviewDocument)

	return withCORS(d.CORSOrigins, mux)
}
