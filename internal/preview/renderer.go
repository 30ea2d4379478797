// internal/preview/renderer.go
package preview

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"gacp-certification/internal/common/errors"
	"gacp-certification/internal/wizard"
)

//go:embed templates/*.html
var templateFS embed.FS

type Kind string

const (
	KindDTAMQuote     Kind = "dtam-quote"
	KindPlatformQuote Kind = "platform-quote"
	KindInvoice       Kind = "invoice"
	KindApplication   Kind = "application"
)

const (
	issuerDTAM     = "กรมการแพทย์แผนไทยและการแพทย์ทางเลือก (DTAM)"
	issuerPlatform = "GACP Certification Platform"
)

var quoteNotes = []string{
	"ใบเสนอราคานี้มีผล 30 วันนับจากวันที่ออก",
	"กรุณาตรวจสอบความถูกต้องของข้อมูลก่อนชำระเงิน",
}

// Options carries identifiers issued outside the wizard state.
type Options struct {
	ApplicationNo string
	Phase         wizard.InvoicePhase
	IssuedAt      time.Time
}

// Renderer lays wizard answers out as printable HTML.
type Renderer struct {
	tmpl *template.Template

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("preview").Funcs(template.FuncMap{
		"baht":     Baht,
		"thaiDate": ThaiDate,
		"dash":     orDash,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse preview templates: %w", err)
	}
	return &Renderer{tmpl: tmpl, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}, nil
}

type document struct {
	Title         string
	Issuer        string
	IssuerNote    string
	Number        string
	IssuedAt      time.Time
	ApplicantName string
	ApplicationNo string

	Items    []wizard.LineItem
	Subtotal float64
	VAT      float64
	Total    float64
	ShowVAT  bool

	Accepted   bool
	AcceptedAt time.Time
	Phase      int

	Summary *summary
	Notes   []string
}

type summary struct {
	PlantName     string
	PlantGroup    wizard.PlantGroup
	ServiceType   string
	Purpose       string
	Method        string
	ApplicantType string
	Phone         string
	Email         string
	SiteName      string
	Province      string
	GPS           string
	TotalPlants   int
	Estimate      wizard.ProductionEstimate
	Plots         []wizard.Plot
	Lots          []wizard.Lot
	Documents     []wizard.DocumentUpload
}

// Render writes the document of the given kind. Nothing is written when
// rendering fails.
func (r *Renderer) Render(w io.Writer, kind Kind, st *wizard.State, opts Options) error {
	if st == nil {
		return errors.NewInvalidRequestError("no wizard state to render")
	}
	if opts.IssuedAt.IsZero() {
		opts.IssuedAt = time.Now()
	}

	var (
		doc  *document
		name string
		err  error
	)
	switch kind {
	case KindDTAMQuote:
		doc, name = r.dtamQuote(st, opts), "quote"
	case KindPlatformQuote:
		doc, name = r.platformQuote(st, opts), "quote"
	case KindInvoice:
		doc, err = invoice(st, opts)
		name = "invoice"
	case KindApplication:
		doc, name = application(st, opts), "application"
	default:
		return errors.NewResourceNotFoundError("preview", fmt.Sprintf("unknown document kind %q", kind))
	}
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, doc); err != nil {
		return errors.NewInternalError(fmt.Errorf("render %s: %w", kind, err))
	}
	_, err = buf.WriteTo(w)
	return err
}

func base(st *wizard.State, opts Options, title, issuer string) *document {
	appNo := opts.ApplicationNo
	if appNo == "" {
		appNo = st.ApplicationNo
	}
	return &document{
		Title:         title,
		Issuer:        issuer,
		IssuedAt:      opts.IssuedAt,
		ApplicantName: st.ApplicantData.DisplayName(),
		ApplicationNo: appNo,
	}
}

// quotes returns the accepted quotes, or freshly issued ones before acceptance.
func (r *Renderer) quotes(st *wizard.State, now time.Time) wizard.Milestone1 {
	if st.Milestone1 != nil {
		return *st.Milestone1
	}
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	return wizard.QuoteMilestone1(now, r.rng)
}

func applyQuote(doc *document, q wizard.Quote) {
	doc.Number = q.Number
	doc.Accepted = q.Accepted
	if q.AcceptedAt != nil {
		doc.AcceptedAt = *q.AcceptedAt
	}
	doc.Notes = quoteNotes
}

func (r *Renderer) dtamQuote(st *wizard.State, opts Options) *document {
	doc := base(st, opts, "ใบเสนอราคา (QUOTATION)", issuerDTAM)
	doc.IssuerNote = "ค่าธรรมเนียมราชการ ไม่มีภาษีมูลค่าเพิ่ม"
	q := r.quotes(st, opts.IssuedAt).DTAMQuote
	applyQuote(doc, q)
	doc.Items = []wizard.LineItem{{Description: "ค่าตรวจประเมินเอกสาร / Document review fee", Quantity: 1, UnitPrice: q.Amount, Amount: q.Amount}}
	doc.Subtotal = q.Amount
	doc.Total = q.Amount
	return doc
}

func (r *Renderer) platformQuote(st *wizard.State, opts Options) *document {
	doc := base(st, opts, "ใบเสนอราคา (QUOTATION)", issuerPlatform)
	q := r.quotes(st, opts.IssuedAt).PlatformQuote
	applyQuote(doc, q)
	doc.Items = []wizard.LineItem{{Description: "ค่าบริการแพลตฟอร์ม / Platform service fee", Quantity: 1, UnitPrice: q.Amount, Amount: q.Amount}}
	doc.Subtotal = q.Amount
	doc.VAT, doc.Total = wizard.WithVAT(q.Amount)
	doc.ShowVAT = true
	return doc
}

func invoice(st *wizard.State, opts Options) (*document, error) {
	phase := opts.Phase
	if phase == 0 {
		phase = wizard.PhaseDocumentReview
	}
	inv, err := wizard.InvoiceFor(phase, st)
	if err != nil {
		return nil, errors.NewValidationError(err.Error(), map[string]string{"phase": fmt.Sprint(int(phase))})
	}
	doc := base(st, opts, "ใบแจ้งหนี้ (INVOICE)", issuerPlatform)
	if doc.ApplicationNo != "" {
		doc.Number = fmt.Sprintf("INV-%s-%d", strings.TrimPrefix(doc.ApplicationNo, "APP-"), phase)
	}
	doc.Phase = int(phase)
	doc.Items = inv.Items
	doc.Subtotal = inv.Subtotal
	doc.VAT = inv.VAT
	doc.Total = inv.Total
	doc.ShowVAT = inv.VAT > 0
	doc.Notes = []string{"กรุณาชำระเงินภายใน 7 วันนับจากวันที่ออกใบแจ้งหนี้"}
	return doc, nil
}

func application(st *wizard.State, opts Options) *document {
	doc := base(st, opts, "แบบคำขอรับรอง GACP (APPLICATION)", issuerDTAM)
	s := &summary{
		PlantName:   string(st.PlantID),
		PlantGroup:  st.PlantID.Group(),
		ServiceType: string(st.ServiceType),
		Purpose:     string(st.CertificationPurpose),
		Method:      string(st.CultivationMethod),
		Estimate:    wizard.EstimateForState(st),
		Plots:       st.Plots,
		Lots:        st.Lots,
		Documents:   st.Documents,
	}
	for _, p := range wizard.Plants {
		if p.ID == st.PlantID {
			s.PlantName = p.Name
		}
	}
	if a := st.ApplicantData; a != nil {
		s.ApplicantType = a.ApplicantType
		s.Phone = a.Phone
		s.Email = a.Email
	}
	if site := st.SiteData; site != nil {
		s.SiteName = site.SiteName
		s.Province = site.Province
		if site.GPSLat != "" || site.GPSLng != "" {
			s.GPS = site.GPSLat + ", " + site.GPSLng
		}
	}
	if cd := st.CultivationDetails; cd != nil {
		s.TotalPlants = cd.TotalPlants
	}
	doc.Summary = s
	return doc
}
