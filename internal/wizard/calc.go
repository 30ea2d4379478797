// internal/wizard/calc.go
package wizard

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

type AreaUnit string

const (
	UnitRai         AreaUnit = "Rai"
	UnitNgan        AreaUnit = "Ngan"
	UnitSquareWa    AreaUnit = "SqWa"
	UnitSquareMeter AreaUnit = "Sqm"
)

const (
	SqmPerRai      = 1600.0
	SqmPerNgan     = 400.0
	SqmPerSquareWa = 4.0

	// LossRate is the share of plants expected to be lost before harvest.
	LossRate = 0.15

	DefaultMaxTiers = 5
)

// Fee schedule in Thai baht.
const (
	FeeDocumentReview  = 5000.0
	FeeOnsiteAudit     = 25000.0
	PlatformFeePercent = 0.10
	VATRate            = 0.07
	FeePerSiteType     = 5000.0
)

// ToSquareMeters converts an area to m². Unknown units are taken as m².
func ToSquareMeters(value float64, unit AreaUnit) float64 {
	switch unit {
	case UnitRai:
		return value * SqmPerRai
	case UnitNgan:
		return value * SqmPerNgan
	case UnitSquareWa:
		return value * SqmPerSquareWa
	default:
		return value
	}
}

// ParseArea reads the free-text area fields the wizard stores. Blank or
// malformed input counts as zero.
func ParseArea(size string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(size), 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// SumPlotArea returns the total plot area in m².
func SumPlotArea(plots []Plot) float64 {
	total := 0.0
	for _, p := range plots {
		total += ToSquareMeters(ParseArea(p.AreaSize), p.AreaUnit)
	}
	return total
}

// ==========================
// Planting density
// ==========================

// Density is plants per m² for one cultivation system.
type Density struct {
	Min     float64 `json:"min"`
	Default float64 `json:"default"`
	Max     float64 `json:"max"`
}

var DensityTable = map[SiteType]Density{
	SiteIndoor:     {Min: 4, Default: 8, Max: 40},
	SiteOutdoor:    {Min: 0.5, Default: 1.5, Max: 4},
	SiteGreenhouse: {Min: 6, Default: 10, Max: 20},
}

// SystemFor maps a cultivation method onto the density table. Methods without
// their own row, vertical and hydroponic included, use the outdoor densities.
func SystemFor(method CultivationMethod) SiteType {
	switch method {
	case MethodIndoor:
		return SiteIndoor
	case MethodGreenhouse:
		return SiteGreenhouse
	default:
		return SiteOutdoor
	}
}

type ProductionEstimate struct {
	AreaRai   float64  `json:"areaRai"`
	AreaSqm   float64  `json:"areaSqm"`
	System    SiteType `json:"system"`
	Density   Density  `json:"density"`
	MinPlants int      `json:"recommendedMin"`
	Default   int      `json:"recommendedDefault"`
	MaxPlants int      `json:"recommendedMax"`
	LossRate  float64  `json:"lossRate"`
}

// EstimateProduction recommends a plant count range for an area after loss.
func EstimateProduction(areaRai float64, method CultivationMethod) ProductionEstimate {
	system := SystemFor(method)
	d := DensityTable[system]
	sqm := areaRai * SqmPerRai
	keep := 1 - LossRate
	return ProductionEstimate{
		AreaRai:   areaRai,
		AreaSqm:   sqm,
		System:    system,
		Density:   d,
		MinPlants: int(math.Floor(sqm * d.Min * keep)),
		Default:   int(math.Floor(sqm * d.Default * keep)),
		MaxPlants: int(math.Floor(sqm * d.Max * keep)),
		LossRate:  LossRate,
	}
}

// EstimateForState uses farm area first, then the site area, both in rai.
func EstimateForState(st *State) ProductionEstimate {
	area := 0.0
	if st.FarmData != nil {
		area = ParseArea(st.FarmData.TotalAreaSize)
	}
	if area == 0 && st.SiteData != nil {
		area = ParseArea(st.SiteData.AreaSize)
	}
	return EstimateProduction(area, st.CultivationMethod)
}

// FarmLayout and GrowingStyle are master-data rows that drive plant counts.
type FarmLayout struct {
	ID               string   `json:"id"`
	NameTH           string   `json:"nameTH"`
	NameEN           string   `json:"nameEN"`
	ApplicableTo     []string `json:"applicableTo"`
	PlantsPerSqm     float64  `json:"plantsPerSqm"`
	ManualPlantCount bool     `json:"manualPlantCount,omitempty"`
}

type GrowingStyle struct {
	ID                    string   `json:"id"`
	NameTH                string   `json:"nameTH"`
	NameEN                string   `json:"nameEN"`
	ApplicableTo          []string `json:"applicableTo"`
	PlantsPerSqm          float64  `json:"plantsPerSqm"`
	SupportsMultipleTiers bool     `json:"supportsMultipleTiers,omitempty"`
	MaxTiers              int      `json:"maxTiers,omitempty"`
}

type PlantCount struct {
	AreaSqm float64 `json:"areaSqm"`
	Density float64 `json:"density"`
	Tiers   int     `json:"tiers"`
	Count   int     `json:"count"`
	Formula string  `json:"formula"`
	Manual  bool    `json:"manualInput,omitempty"`
}

// EstimatePlantCount computes floor(area × density × tiers). A style overrides
// the layout density; tiers only apply to multi-tier styles and are capped at
// the style's maximum. Manual layouts yield zero.
func EstimatePlantCount(areaSqm float64, layout FarmLayout, style *GrowingStyle, tiers int) PlantCount {
	if layout.ManualPlantCount {
		return PlantCount{AreaSqm: areaSqm, Tiers: 1, Manual: true, Formula: "manual plant count"}
	}

	density := layout.PlantsPerSqm
	effective := 1
	if style != nil {
		density = style.PlantsPerSqm
		if style.SupportsMultipleTiers && tiers > 1 {
			limit := style.MaxTiers
			if limit <= 0 {
				limit = DefaultMaxTiers
			}
			effective = tiers
			if effective > limit {
				effective = limit
			}
		}
	}

	count := int(math.Floor(areaSqm * density * float64(effective)))
	formula := fmt.Sprintf("%g m² × %g plants/m² = %d plants", areaSqm, density, count)
	if effective > 1 {
		formula = fmt.Sprintf("%g m² × %g plants/m² × %d tiers = %d plants", areaSqm, density, effective, count)
	}
	return PlantCount{AreaSqm: areaSqm, Density: density, Tiers: effective, Count: count, Formula: formula}
}

// ==========================
// QR tracking cost
// ==========================

type QRTier struct {
	Min      int     `json:"min"`
	Max      int     `json:"max"` // 0 means unbounded
	PricePer float64 `json:"pricePerQR"`
}

var QRPricing = []QRTier{
	{Min: 1, Max: 100, PricePer: 5},
	{Min: 101, Max: 500, PricePer: 4},
	{Min: 501, Max: 1000, PricePer: 3},
	{Min: 1001, Max: 0, PricePer: 2},
}

// QRPrice returns the per-code price for count. Counts below the first tier use its price.
func QRPrice(count int) float64 {
	for _, t := range QRPricing {
		if count >= t.Min && (t.Max == 0 || count <= t.Max) {
			return t.PricePer
		}
	}
	return QRPricing[0].PricePer
}

func QRCost(count int) float64 {
	if count <= 0 {
		return 0
	}
	return float64(count) * QRPrice(count)
}

// ==========================
// Fees, quotes and invoices
// ==========================

type LineItem struct {
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	Amount      float64 `json:"amount"`
}

// Milestone1Fees returns the DTAM document-review fee and the platform fee.
func Milestone1Fees() (dtam, platform float64) {
	return FeeDocumentReview, math.Round(FeeDocumentReview * PlatformFeePercent)
}

// WithVAT returns the VAT amount and the gross total, both rounded to satang.
func WithVAT(net float64) (vat, total float64) {
	vat = roundSatang(net * VATRate)
	return vat, roundSatang(net + vat)
}

func roundSatang(v float64) float64 {
	return math.Round(v*100) / 100
}

// QuoteMilestone1 issues the two first-milestone quotes, not yet accepted.
func QuoteMilestone1(now time.Time, rng *rand.Rand) Milestone1 {
	dtam, platform := Milestone1Fees()
	return Milestone1{
		DTAMQuote:     Quote{Number: QuoteNumber("DTAM-QT", now, rng), Amount: dtam},
		PlatformQuote: Quote{Number: QuoteNumber("PLT-QT", now, rng), Amount: platform},
	}
}

// QuoteNumber formats PREFIX-YYYYNNNN with a random four digit suffix.
func QuoteNumber(prefix string, now time.Time, rng *rand.Rand) string {
	n := 0
	if rng != nil {
		n = rng.Intn(10000)
	}
	return fmt.Sprintf("%s-%d%04d", prefix, now.Year(), n)
}

type InvoicePhase int

const (
	PhaseDocumentReview InvoicePhase = 1
	PhaseOnsiteAudit    InvoicePhase = 2
)

type Invoice struct {
	Phase    InvoicePhase `json:"phase"`
	Items    []LineItem   `json:"items"`
	Subtotal float64      `json:"subtotal"`
	VAT      float64      `json:"vat"`
	Total    float64      `json:"total"`
}

// InvoiceFor builds the invoice of a milestone. Government fees carry no VAT;
// the platform fee line does.
func InvoiceFor(phase InvoicePhase, st *State) (Invoice, error) {
	var items []LineItem
	taxable := 0.0
	switch phase {
	case PhaseDocumentReview:
		dtam, platform := Milestone1Fees()
		items = append(items,
			LineItem{Description: "DTAM document review fee", Quantity: 1, UnitPrice: dtam, Amount: dtam},
			LineItem{Description: "Platform service fee", Quantity: 1, UnitPrice: platform, Amount: platform},
		)
		taxable = platform
	case PhaseOnsiteAudit:
		sites := 1
		if st != nil && len(st.SiteTypes) > 1 {
			sites = len(st.SiteTypes)
		}
		items = append(items, LineItem{Description: "DTAM onsite audit fee", Quantity: 1, UnitPrice: FeeOnsiteAudit, Amount: FeeOnsiteAudit})
		if sites > 1 {
			extra := float64(sites-1) * FeePerSiteType
			items = append(items, LineItem{Description: "Additional site type", Quantity: sites - 1, UnitPrice: FeePerSiteType, Amount: extra})
		}
	default:
		return Invoice{}, fmt.Errorf("unknown invoice phase %d", phase)
	}

	subtotal := 0.0
	for _, it := range items {
		subtotal += it.Amount
	}
	vat, _ := WithVAT(taxable)
	return Invoice{
		Phase:    phase,
		Items:    items,
		Subtotal: subtotal,
		VAT:      vat,
		Total:    roundSatang(subtotal + vat),
	}, nil
}
