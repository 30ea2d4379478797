// internal/wizard/documents.go
package wizard

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// SlotDefinition declares one document requirement. AppliesWhen and
// RequiredWhen are expr-lang expressions over the rule environment built by
// ruleEnv; an empty AppliesWhen means the slot always applies.
type SlotDefinition struct {
	Slot         string
	Name         string
	Category     string
	Required     bool
	AppliesWhen  string
	RequiredWhen string
	TemplateURL  string
}

// Requirement is a slot resolved against one wizard state.
type Requirement struct {
	Slot        string `json:"slot"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Required    bool   `json:"required"`
	Uploaded    bool   `json:"uploaded"`
	URL         string `json:"url,omitempty"`
	TemplateURL string `json:"templateUrl,omitempty"`
}

type compiledSlot struct {
	def      SlotDefinition
	applies  *exprvm.Program
	required *exprvm.Program
}

// DocumentCatalog evaluates the slot rules for a state.
type DocumentCatalog struct {
	slots []compiledSlot
	index map[string]int
}

var DefaultSlots = []SlotDefinition{
	{Slot: "app_form", Name: "Application form", Category: "core", Required: true, TemplateURL: "/templates/application_form_v2.pdf"},
	{Slot: "id_card", Name: "National ID card", Category: "core", Required: true},
	{Slot: "house_reg", Name: "House registration", Category: "core", Required: true},
	{Slot: "land_deed", Name: "Land title deed", Category: "land", Required: true},
	{Slot: "land_consent", Name: "Land use consent", Category: "land", RequiredWhen: `landOwnership in ["RENT", "CONSENT"]`, TemplateURL: "/templates/land_consent_form.pdf"},
	{Slot: "company_reg", Name: "Company registration", Category: "core", AppliesWhen: `applicantType == "JURISTIC"`, Required: true},
	{Slot: "community_reg", Name: "Community enterprise registration", Category: "core", AppliesWhen: `applicantType == "COMMUNITY"`, Required: true},
	{Slot: "site_map", Name: "Site map", Category: "site", Required: true},
	{Slot: "building_plan", Name: "Building plan", Category: "site", Required: true},
	{Slot: "photos_exterior", Name: "Exterior photos", Category: "site", Required: true},
	{Slot: "photos_interior", Name: "Interior photos", Category: "site", Required: true},
	{Slot: "production_plan", Name: "Production plan", Category: "production", Required: true, TemplateURL: "/templates/production_plan_template.xlsx"},
	{Slot: "security_measures", Name: "Security measures", Category: "site", Required: true},
	{Slot: "medical_cert", Name: "Medical certificate", Category: "personnel"},
	{Slot: "license_bt11", Name: "Cultivation licence (BT.11)", Category: "licence", AppliesWhen: `plantGroup == "HIGH_CONTROL"`, Required: true},
	{Slot: "license_bt13", Name: "Processing licence (BT.13)", Category: "licence", AppliesWhen: `plantGroup == "HIGH_CONTROL" && processing`, Required: true},
	{Slot: "license_bt16", Name: "Export licence (BT.16)", Category: "licence", AppliesWhen: `plantGroup == "HIGH_CONTROL" && purpose == "EXPORT"`, Required: true},
	{Slot: "elearning_cert", Name: "E-learning certificate", Category: "personnel", AppliesWhen: `plantGroup == "HIGH_CONTROL"`, Required: true},
	{Slot: "strain_cert", Name: "Strain certificate", Category: "production", AppliesWhen: `plantGroup == "HIGH_CONTROL"`, Required: true},
	{Slot: "sop_thai", Name: "Standard operating procedures", Category: "export", AppliesWhen: `purpose == "EXPORT"`, Required: true, TemplateURL: "/templates/sop_guideline.pdf"},
	{Slot: "training_records", Name: "Training records", Category: "export", AppliesWhen: `purpose == "EXPORT"`, Required: true},
	{Slot: "staff_test", Name: "Staff test results", Category: "export", AppliesWhen: `purpose == "EXPORT"`, Required: true},
	{Slot: "soil_water_test", Name: "Soil and water test", Category: "export", AppliesWhen: `purpose == "EXPORT"`, Required: true},
	{Slot: "flower_test", Name: "Flower test", Category: "export", AppliesWhen: `purpose == "EXPORT"`, Required: true},
	{Slot: "input_report", Name: "Farm input report", Category: "export", AppliesWhen: `purpose == "EXPORT"`, Required: true},
	{Slot: "cp_ccp_plan", Name: "CP/CCP plan", Category: "export", AppliesWhen: `purpose == "EXPORT"`, Required: true},
	{Slot: "calibration_cert", Name: "Calibration certificate", Category: "export", AppliesWhen: `purpose == "EXPORT"`, Required: true},
}

var defaultCatalog *DocumentCatalog

func init() {
	c, err := NewDocumentCatalog(DefaultSlots)
	if err != nil {
		panic(err)
	}
	defaultCatalog = c
}

// DefaultCatalog returns the built-in slot catalogue.
func DefaultCatalog() *DocumentCatalog {
	return defaultCatalog
}

func compileRule(expression string) (*exprvm.Program, error) {
	if expression == "" {
		return nil, nil
	}
	return exprlang.Compile(expression,
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	)
}

// NewDocumentCatalog compiles every rule up front. Slot ids must be unique.
func NewDocumentCatalog(defs []SlotDefinition) (*DocumentCatalog, error) {
	c := &DocumentCatalog{index: make(map[string]int, len(defs))}
	for _, def := range defs {
		if def.Slot == "" {
			return nil, fmt.Errorf("document slot without id")
		}
		if _, dup := c.index[def.Slot]; dup {
			return nil, fmt.Errorf("duplicate document slot %q", def.Slot)
		}
		applies, err := compileRule(def.AppliesWhen)
		if err != nil {
			return nil, fmt.Errorf("slot %s applies rule: %w", def.Slot, err)
		}
		required, err := compileRule(def.RequiredWhen)
		if err != nil {
			return nil, fmt.Errorf("slot %s required rule: %w", def.Slot, err)
		}
		c.index[def.Slot] = len(c.slots)
		c.slots = append(c.slots, compiledSlot{def: def, applies: applies, required: required})
	}
	return c, nil
}

// Known reports whether slot is part of the catalogue.
func (c *DocumentCatalog) Known(slot string) bool {
	_, ok := c.index[slot]
	return ok
}

func ruleEnv(st *State) map[string]any {
	env := map[string]any{
		"plantId":       string(st.PlantID),
		"plantGroup":    string(st.PlantID.Group()),
		"purpose":       string(st.CertificationPurpose),
		"method":        string(st.CultivationMethod),
		"serviceType":   string(st.ServiceType),
		"applicantType": "",
		"landOwnership": "",
		"processing":    false,
	}
	if st.PlantID == "" {
		env["plantGroup"] = ""
	}
	if st.ApplicantData != nil {
		env["applicantType"] = st.ApplicantData.ApplicantType
	}
	if st.SiteData != nil {
		env["landOwnership"] = st.SiteData.LandOwnership
	}
	if st.FarmData != nil && env["landOwnership"] == "" {
		env["landOwnership"] = st.FarmData.LandOwnership
	}
	if st.ProductionData != nil {
		env["processing"] = st.ProductionData.Processing
	}
	return env
}

func evalRule(p *exprvm.Program, env map[string]any) (bool, error) {
	out, err := exprlang.Run(p, env)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("rule returned %T, want bool", out)
	}
	return b, nil
}

// Requirements lists the slots that apply to st, in catalogue order, with
// their upload status.
func (c *DocumentCatalog) Requirements(st *State) ([]Requirement, error) {
	env := ruleEnv(st)
	out := make([]Requirement, 0, len(c.slots))
	for _, s := range c.slots {
		if s.applies != nil {
			ok, err := evalRule(s.applies, env)
			if err != nil {
				return nil, fmt.Errorf("slot %s: %w", s.def.Slot, err)
			}
			if !ok {
				continue
			}
		}
		required := s.def.Required
		if !required && s.required != nil {
			ok, err := evalRule(s.required, env)
			if err != nil {
				return nil, fmt.Errorf("slot %s: %w", s.def.Slot, err)
			}
			required = ok
		}
		req := Requirement{
			Slot:        s.def.Slot,
			Name:        s.def.Name,
			Category:    s.def.Category,
			Required:    required,
			TemplateURL: s.def.TemplateURL,
		}
		if doc, ok := st.Document(s.def.Slot); ok && doc.Uploaded {
			req.Uploaded = true
			req.URL = doc.URL
		}
		out = append(out, req)
	}
	return out, nil
}

// MissingRequired returns the required slots that have no finished upload.
func (c *DocumentCatalog) MissingRequired(st *State) ([]string, error) {
	reqs, err := c.Requirements(st)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, r := range reqs {
		if r.Required && !r.Uploaded {
			missing = append(missing, r.Slot)
		}
	}
	return missing, nil
}
