// internal/api/groups.go
package api

import (
	"net/http"

	"gacp-certification/internal/wizard"
)

// groupSetter decodes one field group from the request and applies it.
type groupSetter func(s *wizard.Store, r *http.Request) error

// groups maps the {group} path segment of PUT /wizard/{session}/{group}.
var groups = map[string]groupSetter{
	"selection":           setSelection,
	"consent":             setConsent,
	"qr":                  setQR,
	"applicant":           group((*wizard.Store).SetApplicantData),
	"general-info":        group((*wizard.Store).SetGeneralInfo),
	"site":                group((*wizard.Store).SetSiteData),
	"farm":                group((*wizard.Store).SetFarmData),
	"production":          group((*wizard.Store).SetProductionData),
	"cultivation-details": group((*wizard.Store).SetCultivationDetails),
	"security":            group((*wizard.Store).SetSecurityData),
	"harvest":             group((*wizard.Store).SetHarvestData),
	"plots":               collection((*wizard.Store).SetPlots),
	"lots":                collection((*wizard.Store).SetLots),
	"documents":           collection((*wizard.Store).SetDocuments),
}

func group[T any](set func(*wizard.Store, *T)) groupSetter {
	return func(s *wizard.Store, r *http.Request) error {
		v := new(T)
		if err := decodeJSON(r, v); err != nil {
			return err
		}
		set(s, v)
		return nil
	}
}

// collection replaces a whole list; the store rejects lists that break its
// id and plot rules.
func collection[T any](set func(*wizard.Store, []T) error) groupSetter {
	return func(s *wizard.Store, r *http.Request) error {
		var v []T
		if err := decodeJSON(r, &v); err != nil {
			return err
		}
		return set(s, v)
	}
}

// selection is the first step: plant, service and cultivation choices.
// Absent fields are left unchanged.
type selection struct {
	PlantID              *wizard.PlantID              `json:"plantId"`
	ServiceType          *wizard.ServiceType          `json:"serviceType"`
	CertificationPurpose *wizard.CertificationPurpose `json:"certificationPurpose"`
	CultivationMethod    *wizard.CultivationMethod    `json:"cultivationMethod"`
	SiteTypes            []wizard.SiteType            `json:"siteTypes"`
	LocationType         *wizard.SiteType             `json:"locationType"`
	LicensePDFURL        *string                      `json:"licensePdfUrl"`
	YoutubeURL           *string                      `json:"youtubeUrl"`
}

func setSelection(s *wizard.Store, r *http.Request) error {
	var sel selection
	if err := decodeJSON(r, &sel); err != nil {
		return err
	}
	if sel.PlantID != nil {
		if err := s.SetPlant(*sel.PlantID); err != nil {
			return err
		}
	}
	if sel.ServiceType != nil {
		s.SetServiceType(*sel.ServiceType)
	}
	if sel.CertificationPurpose != nil {
		s.SetCertificationPurpose(*sel.CertificationPurpose)
	}
	if sel.CultivationMethod != nil {
		s.SetCultivationMethod(*sel.CultivationMethod)
	}
	if sel.SiteTypes != nil {
		s.SetSiteTypes(sel.SiteTypes)
	}
	if sel.LocationType != nil {
		s.SetLocationType(*sel.LocationType)
	}
	if sel.LicensePDFURL != nil {
		s.SetLicensePDFURL(*sel.LicensePDFURL)
	}
	if sel.YoutubeURL != nil {
		s.SetYoutubeURL(*sel.YoutubeURL)
	}
	return nil
}

func setConsent(s *wizard.Store, r *http.Request) error {
	var body struct {
		PDPA      bool `json:"consentedPDPA"`
		Standards bool `json:"acknowledgedStandards"`
	}
	if err := decodeJSON(r, &body); err != nil {
		return err
	}
	if body.PDPA {
		s.ConsentPDPA()
	}
	if body.Standards {
		s.AcknowledgeStandards()
	}
	return nil
}

func setQR(s *wizard.Store, r *http.Request) error {
	var body struct {
		Count int `json:"qrCount"`
	}
	if err := decodeJSON(r, &body); err != nil {
		return err
	}
	return s.SetQRCount(body.Count)
}
