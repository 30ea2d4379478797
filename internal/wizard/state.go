// internal/wizard/state.go
package wizard

import (
	"encoding/json"
	"time"
)

type PlantID string

const (
	PlantCannabis      PlantID = "cannabis"
	PlantKratom        PlantID = "kratom"
	PlantTurmeric      PlantID = "turmeric"
	PlantGinger        PlantID = "ginger"
	PlantBlackGalangal PlantID = "black_galangal"
	PlantPlai          PlantID = "plai"
)

type PlantGroup string

const (
	GroupHighControl PlantGroup = "HIGH_CONTROL"
	GroupGeneral     PlantGroup = "GENERAL"
)

// Plant is one entry of the supported plant catalogue.
type Plant struct {
	ID    PlantID    `json:"id"`
	Name  string     `json:"name"`
	Group PlantGroup `json:"group"`
}

var Plants = []Plant{
	{ID: PlantCannabis, Name: "กัญชา", Group: GroupHighControl},
	{ID: PlantKratom, Name: "กระท่อม", Group: GroupHighControl},
	{ID: PlantTurmeric, Name: "ขมิ้นชัน", Group: GroupGeneral},
	{ID: PlantGinger, Name: "ขิง", Group: GroupGeneral},
	{ID: PlantBlackGalangal, Name: "กระชายดำ", Group: GroupGeneral},
	{ID: PlantPlai, Name: "ไพล", Group: GroupGeneral},
}

// Group returns the regulatory group. Unknown plants are treated as GENERAL.
func (p PlantID) Group() PlantGroup {
	for _, plant := range Plants {
		if plant.ID == p {
			return plant.Group
		}
	}
	return GroupGeneral
}

func (p PlantID) Valid() bool {
	for _, plant := range Plants {
		if plant.ID == p {
			return true
		}
	}
	return false
}

type ServiceType string

const (
	ServiceNew         ServiceType = "NEW"
	ServiceRenewal     ServiceType = "RENEWAL"
	ServiceModify      ServiceType = "MODIFY"
	ServiceReplacement ServiceType = "REPLACEMENT"
)

type CertificationPurpose string

const (
	PurposeResearch   CertificationPurpose = "RESEARCH"
	PurposeCommercial CertificationPurpose = "COMMERCIAL"
	PurposeExport     CertificationPurpose = "EXPORT"
)

type SiteType string

const (
	SiteOutdoor    SiteType = "OUTDOOR"
	SiteIndoor     SiteType = "INDOOR"
	SiteGreenhouse SiteType = "GREENHOUSE"
)

type CultivationMethod string

const (
	MethodOutdoor    CultivationMethod = "outdoor"
	MethodGreenhouse CultivationMethod = "greenhouse"
	MethodIndoor     CultivationMethod = "indoor"
	MethodVertical   CultivationMethod = "vertical"
	MethodHydroponic CultivationMethod = "hydroponic"
)

// ==========================
// Step groups
// ==========================

type PersonnelHygiene struct {
	TrainingProvided bool `json:"trainingProvided"`
	HealthCheck      bool `json:"healthCheck"`
	ProtectiveGear   bool `json:"protectiveGear"`
}

// ApplicantData covers individual, community enterprise and juristic applicants.
type ApplicantData struct {
	ApplicantType string `json:"applicantType"`

	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	FullName    string `json:"fullName,omitempty"`
	IDCard      string `json:"idCard,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	LineID      string `json:"lineId,omitempty"`
	Address     string `json:"address,omitempty"`
	Province    string `json:"province,omitempty"`
	District    string `json:"district,omitempty"`
	Subdistrict string `json:"subdistrict,omitempty"`
	PostalCode  string `json:"postalCode,omitempty"`

	CommunityName      string `json:"communityName,omitempty"`
	CommunityRegDate   string `json:"communityRegDate,omitempty"`
	PresidentName      string `json:"presidentName,omitempty"`
	PresidentIDCard    string `json:"presidentIdCard,omitempty"`
	MemberCount        int    `json:"memberCount,omitempty"`
	RegistrationSVC01  string `json:"registrationSVC01,omitempty"`
	HouseRegistration  string `json:"houseRegistrationCode,omitempty"`
	CompanyName        string `json:"companyName,omitempty"`
	CompanyAddress     string `json:"companyAddress,omitempty"`
	TaxID              string `json:"taxId,omitempty"`
	DirectorName       string `json:"directorName,omitempty"`
	DirectorIDCard     string `json:"directorIdCard,omitempty"`
	RegistrationNumber string `json:"registrationNumber,omitempty"`
	PowerOfAttorneyURL string `json:"powerOfAttorneyUrl,omitempty"`
	ContactName        string `json:"contactName,omitempty"`
	ContactPhone       string `json:"contactPhone,omitempty"`
	ContactEmail       string `json:"contactEmail,omitempty"`

	LicenseNumber    string            `json:"licenseNumber,omitempty"`
	LicenseType      string            `json:"licenseType,omitempty"`
	PersonnelHygiene *PersonnelHygiene `json:"personnelHygiene,omitempty"`
}

// DisplayName picks the name staff see first for the applicant type.
func (a *ApplicantData) DisplayName() string {
	if a == nil {
		return ""
	}
	switch a.ApplicantType {
	case "JURISTIC":
		return a.CompanyName
	case "COMMUNITY":
		return a.CommunityName
	}
	if a.FullName != "" {
		return a.FullName
	}
	if a.FirstName == "" {
		return a.LastName
	}
	if a.LastName == "" {
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

type GeneralInfo struct {
	ProjectName string `json:"projectName"`
	CertType    string `json:"certType"`
}

type StepDocument struct {
	StepNumber int    `json:"stepNumber"`
	DocType    string `json:"docType"`
	FileName   string `json:"fileName,omitempty"`
	FileURL    string `json:"fileUrl,omitempty"`
	UploadedAt string `json:"uploadedAt,omitempty"`
	Required   bool   `json:"required"`
}

type SiteData struct {
	SiteName       string  `json:"siteName"`
	Address        string  `json:"address"`
	Province       string  `json:"province"`
	District       string  `json:"district"`
	Subdistrict    string  `json:"subdistrict"`
	PostalCode     string  `json:"postalCode"`
	GPSLat         string  `json:"gpsLat,omitempty"`
	GPSLng         string  `json:"gpsLng,omitempty"`
	AreaSize       string  `json:"areaSize,omitempty"`
	AreaUnit       string  `json:"areaUnit,omitempty"`
	NorthBorder    string  `json:"northBorder,omitempty"`
	SouthBorder    string  `json:"southBorder,omitempty"`
	EastBorder     string  `json:"eastBorder,omitempty"`
	WestBorder     string  `json:"westBorder,omitempty"`
	LandOwnership  string  `json:"landOwnership,omitempty"`
	SoilType       string  `json:"soilType,omitempty"`
	WaterSource    string  `json:"waterSource,omitempty"`
	HasCCTV        bool    `json:"hasCCTV,omitempty"`
	HasFence2m     bool    `json:"hasFence2m,omitempty"`
	HasAccessLog   bool    `json:"hasAccessLog,omitempty"`
	HasAnimalFence bool    `json:"hasAnimalFence,omitempty"`
	Latitude       float64 `json:"latitude,omitempty"`
	Longitude      float64 `json:"longitude,omitempty"`
}

type FarmData struct {
	ID            string         `json:"id,omitempty"`
	FarmName      string         `json:"farmName"`
	Address       string         `json:"address"`
	Province      string         `json:"province"`
	District      string         `json:"district"`
	Subdistrict   string         `json:"subdistrict"`
	PostalCode    string         `json:"postalCode"`
	GPSLat        string         `json:"gpsLat,omitempty"`
	GPSLng        string         `json:"gpsLng,omitempty"`
	TotalAreaSize string         `json:"totalAreaSize"`
	TotalAreaUnit AreaUnit       `json:"totalAreaUnit"`
	LandOwnership string         `json:"landOwnership"`
	WaterSource   string         `json:"waterSource,omitempty"`
	SoilType      string         `json:"soilType,omitempty"`
	SoilPH        string         `json:"soilPH,omitempty"`
	HasFence      bool           `json:"hasFence,omitempty"`
	HasCCTV       bool           `json:"hasCCTV,omitempty"`
	Documents     []StepDocument `json:"documents,omitempty"`
}

type PlantVariety struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	SourceType string `json:"sourceType"`
	SourceName string `json:"sourceName,omitempty"`
	Quantity   int    `json:"quantity,omitempty"`
}

type ProductionData struct {
	PlantParts      []string       `json:"plantParts,omitempty"`
	PropagationType string         `json:"propagationType,omitempty"`
	IrrigationType  string         `json:"irrigationType,omitempty"`
	Varieties       []PlantVariety `json:"varieties,omitempty"`
	SeedSource      string         `json:"seedSource,omitempty"`
	TreeCount       int            `json:"treeCount,omitempty"`
	AreaSizeRai     float64        `json:"areaSizeRai,omitempty"`
	HarvestCycles   int            `json:"harvestCycles,omitempty"`
	EstimatedYield  float64        `json:"estimatedYield,omitempty"`
	HasGAPCert      bool           `json:"hasGAPCert,omitempty"`
	HasOrganicCert  bool           `json:"hasOrganicCert,omitempty"`
	Processing      bool           `json:"processing,omitempty"`
}

type CultivationDetails struct {
	Method                 CultivationMethod `json:"method"`
	StrainID               string            `json:"strainId"`
	StrainName             string            `json:"strainName,omitempty"`
	PlantsPerRai           int               `json:"plantsPerRai,omitempty"`
	GreenhouseCount        int               `json:"greenhouseCount,omitempty"`
	RackLayers             int               `json:"rackLayers,omitempty"`
	HydroSystem            string            `json:"hydroSystem,omitempty"`
	TotalPlants            int               `json:"totalPlants"`
	PlantingDate           string            `json:"plantingDate"`
	EstimatedHarvestDate   string            `json:"estimatedHarvestDate,omitempty"`
	HarvestCyclesPerYear   int               `json:"harvestCyclesPerYear,omitempty"`
	EstimatedYieldPerCycle float64           `json:"estimatedYieldPerCycle,omitempty"`
}

type SecurityData struct {
	HasFence         bool   `json:"hasFence"`
	HasCCTV          bool   `json:"hasCCTV"`
	HasGuard         bool   `json:"hasGuard"`
	HasAccessControl bool   `json:"hasAccessControl"`
	SecurityNotes    string `json:"securityNotes,omitempty"`
}

type HarvestData struct {
	HarvestMethod string `json:"harvestMethod"`
	DryingMethod  string `json:"dryingMethod"`
	DryingDetail  string `json:"dryingDetail,omitempty"`
	StorageSystem string `json:"storageSystem"`
	Packaging     string `json:"packaging"`
}

type PlantTrackingData struct {
	PlantID           string `json:"plantId"`
	QRCode            string `json:"qrCode,omitempty"`
	PlantingDate      string `json:"plantingDate"`
	ActualHarvestDate string `json:"actualHarvestDate,omitempty"`
	Status            string `json:"status"`
}

// ==========================
// Collections
// ==========================

// DocumentUpload is keyed by its slot id; a slot holds at most one entry.
type DocumentUpload struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name,omitempty"`
	Type       string                 `json:"type,omitempty"`
	URL        string                 `json:"url,omitempty"`
	Uploaded   bool                   `json:"uploaded"`
	Size       int64                  `json:"size,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	UploadedAt *time.Time             `json:"uploadedAt,omitempty"`
}

type Plot struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	AreaSize       string   `json:"areaSize"`
	AreaUnit       AreaUnit `json:"areaUnit"`
	SolarSystem    SiteType `json:"solarSystem"`
	Latitude       float64  `json:"latitude,omitempty"`
	Longitude      float64  `json:"longitude,omitempty"`
	FarmLayoutID   string   `json:"farmLayoutId,omitempty"`
	GrowingStyleID string   `json:"growingStyleId,omitempty"`
	Tiers          int      `json:"tiers,omitempty"`
	EstimatedPlant int      `json:"estimatedPlants,omitempty"`
	SoilType       string   `json:"soilType,omitempty"`
	SeedSource     string   `json:"seedSource,omitempty"`
	HasIPMPlan     bool     `json:"hasIPMPlan,omitempty"`
	IPMMethods     []string `json:"ipmMethods,omitempty"`
}

type LotStatus string

const (
	LotPlanned   LotStatus = "PLANNED"
	LotActive    LotStatus = "ACTIVE"
	LotHarvested LotStatus = "HARVESTED"
	LotCancelled LotStatus = "CANCELLED"
)

type Lot struct {
	ID                    string    `json:"id"`
	LotCode               string    `json:"lotCode"`
	PlotID                string    `json:"plotId"`
	PlotName              string    `json:"plotName,omitempty"`
	PlantCount            int       `json:"plantCount"`
	EstimatedPlantingDate string    `json:"estimatedPlantingDate,omitempty"`
	EstimatedHarvestDate  string    `json:"estimatedHarvestDate,omitempty"`
	EstimatedYieldKg      float64   `json:"estimatedYieldKg,omitempty"`
	Status                LotStatus `json:"status"`
	Notes                 string    `json:"notes,omitempty"`
}

type Quote struct {
	Number     string     `json:"number"`
	Amount     float64    `json:"amount"`
	Accepted   bool       `json:"accepted"`
	AcceptedAt *time.Time `json:"acceptedAt,omitempty"`
}

// Milestone1 holds the two quotes accepted before document review starts.
type Milestone1 struct {
	DTAMQuote     Quote `json:"dtamQuote"`
	PlatformQuote Quote `json:"platformQuote"`
}

// ==========================
// State
// ==========================

// State is the full set of wizard answers for one applicant session.
type State struct {
	CurrentStep           int                  `json:"currentStep"`
	PlantID               PlantID              `json:"plantId,omitempty"`
	ServiceType           ServiceType          `json:"serviceType,omitempty"`
	CertificationPurpose  CertificationPurpose `json:"certificationPurpose,omitempty"`
	CultivationMethod     CultivationMethod    `json:"cultivationMethod,omitempty"`
	SiteTypes             []SiteType           `json:"siteTypes"`
	LocationType          SiteType             `json:"locationType,omitempty"`
	LicensePDFURL         string               `json:"licensePdfUrl,omitempty"`
	ConsentedPDPA         bool                 `json:"consentedPDPA"`
	AcknowledgedStandards bool                 `json:"acknowledgedStandards"`
	YoutubeURL            string               `json:"youtubeUrl,omitempty"`

	ApplicantData      *ApplicantData      `json:"applicantData"`
	GeneralInfo        *GeneralInfo        `json:"generalInfo"`
	SiteData           *SiteData           `json:"siteData"`
	FarmData           *FarmData           `json:"farmData"`
	ProductionData     *ProductionData     `json:"productionData"`
	CultivationDetails *CultivationDetails `json:"cultivationDetails"`
	SecurityData       *SecurityData       `json:"securityData"`
	HarvestData        *HarvestData        `json:"harvestData"`

	Documents     []DocumentUpload    `json:"documents"`
	StepDocuments []StepDocument      `json:"stepDocuments"`
	PlantTracking []PlantTrackingData `json:"plantTracking"`
	Plots         []Plot              `json:"plots"`
	Lots          []Lot               `json:"lots"`

	QRCount         int         `json:"qrCount"`
	EstimatedQRCost float64     `json:"estimatedQRCost"`
	Milestone1      *Milestone1 `json:"milestone1,omitempty"`

	ApplicationID string    `json:"applicationId,omitempty"`
	ApplicationNo string    `json:"applicationNo,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`

	// Submitting is set while a submission is in flight and is never persisted.
	Submitting bool `json:"-"`
}

// NewState returns the initial empty state.
func NewState(now time.Time) *State {
	st := &State{CreatedAt: now.UTC(), UpdatedAt: now.UTC()}
	st.normalize()
	return st
}

// normalize keeps collections non-nil so they encode as [] rather than null.
func (s *State) normalize() {
	if s.SiteTypes == nil {
		s.SiteTypes = []SiteType{}
	}
	if s.Documents == nil {
		s.Documents = []DocumentUpload{}
	}
	if s.StepDocuments == nil {
		s.StepDocuments = []StepDocument{}
	}
	if s.PlantTracking == nil {
		s.PlantTracking = []PlantTrackingData{}
	}
	if s.Plots == nil {
		s.Plots = []Plot{}
	}
	if s.Lots == nil {
		s.Lots = []Lot{}
	}
}

// Clone returns a deep copy, transient fields included.
func (s *State) Clone() *State {
	raw, err := json.Marshal(s)
	if err != nil {
		cp := *s
		return &cp
	}
	out := &State{}
	if err := json.Unmarshal(raw, out); err != nil {
		cp := *s
		return &cp
	}
	out.Submitting = s.Submitting
	out.normalize()
	return out
}

// UploadedDocuments counts documents whose upload finished.
func (s *State) UploadedDocuments() int {
	n := 0
	for _, d := range s.Documents {
		if d.Uploaded {
			n++
		}
	}
	return n
}

// TotalLotPlants sums planned plants across lots, skipping cancelled ones.
func (s *State) TotalLotPlants() int {
	total := 0
	for _, l := range s.Lots {
		if l.Status == LotCancelled {
			continue
		}
		total += l.PlantCount
	}
	return total
}

func (s *State) Document(slot string) (DocumentUpload, bool) {
	for _, d := range s.Documents {
		if d.ID == slot {
			return d, true
		}
	}
	return DocumentUpload{}, false
}
