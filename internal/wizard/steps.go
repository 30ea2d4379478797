// internal/wizard/steps.go
package wizard

import (
	"fmt"
	"strings"
)

// Step describes one screen of the linear wizard and the predicate that must
// hold before the applicant may leave it.
type Step struct {
	Index    int
	ID       string
	Title    string
	complete func(*State) bool
}

// Path is the deep-link route of the step.
func (s Step) Path() string {
	return fmt.Sprintf("/step/%d", s.Index)
}

var steps = []Step{
	{Index: 0, ID: "plant-purpose", Title: "Plant, purpose and cultivation method", complete: func(st *State) bool {
		return st.PlantID != "" && st.CertificationPurpose != "" && st.CultivationMethod != ""
	}},
	{Index: 1, ID: "applicant", Title: "Applicant", complete: func(st *State) bool {
		return st.ApplicantData != nil && st.ApplicantData.ApplicantType != ""
	}},
	{Index: 2, ID: "site", Title: "Cultivation site", complete: func(st *State) bool {
		return st.SiteData != nil && st.SiteData.SiteName != "" && st.SiteData.GPSLat != ""
	}},
	{Index: 3, ID: "cultivation", Title: "Cultivation details", complete: func(st *State) bool {
		return st.CultivationDetails != nil && st.CultivationDetails.TotalPlants > 0
	}},
	{Index: 4, ID: "security", Title: "Site security", complete: func(st *State) bool {
		return st.SecurityData != nil
	}},
	{Index: 5, ID: "harvest", Title: "Harvest and post-harvest", complete: func(st *State) bool {
		return st.HarvestData != nil && st.HarvestData.HarvestMethod != ""
	}},
	{Index: 6, ID: "documents", Title: "Documents", complete: func(st *State) bool {
		return st.UploadedDocuments() >= 1
	}},
	{Index: 7, ID: "review", Title: "Review", complete: always},
	{Index: 8, ID: "submit", Title: "Submit and payment", complete: always},
}

func always(*State) bool { return true }

// StepCount is the fixed number of wizard steps.
var StepCount = len(steps)

// LastStep is the terminal (success) state.
var LastStep = StepCount - 1

// SubmitGate is the last step whose predicate must hold before submission.
const SubmitGate = 6

func Steps() []Step {
	out := make([]Step, len(steps))
	copy(out, steps)
	return out
}

func StepAt(i int) (Step, bool) {
	if i < 0 || i >= len(steps) {
		return Step{}, false
	}
	return steps[i], true
}

// StepByID looks a step up by id, case-insensitively.
func StepByID(id string) (Step, bool) {
	for _, s := range steps {
		if strings.EqualFold(s.ID, id) {
			return s, true
		}
	}
	return Step{}, false
}

// CanProceed reports whether step i is complete for st. It is false for any
// index outside the table and for a nil state.
func CanProceed(st *State, i int) bool {
	if st == nil || i < 0 || i >= len(steps) {
		return false
	}
	return steps[i].complete(st)
}

// CompletedSteps scans from step 0 and stops at the first incomplete step, so
// the result is always a prefix of the step indices.
func CompletedSteps(st *State) []int {
	done := make([]int, 0, len(steps))
	for i := range steps {
		if !CanProceed(st, i) {
			break
		}
		done = append(done, i)
	}
	return done
}

// FirstIncomplete returns the lowest step that does not pass, or LastStep when
// every step passes.
func FirstIncomplete(st *State) int {
	n := len(CompletedSteps(st))
	if n >= len(steps) {
		return LastStep
	}
	return n
}

// Reachable reports whether every step before i passes.
func Reachable(st *State, i int) bool {
	if i < 0 || i >= len(steps) {
		return false
	}
	return i <= len(CompletedSteps(st))
}

// ResolveStep maps a deep link onto a step the applicant may open. Unreachable
// links fall back to the first incomplete step.
func ResolveStep(st *State, i int) (Step, bool) {
	if i < 0 || i >= len(steps) {
		return Step{}, false
	}
	if !Reachable(st, i) {
		return steps[FirstIncomplete(st)], true
	}
	return steps[i], true
}

// StepStatus is the per-step view served to clients.
type StepStatus struct {
	Index     int    `json:"index"`
	ID        string `json:"id"`
	Title     string `json:"title"`
	Path      string `json:"path"`
	Complete  bool   `json:"complete"`
	Reachable bool   `json:"reachable"`
	Current   bool   `json:"current"`
}

func Progress(st *State) []StepStatus {
	completed := len(CompletedSteps(st))
	out := make([]StepStatus, 0, len(steps))
	for _, s := range steps {
		out = append(out, StepStatus{
			Index:     s.Index,
			ID:        s.ID,
			Title:     s.Title,
			Path:      s.Path(),
			Complete:  s.Index < completed,
			Reachable: s.Index <= completed,
			Current:   st != nil && st.CurrentStep == s.Index,
		})
	}
	return out
}
