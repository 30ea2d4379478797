// internal/workers/application/validate-application-data/models.go
package validateapplicationdata

type Input struct {
	ApplicationID string `json:"applicationId"`
}

type Output struct {
	ApplicationID       string            `json:"applicationId"`
	IsValid             bool              `json:"isValid"`
	FirstIncompleteStep int               `json:"firstIncompleteStep"`
	ValidationErrors    []ValidationError `json:"validationErrors"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	CodeStepIncomplete = "STEP_INCOMPLETE"
	CodeNoContact      = "NO_CONTACT"
	CodeInvalidEmail   = "INVALID_EMAIL"
	CodeInvalidPhone   = "INVALID_PHONE"
	CodeInvalidIDCard  = "INVALID_ID_CARD"
)
