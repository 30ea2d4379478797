// Package errors provides the structured error taxonomy shared by the HTTP API
// and the certification pipeline workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// wizard
	ErrCodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	ErrCodeStepLocked         ErrorCode = "STEP_LOCKED"
	ErrCodeStepOutOfRange     ErrorCode = "STEP_OUT_OF_RANGE"
	ErrCodeSessionNotFound    ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeDraftStorageFailed ErrorCode = "DRAFT_STORAGE_FAILED"
	ErrCodeInvalidRequest     ErrorCode = "INVALID_REQUEST"

	// documents
	ErrCodeDocumentUploadFailed ErrorCode = "DOCUMENT_UPLOAD_FAILED"
	ErrCodeUnknownDocumentSlot  ErrorCode = "UNKNOWN_DOCUMENT_SLOT"

	// submission and applications
	ErrCodeSubmissionFailed         ErrorCode = "SUBMISSION_FAILED"
	ErrCodeSchemaValidationFailed   ErrorCode = "SCHEMA_VALIDATION_FAILED"
	ErrCodeApplicationNotFound      ErrorCode = "APPLICATION_NOT_FOUND"
	ErrCodeInvalidStatusTransition  ErrorCode = "INVALID_STATUS_TRANSITION"
	ErrCodeDuplicateApplication     ErrorCode = "DUPLICATE_APPLICATION"
	ErrCodeProcessStartFailed       ErrorCode = "PROCESS_START_FAILED"
	ErrCodePaymentVerificationError ErrorCode = "PAYMENT_VERIFICATION_FAILED"

	// infrastructure
	ErrCodeDatabaseConnectionFailed      ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed          ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeDatabaseInsertFailed          ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeSearchQueryFailed             ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeNotificationSendFailed        ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeExternalService               ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout                       ErrorCode = "TIMEOUT_ERROR"
	ErrCodeResourceNotFound              ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeBusinessRule                  ErrorCode = "BUSINESS_RULE_VIOLATION"
	ErrCodeAuthentication                ErrorCode = "AUTHENTICATION_ERROR"
	ErrCodeForbidden                     ErrorCode = "FORBIDDEN"
	ErrCodeInternal                      ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key/value and returns the same error for chaining.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewValidationError reports field-level problems. Fields maps field path to message.
func NewValidationError(details string, fields map[string]string) *StandardError {
	err := newError(ErrCodeValidationFailed, "Validation failed", details, false)
	if len(fields) > 0 {
		err.WithMetadata("fields", fields)
	}
	return err
}

func NewInvalidRequestError(details string) *StandardError {
	return newError(ErrCodeInvalidRequest, "Invalid request", details, false)
}

// NewStepLockedError is returned when a step is requested before its predecessors pass.
func NewStepLockedError(requested, firstIncomplete int) *StandardError {
	return newError(ErrCodeStepLocked, "Step is not reachable yet",
		fmt.Sprintf("requested step %d, first incomplete step %d", requested, firstIncomplete), false).
		WithMetadata("firstIncompleteStep", firstIncomplete)
}

func NewStepOutOfRangeError(step, total int) *StandardError {
	return newError(ErrCodeStepOutOfRange, "Step index out of range",
		fmt.Sprintf("step %d not in [0, %d)", step, total), false)
}

func NewSessionNotFoundError(sessionID string) *StandardError {
	return newError(ErrCodeSessionNotFound, "Wizard session not found",
		fmt.Sprintf("sessionId: %s", sessionID), false)
}

func NewDraftStorageFailedError(err error) *StandardError {
	return newError(ErrCodeDraftStorageFailed, "Draft storage error", err.Error(), true)
}

func NewDocumentUploadFailedError(slot string, err error) *StandardError {
	return newError(ErrCodeDocumentUploadFailed, "Document upload failed",
		fmt.Sprintf("slot: %s, error: %s", slot, err.Error()), true)
}

func NewUnknownDocumentSlotError(slot string) *StandardError {
	return newError(ErrCodeUnknownDocumentSlot, "Unknown document slot",
		fmt.Sprintf("slot: %s", slot), false)
}

func NewSubmissionFailedError(err error) *StandardError {
	return newError(ErrCodeSubmissionFailed, "Application submission failed", err.Error(), true)
}

func NewSchemaValidationFailedError(details string) *StandardError {
	return newError(ErrCodeSchemaValidationFailed, "Application data does not match schema", details, false)
}

func NewApplicationNotFoundError(applicationID string) *StandardError {
	return newError(ErrCodeApplicationNotFound, "Application not found",
		fmt.Sprintf("applicationId: %s", applicationID), false)
}

func NewInvalidStatusTransitionError(from, to string) *StandardError {
	return newError(ErrCodeInvalidStatusTransition, "Status transition not allowed",
		fmt.Sprintf("%s -> %s", from, to), false)
}

func NewDuplicateApplicationError(applicationID string) *StandardError {
	return newError(ErrCodeDuplicateApplication, "Application already exists",
		fmt.Sprintf("applicationId: %s", applicationID), false)
}

func NewProcessStartFailedError(processID string, err error) *StandardError {
	return newError(ErrCodeProcessStartFailed, "Certification process could not be started",
		fmt.Sprintf("processId: %s, error: %s", processID, err.Error()), true)
}

func NewPaymentVerificationError(details string) *StandardError {
	return newError(ErrCodePaymentVerificationError, "Payment could not be verified", details, false)
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true)
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()), true)
}

// NewDatabaseInsertFailedError creates a retryable database insert error.
func NewDatabaseInsertFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseInsertFailed, "Database insert error", err.Error(), true)
}

func NewElasticsearchConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeElasticsearchConnectionFailed, "Elasticsearch connection error", err.Error(), true)
}

func NewSearchQueryFailedError(index string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Search query error",
		fmt.Sprintf("index: %s, error: %s", index, err.Error()), true)
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery error",
		fmt.Sprintf("channel: %s, error: %s", channel, err.Error()), true)
}

// Generic constructors

func NewBusinessRuleError(message, details string) *StandardError {
	return newError(ErrCodeBusinessRule, message, details, false)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService, fmt.Sprintf("External service '%s' error", service), err.Error(), true)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), err.Error(), true)
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return newError(ErrCodeResourceNotFound, fmt.Sprintf("Resource not found in %s", service), details, false)
}

func NewAuthenticationError(details string) *StandardError {
	return newError(ErrCodeAuthentication, "Authentication failed", details, false)
}

func NewForbiddenError(details string) *StandardError {
	return newError(ErrCodeForbidden, "Access denied", details, false)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal codes to the error codes caught by the
// certification process boundary events. Codes absent here pass through unchanged.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeValidationFailed:         "APPLICATION_INVALID",
	ErrCodeSchemaValidationFailed:   "APPLICATION_INVALID",
	ErrCodeApplicationNotFound:      "APPLICATION_NOT_FOUND",
	ErrCodeInvalidStatusTransition:  "APPLICATION_INVALID",
	ErrCodeDuplicateApplication:     "DUPLICATE_APPLICATION",
	ErrCodePaymentVerificationError: "PAYMENT_REJECTED",
	ErrCodeBusinessRule:             "BUSINESS_RULE_VIOLATION",
}

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeExternalService,
		ErrCodeDraftStorageFailed,
		ErrCodeProcessStartFailed:
		return 3

	case ErrCodeTimeout, ErrCodeDocumentUploadFailed, ErrCodeSubmissionFailed:
		return 2

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandardError unwraps err looking for a *StandardError.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// Normalize always returns a StandardError, wrapping unknown errors as INTERNAL_ERROR.
func Normalize(err error) *StandardError {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr
	}
	return NewInternalError(err)
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// HTTPStatus maps an error code to the response status used by the API.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidationFailed, ErrCodeSchemaValidationFailed:
		return http.StatusUnprocessableEntity
	case ErrCodeInvalidRequest, ErrCodeStepOutOfRange, ErrCodeUnknownDocumentSlot:
		return http.StatusBadRequest
	case ErrCodeStepLocked, ErrCodeInvalidStatusTransition, ErrCodeDuplicateApplication, ErrCodeBusinessRule,
		ErrCodePaymentVerificationError:
		return http.StatusConflict
	case ErrCodeSessionNotFound, ErrCodeApplicationNotFound, ErrCodeResourceNotFound:
		return http.StatusNotFound
	case ErrCodeAuthentication:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeExternalService, ErrCodeDocumentUploadFailed, ErrCodeProcessStartFailed,
		ErrCodeSubmissionFailed, ErrCodeElasticsearchConnectionFailed, ErrCodeSearchQueryFailed:
		return http.StatusBadGateway
	case ErrCodeDatabaseConnectionFailed, ErrCodeDraftStorageFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "STEP") || strings.Contains(codeStr, "SESSION") || strings.Contains(codeStr, "DRAFT"):
		return "WIZARD"
	case strings.Contains(codeStr, "DOCUMENT"):
		return "DOCUMENT"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "ELASTICSEARCH") || strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "AUTH") || strings.Contains(codeStr, "FORBIDDEN"):
		return "AUTH"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
