// internal/workers/application/validate-application-data/handler.go
package validateapplicationdata

import (
	"context"
	"fmt"

	"gacp-certification/internal/applications"
	"gacp-certification/internal/common/camunda"
	"gacp-certification/internal/common/errors"
	"gacp-certification/internal/common/logger"
	"gacp-certification/internal/common/validation"
	"gacp-certification/internal/wizard"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "validate-application-data"
)

// ApplicationReader loads a submitted application with its snapshot.
type ApplicationReader interface {
	Get(ctx context.Context, id string) (*applications.Application, error)
}

// Handler re-validates the stored snapshot before staff review starts. An
// invalid application completes the job with isValid=false so the process can
// route it back to the applicant; only infrastructure failures fail the job.
type Handler struct {
	config    *Config
	apps      ApplicationReader
	validator *validation.Validator
	errors    *errors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(config *Config, apps ApplicationReader, log logger.Logger) (*Handler, error) {
	v, err := validation.SubmissionValidator()
	if err != nil {
		return nil, fmt.Errorf("load submission schema: %w", err)
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		apps:      apps,
		validator: v,
		errors:    errors.NewErrorHandler(log),
		logger:    log,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := camunda.DecodeVariables(job, &input); err != nil {
		camunda.FailJob(ctx, client, job, err, h.errors)
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		camunda.FailJob(ctx, client, job, err, h.errors)
		return
	}
	camunda.CompleteJob(ctx, client, job, output, h.logger)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ApplicationID == "" {
		return nil, errors.NewValidationError("applicationId is required", map[string]string{"applicationId": "required"})
	}

	app, err := h.apps.Get(ctx, input.ApplicationID)
	if err != nil {
		return nil, err
	}
	st, err := app.State()
	if err != nil {
		return nil, errors.NewSchemaValidationFailedError(fmt.Sprintf("snapshot is not a wizard state: %v", err))
	}

	result, err := h.validator.Validate(st)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}

	out := &Output{
		ApplicationID:       app.ID,
		FirstIncompleteStep: wizard.FirstIncomplete(st),
		ValidationErrors:    []ValidationError{},
	}
	for _, e := range result.Errors {
		out.ValidationErrors = append(out.ValidationErrors, ValidationError{Field: e.Field, Code: e.Code, Message: e.Message})
	}
	if out.FirstIncompleteStep <= wizard.SubmitGate {
		step, _ := wizard.StepAt(out.FirstIncompleteStep)
		out.ValidationErrors = append(out.ValidationErrors, ValidationError{
			Field:   step.ID,
			Code:    CodeStepIncomplete,
			Message: fmt.Sprintf("step %d (%s) is incomplete", step.Index, step.Title),
		})
	}
	out.ValidationErrors = append(out.ValidationErrors, h.checkApplicant(st.ApplicantData)...)
	out.IsValid = len(out.ValidationErrors) == 0

	h.logger.Info("application validated", map[string]interface{}{
		"applicationId": app.ID,
		"isValid":       out.IsValid,
		"errorCount":    len(out.ValidationErrors),
	})
	return out, nil
}

func (h *Handler) checkApplicant(a *wizard.ApplicantData) []ValidationError {
	if a == nil {
		return nil
	}
	var out []ValidationError

	email := a.Email
	if email == "" {
		email = a.ContactEmail
	}
	phone := a.Phone
	if phone == "" {
		phone = a.ContactPhone
	}
	if h.config.RequireContact && email == "" && phone == "" {
		out = append(out, ValidationError{Field: "applicantData", Code: CodeNoContact, Message: "an email or phone number is required"})
	}
	if email != "" && !validation.ValidateEmail(email) {
		out = append(out, ValidationError{Field: "applicantData.email", Code: CodeInvalidEmail, Message: "email address is malformed"})
	}
	if phone != "" && !validation.ValidatePhone(phone) {
		out = append(out, ValidationError{Field: "applicantData.phone", Code: CodeInvalidPhone, Message: "phone number is not a Thai number"})
	}
	if a.IDCard != "" && !validation.ValidateIDCard(a.IDCard) {
		out = append(out, ValidationError{Field: "applicantData.idCard", Code: CodeInvalidIDCard, Message: "national id check digit does not match"})
	}
	return out
}
