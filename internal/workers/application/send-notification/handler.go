// internal/workers/application/send-notification/handler.go
package sendnotification

import (
	"context"
	"fmt"
	"time"

	"gacp-certification/internal/applications"
	"gacp-certification/internal/common/aws"
	"gacp-certification/internal/common/camunda"
	"gacp-certification/internal/common/errors"
	"gacp-certification/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "send-notification"
)

type ApplicationReader interface {
	Get(ctx context.Context, id string) (*applications.Application, error)
}

// EmailSender and SMSSender are satisfied by aws.Mailer and aws.SMSSender.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) (string, error)
}

type SMSSender interface {
	Send(ctx context.Context, phone, message string) (string, error)
}

var (
	_ EmailSender = (*aws.Mailer)(nil)
	_ SMSSender   = (*aws.SMSSender)(nil)
)

type Handler struct {
	config    *Config
	apps      ApplicationReader
	email     EmailSender
	sms       SMSSender
	templates map[string]messageTemplate
	errors    *errors.ErrorHandler
	logger    logger.Logger
	now       func() time.Time
}

// NewHandler builds the notification worker. A nil sender disables its channel.
func NewHandler(config *Config, apps ApplicationReader, email EmailSender, sms SMSSender, log logger.Logger) (*Handler, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		apps:      apps,
		email:     email,
		sms:       sms,
		templates: templates,
		errors:    errors.NewErrorHandler(log),
		logger:    log,
		now:       time.Now,
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

// Execute renders the notification for the applicant and delivers it. The job
// fails with a retryable error only when every attempted channel failed.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ApplicationID == "" {
		return nil, errors.NewValidationError("applicationId is required", map[string]string{"applicationId": "required"})
	}
	tmpl, ok := h.templates[input.NotificationType]
	if !ok {
		return nil, errors.NewValidationError("unknown notification type",
			map[string]string{"notificationType": input.NotificationType})
	}

	app, err := h.apps.Get(ctx, input.ApplicationID)
	if err != nil {
		return nil, err
	}

	data := templateData(app, input)
	output := &Output{
		NotificationID: uuid.New().String(),
		Status:         StatusDisabled,
		Channels:       []string{},
		SentAt:         h.now().UTC().Format(time.RFC3339),
	}

	var lastErr error
	var lastChannel string

	if h.emailEnabled() && app.ApplicantEmail != "" {
		subject, err := render(tmpl.subject, data)
		if err != nil {
			return nil, errors.NewInternalError(err)
		}
		body, err := render(tmpl.body, data)
		if err != nil {
			return nil, errors.NewInternalError(err)
		}
		if _, err := h.email.Send(ctx, app.ApplicantEmail, subject, body); err != nil {
			h.logger.Error("email send failed", map[string]interface{}{
				"error":         err.Error(),
				"applicationId": app.ID,
			})
			output.FailedChannels = append(output.FailedChannels, ChannelEmail)
			lastErr, lastChannel = err, ChannelEmail
		} else {
			output.Channels = append(output.Channels, ChannelEmail)
		}
	}

	if h.smsEnabled(input.Priority) && app.ApplicantPhone != "" {
		message, err := render(tmpl.sms, data)
		if err != nil {
			return nil, errors.NewInternalError(err)
		}
		if _, err := h.sms.Send(ctx, app.ApplicantPhone, message); err != nil {
			h.logger.Error("SMS send failed", map[string]interface{}{
				"error":         err.Error(),
				"applicationId": app.ID,
			})
			output.FailedChannels = append(output.FailedChannels, ChannelSMS)
			lastErr, lastChannel = err, ChannelSMS
		} else {
			output.Channels = append(output.Channels, ChannelSMS)
		}
	}

	switch {
	case len(output.Channels) > 0:
		output.Status = StatusSent
	case lastErr != nil:
		return nil, errors.NewNotificationSendFailedError(lastChannel, lastErr)
	}

	h.logger.Info("notification processed", map[string]interface{}{
		"applicationId":    app.ID,
		"notificationType": input.NotificationType,
		"status":           output.Status,
		"channels":         output.Channels,
	})
	return output, nil
}

func (h *Handler) emailEnabled() bool {
	return h.config.EmailEnabled && h.email != nil
}

func (h *Handler) smsEnabled(priority string) bool {
	if !h.config.SMSEnabled || h.sms == nil {
		return false
	}
	for _, p := range h.config.SMSPriorities {
		if p == priority {
			return true
		}
	}
	return false
}

func templateData(app *applications.Application, input *Input) map[string]interface{} {
	data := make(map[string]interface{}, len(input.Metadata)+5)
	for k, v := range input.Metadata {
		data[k] = v
	}
	data["applicationId"] = app.ID
	data["applicationNo"] = app.ApplicationNo
	data["applicantName"] = app.ApplicantName
	data["plantId"] = string(app.PlantID)
	data["status"] = string(app.Status)
	return data
}
