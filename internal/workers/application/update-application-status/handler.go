// internal/workers/application/update-application-status/handler.go
package updateapplicationstatus

import (
	"context"
	"strings"
	"time"

	"gacp-certification/internal/applications"
	"gacp-certification/internal/common/camunda"
	"gacp-certification/internal/common/errors"
	"gacp-certification/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "update-application-status"
)

type StatusStore interface {
	Get(ctx context.Context, id string) (*applications.Application, error)
	UpdateStatus(ctx context.Context, id string, to applications.Status, actor, note string) (*applications.StatusChange, error)
}

// Handler moves an application along its lifecycle on behalf of the process.
// A job redelivered after the change already committed completes without
// writing a second history row.
type Handler struct {
	config *Config
	store  StatusStore
	errors *errors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, store StatusStore, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		store:  store,
		errors: errors.NewErrorHandler(log),
		logger: log,
	}
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
	target := applications.Status(strings.ToUpper(strings.TrimSpace(input.TargetStatus)))
	fields := map[string]string{}
	if input.ApplicationID == "" {
		fields["applicationId"] = "required"
	}
	if !target.Valid() {
		fields["targetStatus"] = "unknown status"
	}
	if len(fields) > 0 {
		return nil, errors.NewValidationError("invalid status update", fields)
	}

	app, err := h.store.Get(ctx, input.ApplicationID)
	if err != nil {
		return nil, err
	}
	if app.Status == target {
		h.logger.Info("status already applied", map[string]interface{}{
			"applicationId": app.ID,
			"status":        target,
		})
		return &Output{
			ApplicationID:     app.ID,
			ApplicationStatus: string(target),
			PreviousStatus:    string(target),
			UpdatedAt:         app.UpdatedAt.UTC().Format(time.RFC3339),
		}, nil
	}

	change, err := h.store.UpdateStatus(ctx, app.ID, target, h.config.Actor, input.Note)
	if err != nil {
		return nil, err
	}

	h.logger.Info("application status updated", map[string]interface{}{
		"applicationId": change.ApplicationID,
		"from":          change.From,
		"to":            change.To,
	})
	return &Output{
		ApplicationID:     change.ApplicationID,
		ApplicationStatus: string(change.To),
		PreviousStatus:    string(change.From),
		Changed:           true,
		UpdatedAt:         change.ChangedAt.UTC().Format(time.RFC3339),
	}, nil
}
