// internal/workers/application/index-application/handler.go
package indexapplication

import (
	"context"
	"time"

	"gacp-certification/internal/applications"
	"gacp-certification/internal/common/camunda"
	"gacp-certification/internal/common/errors"
	"gacp-certification/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "index-application"
)

type ApplicationReader interface {
	Get(ctx context.Context, id string) (*applications.Application, error)
}

// Indexer is satisfied by applications.Search.
type Indexer interface {
	Index(ctx context.Context, app *applications.Application) error
}

// Handler refreshes the staff search document of an application. The process
// runs it after submission and after each status change.
type Handler struct {
	config  *Config
	apps    ApplicationReader
	indexer Indexer
	errors  *errors.ErrorHandler
	logger  logger.Logger
	now     func() time.Time
}

func NewHandler(config *Config, apps ApplicationReader, indexer Indexer, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  config,
		apps:    apps,
		indexer: indexer,
		errors:  errors.NewErrorHandler(log),
		logger:  log,
		now:     time.Now,
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
	if input.ApplicationID == "" {
		return nil, errors.NewValidationError("applicationId is required", map[string]string{"applicationId": "required"})
	}

	app, err := h.apps.Get(ctx, input.ApplicationID)
	if err != nil {
		return nil, err
	}
	if err := h.indexer.Index(ctx, app); err != nil {
		return nil, err
	}

	h.logger.Debug("application indexed", map[string]interface{}{
		"applicationId": app.ID,
		"status":        app.Status,
	})
	return &Output{
		ApplicationID: app.ID,
		Indexed:       true,
		Index:         h.config.Index,
		Status:        string(app.Status),
		IndexedAt:     h.now().UTC().Format(time.RFC3339),
	}, nil
}
