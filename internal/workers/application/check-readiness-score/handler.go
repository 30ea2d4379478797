// internal/workers/application/check-readiness-score/handler.go
package checkreadinessscore

import (
	"context"
	"fmt"

	"gacp-certification/internal/applications"
	"gacp-certification/internal/common/camunda"
	"gacp-certification/internal/common/errors"
	"gacp-certification/internal/common/logger"
	"gacp-certification/internal/wizard"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "check-readiness-score"
)

type ApplicationReader interface {
	Get(ctx context.Context, id string) (*applications.Application, error)
}

// Handler scores how ready a submitted application is for document review.
type Handler struct {
	config  *Config
	apps    ApplicationReader
	catalog *wizard.DocumentCatalog
	errors  *errors.ErrorHandler
	logger  logger.Logger
}

func NewHandler(config *Config, apps ApplicationReader, catalog *wizard.DocumentCatalog, log logger.Logger) *Handler {
	if catalog == nil {
		catalog = wizard.DefaultCatalog()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  config,
		apps:    apps,
		catalog: catalog,
		errors:  errors.NewErrorHandler(log),
		logger:  log,
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
	st, err := app.State()
	if err != nil {
		return nil, errors.NewSchemaValidationFailedError(fmt.Sprintf("snapshot is not a wizard state: %v", err))
	}

	reqs, err := h.catalog.Requirements(st)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}

	out := &Output{ApplicationID: app.ID, MissingDocuments: []string{}}
	required, uploaded := 0, 0
	for _, r := range reqs {
		if !r.Required {
			continue
		}
		required++
		if r.Uploaded {
			uploaded++
		} else {
			out.MissingDocuments = append(out.MissingDocuments, r.Slot)
		}
	}

	out.ScoreBreakdown = ScoreBreakdown{
		Documents:     documentScore(required, uploaded),
		FarmStructure: farmStructureScore(st),
		Security:      securityScore(st.SecurityData),
	}
	out.ReadinessScore = out.ScoreBreakdown.Documents + out.ScoreBreakdown.FarmStructure + out.ScoreBreakdown.Security
	out.QualificationLevel = level(out.ReadinessScore)
	out.Ready = len(out.MissingDocuments) == 0 && out.ReadinessScore >= h.config.ReadyScore

	h.logger.Info("readiness scored", map[string]interface{}{
		"applicationId":  app.ID,
		"readinessScore": out.ReadinessScore,
		"missing":        len(out.MissingDocuments),
		"ready":          out.Ready,
	})
	return out, nil
}

func documentScore(required, uploaded int) int {
	if required == 0 {
		return WeightDocuments
	}
	return WeightDocuments * uploaded / required
}

func farmStructureScore(st *wizard.State) int {
	switch {
	case len(st.Plots) > 0 && len(st.Lots) > 0:
		return WeightFarmStructure
	case len(st.Plots) > 0:
		return WeightFarmStructure / 2
	default:
		return 0
	}
}

func securityScore(s *wizard.SecurityData) int {
	if s == nil {
		return 0
	}
	n := 0
	for _, ok := range []bool{s.HasFence, s.HasCCTV, s.HasGuard, s.HasAccessControl} {
		if ok {
			n++
		}
	}
	return WeightSecurity * n / 4
}

func level(score int) string {
	switch {
	case score >= 80:
		return LevelReady
	case score >= 50:
		return LevelPartial
	default:
		return LevelIncomplete
	}
}
