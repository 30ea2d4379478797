// internal/workers/application/check-priority-routing/handler.go
package checkpriorityrouting

import (
	"context"
	"fmt"

	"gacp-certification/internal/common/camunda"
	"gacp-certification/internal/common/errors"
	"gacp-certification/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

const (
	TaskType = "check-priority-routing"
)

type compiledRule struct {
	rule    Rule
	program *exprvm.Program
}

// Handler assigns a review priority and staff queue to a submitted application.
type Handler struct {
	config *Config
	rules  []compiledRule
	errors *errors.ErrorHandler
	logger logger.Logger
}

// NewHandler compiles the routing rules. A rule that does not compile to a
// boolean expression is a configuration error.
func NewHandler(config *Config, log logger.Logger) (*Handler, error) {
	rules := make([]compiledRule, 0, len(config.Rules))
	for _, r := range config.Rules {
		p, err := exprlang.Compile(r.When, exprlang.Env(ruleEnv(&Input{})), exprlang.AsBool())
		if err != nil {
			return nil, fmt.Errorf("routing rule %q: %w", r.Name, err)
		}
		rules = append(rules, compiledRule{rule: r, program: p})
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		rules:  rules,
		errors: errors.NewErrorHandler(log),
		logger: log,
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

func ruleEnv(input *Input) map[string]interface{} {
	return map[string]interface{}{
		"plantGroup":       input.PlantGroup,
		"purpose":          input.CertificationPurpose,
		"serviceType":      input.ServiceType,
		"applicantType":    input.ApplicantType,
		"readinessScore":   input.ReadinessScore,
		"missingDocuments": len(input.MissingDocuments),
		"siteTypeCount":    input.SiteTypeCount,
	}
}

func (h *Handler) Execute(_ context.Context, input *Input) (*Output, error) {
	env := ruleEnv(input)
	for _, r := range h.rules {
		out, err := exprlang.Run(r.program, env)
		if err != nil {
			return nil, errors.NewInternalError(fmt.Errorf("routing rule %q: %w", r.rule.Name, err))
		}
		if matched, _ := out.(bool); matched {
			h.logger.Info("application routed", map[string]interface{}{
				"applicationId": input.ApplicationID,
				"rule":          r.rule.Name,
				"priority":      r.rule.Priority,
				"queue":         r.rule.Queue,
			})
			return &Output{RoutingPriority: r.rule.Priority, ReviewQueue: r.rule.Queue, MatchedRule: r.rule.Name}, nil
		}
	}
	return &Output{RoutingPriority: PriorityMedium, ReviewQueue: QueueGeneral, MatchedRule: DefaultRuleName}, nil
}
