// internal/common/camunda/job.go
package camunda

import (
	"context"
	"encoding/json"
	"fmt"

	"gacp-certification/internal/common/errors"
	"gacp-certification/internal/common/logger"
	"gacp-certification/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// DecodeVariables unmarshals the job variables into v. Malformed variables are
// an INVALID_REQUEST, which is never retried.
func DecodeVariables(job entities.Job, v interface{}) error {
	if err := json.Unmarshal([]byte(job.Variables), v); err != nil {
		return errors.NewInvalidRequestError(fmt.Sprintf("parse job variables: %v", err))
	}
	return nil
}

// CompleteJob sends output as the job result.
func CompleteJob(ctx context.Context, client worker.JobClient, job entities.Job, output interface{}, log logger.Logger) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		log.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		log.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(job.Type).Inc()
	log.Info("job completed", map[string]interface{}{"jobKey": job.Key})
}

// FailJob hands err to the BPMN error handler, which either fails the job
// with retries or throws a BPMN error.
func FailJob(ctx context.Context, client worker.JobClient, job entities.Job, err error, handler *errors.ErrorHandler) {
	metrics.WorkerJobsFailed.WithLabelValues(job.Type).Inc()
	handler.HandleJobError(ctx, client, job, err)
}
