package observability

import (
	"context"
	"testing"
	"time"

	"gacp-certification/internal/common/logger"

	"github.com/stretchr/testify/assert"
)

func TestNew_WithoutJaegerStillTraces(t *testing.T) {
	o := New("gacp-test", "", logger.NewTestLogger(t))
	defer o.Shutdown(context.Background())

	ctx, span := o.StartSpan(context.Background(), "submit")
	defer span.End()

	assert.NotNil(t, ctx)
	assert.Nil(t, o.tracerProvider)
	o.RecordSubmission(ctx, 20*time.Millisecond, "success")
	o.RecordDraftSave(ctx, "success")
}

func TestNilObservabilityIsSafe(t *testing.T) {
	var o *Observability

	_, span := o.StartSpan(context.Background(), "noop")
	span.End()
	o.RecordSubmission(context.Background(), time.Millisecond, "failure")
	o.RecordDraftSave(context.Background(), "failure")
}
