package client

import (
	"context"

	"github.com/mixdeskhq/mixdesk/pkg/metrics"
)

const (
	opCreateJob = "create_job"
	opJobStatus = "job_status"
)

var _ Composer = (*Instrumented)(nil)

// Instrumented wraps a Composer and records a request metric per call.
type Instrumented struct {
	client Composer
}

func NewInstrumented(client Composer) *Instrumented {
	return &Instrumented{client: client}
}

func (i *Instrumented) CreateJob(ctx context.Context, prompt string) (string, error) {
	id, err := i.client.CreateJob(ctx, prompt)
	metrics.IncreaseComposerRequestsMetric(opCreateJob, resultLabel(err))
	return id, err
}

func (i *Instrumented) GetJobStatus(ctx context.Context, jobID string) (JobStatus, error) {
	status, err := i.client.GetJobStatus(ctx, jobID)
	metrics.IncreaseComposerRequestsMetric(opJobStatus, resultLabel(err))
	return status, err
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
