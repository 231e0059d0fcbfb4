package client

import (
	"context"
)

var _ Composer = (*ComposerMock)(nil)

// ComposerMock is a mock implementation of Composer for tests. Set the
// Func fields to stub behavior; calling an unset method panics.
type ComposerMock struct {
	CreateJobFunc    func(ctx context.Context, prompt string) (string, error)
	GetJobStatusFunc func(ctx context.Context, jobID string) (JobStatus, error)
}

func (m *ComposerMock) CreateJob(ctx context.Context, prompt string) (string, error) {
	if m.CreateJobFunc == nil {
		panic("ComposerMock.CreateJobFunc: method is nil but Composer.CreateJob was just called")
	}
	return m.CreateJobFunc(ctx, prompt)
}

func (m *ComposerMock) GetJobStatus(ctx context.Context, jobID string) (JobStatus, error) {
	if m.GetJobStatusFunc == nil {
		panic("ComposerMock.GetJobStatusFunc: method is nil but Composer.GetJobStatus was just called")
	}
	return m.GetJobStatusFunc(ctx, jobID)
}
