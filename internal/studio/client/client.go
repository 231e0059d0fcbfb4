package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mixdeskhq/mixdesk/pkg/requestid"
)

// RequestEditorFn can modify a request before it is sent.
type RequestEditorFn func(ctx context.Context, req *http.Request) error

// Composer is the client interface for the remote production service.
type Composer interface {
	// CreateJob submits a prompt and returns the job identifier assigned
	// by the composer.
	CreateJob(ctx context.Context, prompt string) (string, error)
	// GetJobStatus fetches the current wire status of a job.
	GetJobStatus(ctx context.Context, jobID string) (JobStatus, error)
}

// NewFromConfig returns a new composer client from the given config.
func NewFromConfig(config *Config) (Composer, error) {
	httpClient, err := NewHTTPClientFromConfig(config)
	if err != nil {
		return nil, fmt.Errorf("NewFromConfig: creating HTTP client %w", err)
	}
	return NewComposer(config.Service.Server, httpClient, Editors(config)...), nil
}

// Editors returns the request editors configured for composer-facing
// requests. Artifact downloads share them so the bypass header is
// applied there too.
func Editors(config *Config) []RequestEditorFn {
	editors := []RequestEditorFn{requestIDEditor}
	if config.TunnelBypassHeader != "" {
		editors = append(editors, tunnelBypassEditor(config.TunnelBypassHeader, config.TunnelBypassValue))
	}
	return editors
}

func requestIDEditor(ctx context.Context, req *http.Request) error {
	reqID := requestid.FromContext(ctx)
	if reqID == "" {
		reqID = requestid.Generate()
	}
	req.Header.Set(requestid.Header, reqID)
	return nil
}

func tunnelBypassEditor(header, value string) RequestEditorFn {
	return func(ctx context.Context, req *http.Request) error {
		req.Header.Set(header, value)
		return nil
	}
}
