package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

var _ Composer = (*composer)(nil)

var (
	ErrEmptyResponse = errors.New("empty response")
)

// JobStatus is the composer's wire status payload. FileURL is set only
// when Status is complete and may be relative to the composer base.
type JobStatus struct {
	Status  string `json:"status"`
	FileURL string `json:"file_url,omitempty"`
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type jobCreated struct {
	JobID string `json:"job_id"`
}

// NewComposer returns a Composer talking to the service at server.
// Editors run on every request in registration order.
func NewComposer(server string, httpClient *http.Client, editors ...RequestEditorFn) Composer {
	return &composer{
		base:    strings.TrimRight(server, "/"),
		client:  httpClient,
		editors: editors,
	}
}

type composer struct {
	base    string
	client  *http.Client
	editors []RequestEditorFn
}

func (c *composer) CreateJob(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Prompt: prompt})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.applyEditors(ctx, req); err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if !success(resp.StatusCode) {
		return "", fmt.Errorf("create job failed: %s", resp.Status)
	}

	var created jobCreated
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decoding create job response: %w", err)
	}
	if created.JobID == "" {
		return "", ErrEmptyResponse
	}

	return created.JobID, nil
}

func (c *composer) GetJobStatus(ctx context.Context, jobID string) (JobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/status/%s", c.base, url.PathEscape(jobID)), nil)
	if err != nil {
		return JobStatus{}, err
	}
	if err := c.applyEditors(ctx, req); err != nil {
		return JobStatus{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return JobStatus{}, err
	}
	defer resp.Body.Close()

	if !success(resp.StatusCode) {
		return JobStatus{}, fmt.Errorf("get job status failed: %s", resp.Status)
	}

	var status JobStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return JobStatus{}, fmt.Errorf("decoding job status response: %w", err)
	}
	if status.Status == "" {
		return JobStatus{}, ErrEmptyResponse
	}

	return status, nil
}

func (c *composer) applyEditors(ctx context.Context, req *http.Request) error {
	for _, editor := range c.editors {
		if err := editor(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

func success(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}
