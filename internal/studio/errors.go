package studio

import "errors"

var (
	// ErrEmptyPrompt rejects prompts that are empty after trimming.
	ErrEmptyPrompt = errors.New("prompt is empty")
	// ErrJobActive rejects a submission while another job is in flight.
	ErrJobActive = errors.New("a job is already active")
	// ErrClosed rejects submissions after the controller was closed.
	ErrClosed = errors.New("controller is closed")
)
