package progress

import "errors"

var (
	// ErrInvalidResponseTime is returned for negative or non-numeric response times
	ErrInvalidResponseTime = errors.New("invalid response time")

	// ErrInvalidScore is returned for session scores that are NaN or infinite
	ErrInvalidScore = errors.New("invalid score")

	// ErrEmptyPrompt is returned when a prompt is blank after normalization
	ErrEmptyPrompt = errors.New("empty prompt")

	// ErrInvalidAvoidMode is returned by ParseAvoidMode for unknown modes
	ErrInvalidAvoidMode = errors.New("invalid avoid mode")
)
