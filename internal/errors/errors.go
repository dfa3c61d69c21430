// Package errors provides the error taxonomy of the pullquest console.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrAuthDecode       = errors.New("token could not be decoded")
	ErrValidation       = errors.New("validation failed")
	ErrCreateFailed     = errors.New("issue creation failed")
	ErrIngestFailed     = errors.New("issue ingestion failed")
	ErrFetchFailed      = errors.New("fetch failed")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNotPermitted     = errors.New("role does not permit this action")
	ErrInFlight         = errors.New("submission already in flight")
	ErrNotSelected      = errors.New("pull request is not selected")
	ErrNotFound         = errors.New("resource not found")
)

// APIError represents an error from an external API call.
type APIError struct {
	Service    string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s API error (status %d): %s: %v", e.Service, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// NewAPIError creates a new API error.
func NewAPIError(service string, statusCode int, message string) *APIError {
	return &APIError{Service: service, StatusCode: statusCode, Message: message}
}

// ValidationError is a local input problem. It never reaches the network.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Stage names a step of the two-phase issue submission.
type Stage string

const (
	StageCreate Stage = "create"
	StageIngest Stage = "ingest"
)

// SubmitError reports which stage of an issue submission failed.
// An ingest failure means the upstream issue already exists.
type SubmitError struct {
	Stage       Stage
	Message     string
	IssueNumber int    // set for ingest failures
	PendingID   string // journal entry that can resume the ingest step
	Err         error
}

func (e *SubmitError) Error() string {
	if e.Stage == StageIngest {
		return fmt.Sprintf("issue #%d was created but ingestion failed: %s", e.IssueNumber, e.Message)
	}
	return fmt.Sprintf("issue creation failed: %s", e.Message)
}

func (e *SubmitError) Unwrap() error { return e.Err }

func (e *SubmitError) Is(target error) bool {
	switch target {
	case ErrCreateFailed:
		return e.Stage == StageCreate
	case ErrIngestFailed:
		return e.Stage == StageIngest
	}
	return false
}

// PartialFailure reports whether upstream state changed before the failure.
func (e *SubmitError) PartialFailure() bool {
	return e.Stage == StageIngest
}

// FetchError is a listing or lookup failure scoped to one section of a view.
type FetchError struct {
	Section string
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Section, e.Message)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetchFailed }

// UserMessage returns the text shown to the operator for err. A message
// supplied by the server wins over the transport-level error text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	var submitErr *SubmitError
	if errors.As(err, &submitErr) && submitErr.Message != "" {
		return submitErr.Message
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) && fetchErr.Message != "" {
		return fetchErr.Message
	}
	return err.Error()
}
