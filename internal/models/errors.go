package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures
type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration"  // calendar missing or unparseable
	KindNotFound      ErrorKind = "not_found"      // ticker or period absent
	KindFetch         ErrorKind = "fetch"          // per-document download failure
	KindService       ErrorKind = "service"        // LLM transport or auth failure
	KindEmptyResponse ErrorKind = "empty_response" // LLM accepted the call but produced nothing
	KindPersistence   ErrorKind = "persistence"    // output could not be written
)

// PipelineError carries a kind, a short human readable message and the cause
type PipelineError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	switch {
	case e.Message == "" && e.Err == nil:
		return string(e.Kind) + " error"
	case e.Err == nil:
		return e.Message
	case e.Message == "":
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is matches any PipelineError of the same kind when target has no message
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// Sentinels for errors.Is checks
var (
	ErrConfiguration = &PipelineError{Kind: KindConfiguration}
	ErrNotFound      = &PipelineError{Kind: KindNotFound}
	ErrFetch         = &PipelineError{Kind: KindFetch}
	ErrService       = &PipelineError{Kind: KindService}
	ErrEmptyResponse = &PipelineError{Kind: KindEmptyResponse}
	ErrPersistence   = &PipelineError{Kind: KindPersistence}
)

// NewError builds a PipelineError
func NewError(kind ErrorKind, message string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Message: message, Err: err}
}

func NewConfigurationError(message string, err error) error {
	return NewError(KindConfiguration, message, err)
}

func NewNotFoundError(message string) error {
	return NewError(KindNotFound, message, nil)
}

func NewFetchError(message string, err error) error {
	return NewError(KindFetch, message, err)
}

func NewServiceError(message string, err error) error {
	return NewError(KindService, message, err)
}

func NewEmptyResponseError(message string) error {
	return NewError(KindEmptyResponse, message, nil)
}

func NewPersistenceError(message string, err error) error {
	return NewError(KindPersistence, message, err)
}

// KindOf returns the kind of the first PipelineError in err's chain.
// Errors outside the taxonomy are reported as service errors.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindService
}

// MessageOf returns the short human readable message for err
func MessageOf(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
