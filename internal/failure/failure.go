// Package failure defines the recoverable outcomes of a job operation. Each
// one is turned into a user-facing reply and never advances the job's logs or
// scores.
package failure

import (
	"context"
	"errors"
	"fmt"
	"net"

	"propertysanta/engine/internal/llm"
)

type Kind string

const (
	KindInvalidImage        Kind = "invalid_image"
	KindDuplicateSubmission Kind = "duplicate_submission"
	KindMissingPrerequisite Kind = "missing_prerequisite"
	KindComparisonMismatch  Kind = "comparison_mismatch"
	KindExternalService     Kind = "external_service_error"
	KindParse               Kind = "parse_error"
	KindUnknownRoom         Kind = "unknown_room"
	KindJobCompleted        Kind = "job_completed"
	KindInvalidTransition   Kind = "invalid_transition"
)

// Service classifies an external model failure.
type Service string

const (
	ServiceQuotaExceeded Service = "quota_exceeded"
	ServiceAuthFailure   Service = "auth_failure"
	ServiceServerError   Service = "server_error"
	ServiceNetworkError  Service = "network_error"
)

// Error wraps a classified failure. Err carries the underlying cause when
// there is one.
type Error struct {
	Kind    Kind
	Service Service
	Msg     string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	prefix := string(e.Kind)
	if e.Service != "" {
		prefix += "(" + string(e.Service) + ")"
	}
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", prefix, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", prefix, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	}
	return prefix
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so errors.Is(err, failure.New(KindParse, ""))
// works without comparing messages.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind && (t.Service == "" || e.Service == t.Service)
}

// Retryable reports whether repeating the same operation may succeed.
func (e *Error) Retryable() bool {
	if e == nil {
		return false
	}
	switch e.Kind {
	case KindExternalService:
		return e.Service != ServiceAuthFailure
	case KindParse:
		return true
	}
	return false
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// External classifies a model client error into an ExternalService failure.
func External(err error) *Error {
	return &Error{Kind: KindExternalService, Service: ClassifyService(err), Err: err}
}

func ClassifyService(err error) Service {
	var netErr net.Error
	switch {
	case errors.Is(err, llm.ErrRateLimited):
		return ServiceQuotaExceeded
	case errors.Is(err, llm.ErrUnauthorized), errors.Is(err, llm.ErrNotConfigured):
		return ServiceAuthFailure
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled), errors.Is(err, llm.ErrEgressBlocked):
		return ServiceNetworkError
	case errors.As(err, &netErr):
		return ServiceNetworkError
	}
	return ServiceServerError
}

// As extracts the *Error from err, if any.
func As(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

func KindOf(err error) Kind {
	if fe, ok := As(err); ok {
		return fe.Kind
	}
	return ""
}

// Detail is the wire form attached to a job response.
type Detail struct {
	Kind      Kind    `json:"kind"`
	Service   Service `json:"service,omitempty"`
	Retryable bool    `json:"retryable"`
	Message   string  `json:"message,omitempty"`
}

func (e *Error) Detail() *Detail {
	if e == nil {
		return nil
	}
	return &Detail{
		Kind:      e.Kind,
		Service:   e.Service,
		Retryable: e.Retryable(),
		Message:   e.Msg,
	}
}
