// Package domain provides the core types and canonical error taxonomy for
// the answer pipeline.
package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind is the closed category of a pipeline failure.
type ErrorKind string

const (
	// ErrorKindInvalid indicates a malformed or invalid request, rejected
	// before any cost is incurred.
	ErrorKindInvalid ErrorKind = "invalid"

	// ErrorKindContentFiltered indicates the upstream provider refused the
	// request on policy grounds. No generation cost was incurred.
	ErrorKindContentFiltered ErrorKind = "content_filtered"

	// ErrorKindUpstreamUnavailable indicates the retrieval or generation
	// provider was unreachable, overloaded, or rate-limited.
	ErrorKindUpstreamUnavailable ErrorKind = "upstream_unavailable"

	// ErrorKindInternal covers everything unclassified.
	ErrorKindInternal ErrorKind = "internal"
)

// User-safe messages, one fixed string per kind. The raw failure detail is
// for operator logs only and is never concatenated into these.
var userMessages = map[ErrorKind]string{
	ErrorKindInvalid:             "The request could not be understood. Please rephrase your question and try again.",
	ErrorKindContentFiltered:     "This question cannot be answered because it conflicts with our content guidelines.",
	ErrorKindUpstreamUnavailable: "The assistant is temporarily unavailable. Please try again in a moment.",
	ErrorKindInternal:            "Something went wrong while answering your question. Please try again.",
}

// PipelineError is a classified pipeline failure. The Message is safe to
// show to end users; Cause holds the operator-facing detail.
type PipelineError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface with operator-facing detail.
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the cause for errors.Is/As chains.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// UserMessage returns the fixed user-safe message for the error's kind.
func (e *PipelineError) UserMessage() string {
	return e.Message
}

// HTTPStatusCode maps the kind to a response status for failures that occur
// before streaming has begun. Once streaming starts, failures are reported
// as terminal error events instead.
func (e *PipelineError) HTTPStatusCode() int {
	switch e.Kind {
	case ErrorKindInvalid, ErrorKindContentFiltered:
		return http.StatusBadRequest
	case ErrorKindUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewPipelineError creates a classified error wrapping cause.
func NewPipelineError(kind ErrorKind, cause error) *PipelineError {
	return &PipelineError{
		Kind:    kind,
		Message: userMessages[kind],
		Cause:   cause,
	}
}

// ErrInvalid creates an invalid-request error with operator detail.
func ErrInvalid(detail string) *PipelineError {
	return NewPipelineError(ErrorKindInvalid, errors.New(detail))
}

// ErrContentFiltered creates a content-filter error wrapping cause.
func ErrContentFiltered(cause error) *PipelineError {
	return NewPipelineError(ErrorKindContentFiltered, cause)
}

// ErrUpstreamUnavailable creates an upstream-unavailable error wrapping cause.
func ErrUpstreamUnavailable(cause error) *PipelineError {
	return NewPipelineError(ErrorKindUpstreamUnavailable, cause)
}

// ErrInternal creates an internal error wrapping cause.
func ErrInternal(cause error) *PipelineError {
	return NewPipelineError(ErrorKindInternal, cause)
}

// Classify maps an arbitrary failure into the closed taxonomy. Already
// classified errors pass through unchanged, including through wrap chains.
func Classify(err error) *PipelineError {
	if err == nil {
		return nil
	}

	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrUpstreamUnavailable(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrUpstreamUnavailable(err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrUpstreamUnavailable(err)
	}

	return ErrInternal(err)
}

// ClassifyStatusCode maps an upstream HTTP status to the taxonomy. Used by
// the retriever adapter, whose 4xx responses reflect the user's question;
// the generation adapter maps its own statuses since its wire requests are
// server-built and a 4xx there is never the user's fault.
func ClassifyStatusCode(status int, cause error) *PipelineError {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrUpstreamUnavailable(cause)
	case status >= 500:
		return ErrUpstreamUnavailable(cause)
	case status >= 400:
		return NewPipelineError(ErrorKindInvalid, cause)
	default:
		return ErrInternal(cause)
	}
}
