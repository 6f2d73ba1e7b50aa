package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// UpstreamError describes a failed provider call. Reason is always a short,
// sanitized description: it never carries the credential or the raw payload.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Reason     string
	Retryable  bool

	cause error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s upstream error (status %d): %s", e.Provider, e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("%s upstream error: %s", e.Provider, e.Reason)
}

// Unwrap exposes context errors so callers can match deadlines with errors.Is
func (e *UpstreamError) Unwrap() error {
	return e.cause
}

const (
	ReasonMissingCredential = "credential not configured"
	ReasonTimeout           = "request timed out"
	ReasonTransport         = "provider unreachable"
	ReasonBadResponse       = "unreadable response from provider"
	ReasonCanceled          = "request canceled"
)

// StatusError classifies an HTTP status. Only 5xx responses are retryable.
func StatusError(provider string, status int) *UpstreamError {
	reason := http.StatusText(status)
	if reason == "" {
		reason = "unexpected status"
	}
	return &UpstreamError{
		Provider:   provider,
		StatusCode: status,
		Reason:     reason,
		Retryable:  status >= http.StatusInternalServerError,
	}
}

// TransportError classifies a failure that happened before a status was received
func TransportError(provider string, err error) *UpstreamError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &UpstreamError{Provider: provider, Reason: ReasonTimeout, Retryable: true, cause: context.DeadlineExceeded}
	case errors.Is(err, context.Canceled):
		return &UpstreamError{Provider: provider, Reason: ReasonCanceled, cause: context.Canceled}
	}
	return &UpstreamError{Provider: provider, Reason: ReasonTransport, Retryable: true}
}

func MissingCredentialError(provider string) *UpstreamError {
	return &UpstreamError{Provider: provider, Reason: ReasonMissingCredential}
}

func ResponseError(provider, reason string) *UpstreamError {
	return &UpstreamError{Provider: provider, Reason: reason}
}

// IsRetryable reports whether err is a transient upstream failure
func IsRetryable(err error) bool {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Retryable
	}
	return false
}
