// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"errors"
	"fmt"
)

// =============================================================================
// ERROR KIND
// =============================================================================

// Kind classifies a client failure. The set is closed; callers switch on
// it to decide whether a retry, a settings fix, or a different model is
// the right response. The client itself never retries.
type Kind int

const (
	KindInvalidURL Kind = iota
	KindInvalidResponse
	KindRateLimitExceeded
	KindInvalidCredential
	KindRequestFailed
	KindDecodingError
	KindNoDataReceived
	KindInvalidModel
	KindInvalidRequest
	KindModelNotAvailable
	KindContextTooLarge
	KindGenerationFailed
	KindUnsupportedModel
	KindNetworkUnavailable
	KindTimeout
)

// String returns the identifier form of the kind.
func (k Kind) String() string {
	switch k {
	case KindInvalidURL:
		return "invalid_url"
	case KindInvalidResponse:
		return "invalid_response"
	case KindRateLimitExceeded:
		return "rate_limit_exceeded"
	case KindInvalidCredential:
		return "invalid_credential"
	case KindRequestFailed:
		return "request_failed"
	case KindDecodingError:
		return "decoding_error"
	case KindNoDataReceived:
		return "no_data_received"
	case KindInvalidModel:
		return "invalid_model"
	case KindInvalidRequest:
		return "invalid_request"
	case KindModelNotAvailable:
		return "model_not_available"
	case KindContextTooLarge:
		return "context_too_large"
	case KindGenerationFailed:
		return "generation_failed"
	case KindUnsupportedModel:
		return "unsupported_model"
	case KindNetworkUnavailable:
		return "network_unavailable"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Hint returns a short recovery suggestion for the kind, or "" when there
// is nothing actionable.
func (k Kind) Hint() string {
	switch k {
	case KindInvalidURL:
		return "set the endpoint URL in settings"
	case KindInvalidCredential:
		return "check the API key in settings"
	case KindRateLimitExceeded:
		return "wait a moment before sending again"
	case KindTimeout:
		return "check that the server is responding and try again"
	case KindNetworkUnavailable:
		return "check your network connection"
	case KindModelNotAvailable:
		return "download the model or select another one"
	case KindContextTooLarge:
		return "shorten the conversation or start a new one"
	case KindUnsupportedModel:
		return "select a different model"
	default:
		return ""
	}
}

// =============================================================================
// ERROR TYPE
// =============================================================================

// Error is the failure type every client operation reports. It carries a
// plain message, an optional HTTP status, and an optional wrapped cause;
// it never wraps platform-specific error objects beyond that cause.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	Cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

func errf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// =============================================================================
// INSPECTION HELPERS
// =============================================================================

// KindOf extracts the Kind from an error produced by this package.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, k Kind) bool {
	got, ok := KindOf(err)
	return ok && got == k
}

// StatusOf returns the HTTP status embedded in err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// IsCancelled reports whether err stems from a cancelled request, either
// via CancelAll or the caller's own context.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// HintFor returns the recovery hint for err, or "".
func HintFor(err error) string {
	if k, ok := KindOf(err); ok {
		return k.Hint()
	}
	return ""
}
