package openrouter

import (
	"errors"
	"fmt"
)

// Kind classifies why a completion failed after the retry policy gave up.
type Kind string

const (
	KindTimeout          Kind = "timeout"
	KindRateLimit        Kind = "rate-limit-exhausted"
	KindModelUnavailable Kind = "model-unavailable"
	KindTransport        Kind = "transport-error"
)

var (
	ErrMissingAPIKey      = errors.New("api key is not configured")
	ErrTimeout            = errors.New("completion timed out")
	ErrRateLimitExhausted = errors.New("rate limit retries exhausted")
	ErrModelUnavailable   = errors.New("model unavailable")
	ErrTransport          = errors.New("completion transport error")

	errEmptyChoices = errors.New("response has no choices")
)

// CompletionError is returned once every attempt for a request has failed.
type CompletionError struct {
	Kind       Kind
	Model      string
	Attempts   int
	StatusCode int
	Err        error
}

func (e *CompletionError) Error() string {
	msg := fmt.Sprintf("completion %s for %s after %d attempt(s)", e.Kind, e.Model, e.Attempts)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CompletionError) Unwrap() error { return e.Err }

// Is matches the package sentinels by kind.
func (e *CompletionError) Is(target error) bool {
	switch target {
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrRateLimitExhausted:
		return e.Kind == KindRateLimit
	case ErrModelUnavailable:
		return e.Kind == KindModelUnavailable
	case ErrTransport:
		return e.Kind == KindTransport
	}
	return false
}

// Transient reports whether the same request may succeed later.
func (e *CompletionError) Transient() bool {
	return e.Kind != KindModelUnavailable
}
