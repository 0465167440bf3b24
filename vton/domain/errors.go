package domain

import (
	"errors"
	"time"
)

type Kind string

const (
	KindInvalidImage        Kind = "invalid_image"
	KindRateLimited         Kind = "rate_limited"
	KindUpstreamRejected    Kind = "upstream_rejected"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindInternal            Kind = "internal"
)

// Error é o erro classificado que chega até a borda HTTP.
//
// Message vai para o cliente; Err é a causa interna e só aparece em log.
type Error struct {
	Kind    Kind
	Message string
	// BadGateway marca UpstreamUnavailable em que o provedor respondeu, mas
	// com algo inutilizável (502), em vez de não responder (503).
	BadGateway bool
	// RetryAfter acompanha KindRateLimited.
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func InvalidImage(msg string, err error) *Error {
	return &Error{Kind: KindInvalidImage, Message: msg, Err: err}
}

func RateLimited(retryAfter time.Duration) *Error {
	return &Error{
		Kind:       KindRateLimited,
		Message:    "Rate limit exceeded. Please try again later.",
		RetryAfter: retryAfter,
	}
}

func UpstreamRejected(msg string, err error) *Error {
	return &Error{Kind: KindUpstreamRejected, Message: msg, Err: err}
}

func UpstreamUnavailable(msg string, err error) *Error {
	return &Error{Kind: KindUpstreamUnavailable, Message: msg, Err: err}
}

func BadGateway(msg string, err error) *Error {
	return &Error{Kind: KindUpstreamUnavailable, Message: msg, BadGateway: true, Err: err}
}

// KindOf classifica qualquer erro; o que não for *Error é KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
