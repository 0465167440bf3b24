package vton

import (
	"errors"
	"net/http"
	"strconv"

	"tryon-gateway/middleware/ratelimit"
	"tryon-gateway/vton/domain"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// ErrorBody é o corpo de toda resposta de erro.
type ErrorBody struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter *int   `json:"retry_after,omitempty"`
}

const internalMessage = "An unexpected internal error occurred."

// StatusFor mapeia o tipo de erro para o status HTTP.
func StatusFor(e *domain.Error) int {
	switch e.Kind {
	case domain.KindInvalidImage:
		return http.StatusUnprocessableEntity
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	case domain.KindUpstreamRejected:
		return http.StatusBadRequest
	case domain.KindUpstreamUnavailable:
		if e.BadGateway {
			return http.StatusBadGateway
		}
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError responde com o erro classificado. Causas internas só vão para o log.
func writeError(w http.ResponseWriter, log zerolog.Logger, err error) {
	var e *domain.Error
	if !errors.As(err, &e) {
		e = &domain.Error{Kind: domain.KindInternal, Message: internalMessage, Err: err}
	}

	status := StatusFor(e)
	body := ErrorBody{Error: string(e.Kind), Message: e.Message}
	if e.Kind == domain.KindInternal {
		body.Message = internalMessage
	}
	if e.Kind == domain.KindRateLimited {
		secs := ratelimit.RetryAfterSeconds(e.RetryAfter)
		body.RetryAfter = &secs
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}

	var ev *zerolog.Event
	switch {
	case status >= 500:
		ev = log.Error()
	case e.Kind == domain.KindRateLimited:
		ev = log.Info()
	default:
		ev = log.Warn()
	}
	ev.Err(e.Err).Str("kind", string(e.Kind)).Int("status", status).Msg(e.Message)

	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, internalMessage, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}
