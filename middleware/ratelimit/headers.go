package ratelimit

import (
	"net/http"
	"time"

	"tryon-gateway/middleware/ratelimit/domain"
)

// WriteHeaders traduz a decisão para headers HTTP.
//
// Retry-After sempre acompanha uma negação; X-RateLimit-* só quando
// withLimits=true (ADD_RATELIMIT_HEADERS).
func WriteHeaders(w http.ResponseWriter, dec domain.Decision, withLimits bool) {
	if withLimits {
		w.Header().Set("X-RateLimit-Limit", formatInt(dec.Limit))
		w.Header().Set("X-RateLimit-Remaining", formatInt(max(dec.Remaining, 0)))
	}
	if !dec.Allowed {
		w.Header().Set("Retry-After", formatInt(RetryAfterSeconds(dec.RetryAfter)))
	}
}

// RetryAfterSeconds arredonda para cima: esperar o valor anunciado
// sempre basta para a próxima tentativa passar.
func RetryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	s := int(d / time.Second)
	if d%time.Second != 0 {
		s++
	}
	return s
}
