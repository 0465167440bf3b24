package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"time"

	"tryon-gateway/middleware/ratelimit/application"
	"tryon-gateway/middleware/ratelimit/domain"
	"tryon-gateway/middleware/ratelimit/infra"
)

type ConcurrencyOptions struct {
	Max            int
	AcquireTimeout time.Duration
	// Pool substitui o semáforo padrão (NewChanPool(Max)).
	Pool domain.SlotPool
	// Reject escreve a resposta quando não há vaga. Padrão: 503 texto puro.
	Reject func(w http.ResponseWriter, r *http.Request)
}

func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 && opts.Pool == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.Pool == nil {
		opts.Pool = infra.NewChanPool(opts.Max)
	}
	if opts.Reject == nil {
		opts.Reject = func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		}
	}

	svc := application.ConcurrencyService{
		Pool:           opts.Pool,
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, err := svc.Acquire(r.Context())
			if err != nil {
				// cliente desistiu enquanto esperava: não há para quem responder
				if errors.Is(err, context.Canceled) {
					return
				}
				opts.Reject(w, r)
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
