package infra

import (
	"context"
	"errors"
	"time"

	"tryon-gateway/vton/domain"

	"gopkg.in/cenkalti/backoff.v1"
)

// retryable marca falhas transitórias (rede, timeout, 408/429/5xx).
// Qualquer outro erro interrompe as tentativas na hora.
type retryable struct{ err error }

func (r retryable) Error() string { return r.err.Error() }
func (r retryable) Unwrap() error { return r.err }

// boundedBackOff limita o exponencial a `max` novas tentativas.
type boundedBackOff struct {
	ctx   context.Context
	inner *backoff.ExponentialBackOff
	max   int
	tries int
}

func newBoundedBackOff(ctx context.Context, retries int, initial, maxInterval time.Duration) *boundedBackOff {
	exp := backoff.NewExponentialBackOff()
	if initial > 0 {
		exp.InitialInterval = initial
	}
	if maxInterval > 0 {
		exp.MaxInterval = maxInterval
	}
	// o limite é por contagem de tentativas, não por tempo total
	exp.MaxElapsedTime = 0
	exp.Reset()

	return &boundedBackOff{ctx: ctx, inner: exp, max: retries}
}

func (b *boundedBackOff) NextBackOff() time.Duration {
	if b.tries >= b.max || b.ctx.Err() != nil {
		return backoff.Stop
	}
	b.tries++
	return b.inner.NextBackOff()
}

func (b *boundedBackOff) Reset() {
	b.tries = 0
	b.inner.Reset()
}

// retry executa attempt até dar certo, falhar de forma permanente ou esgotar
// as novas tentativas. A espera entre tentativas termina junto com o ctx.
// O erro devolvido nunca vem embrulhado em retryable.
func retry(ctx context.Context, b backoff.BackOff, attempt func() error, notify backoff.Notify) error {
	b.Reset()
	for {
		err := attempt()
		if err == nil {
			return nil
		}
		var r retryable
		if !errors.As(err, &r) {
			return err
		}

		next := b.NextBackOff()
		if next == backoff.Stop {
			return r.err
		}
		if notify != nil {
			notify(err, next)
		}

		t := time.NewTimer(next)
		select {
		case <-ctx.Done():
			t.Stop()
			return domain.UpstreamUnavailable("Request was canceled before the external VTON service answered.", ctx.Err())
		case <-t.C:
		}
	}
}
