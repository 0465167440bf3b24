package application

import (
	"context"
	"time"

	"tryon-gateway/middleware/ratelimit/domain"

	"github.com/rs/zerolog"
)

// Service concentra a regra de admissão por janela deslizante.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
// Now é o relógio injetável; nil usa time.Now.
type Service struct {
	Store  domain.WindowStore
	Policy domain.Policy
	Now    func() time.Time
	Logger zerolog.Logger
}

// Decide toma exatamente uma decisão de admissão para a chave.
//
// Se o store falhar (ex: Redis fora), a requisição é admitida e o erro só é logado.
func (s Service) Decide(ctx context.Context, key domain.Key) domain.Decision {
	open := domain.Decision{Allowed: true, Limit: s.Policy.Limit, Remaining: s.Policy.Limit}
	if s.Store == nil {
		return open
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	dec, err := s.Store.Admit(ctx, key, now())
	if err != nil {
		s.Logger.Warn().Err(err).Str("key", string(key)).Msg("window store failed, admitting request")
		return open
	}
	return dec
}
