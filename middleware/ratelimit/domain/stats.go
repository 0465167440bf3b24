package domain

import (
	"context"
	"time"
)

// StatsEvent representa o desfecho de uma requisição que passou pelo gateway.
//
// Method/Path são strings genéricas; Outcome é "ok" ou o tipo de erro
// (invalid_image, rate_limited, upstream_rejected, upstream_unavailable...).
//
// Observação: cuidado com cardinalidade (ex.: salvar Key sem controle pode
// explodir o número de chaves no Redis).
type StatsEvent struct {
	Key     Key
	Allowed bool
	Outcome string

	Method string
	Path   string

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas.
//
// Implementações podem armazenar em Redis, memória, etc.
// Quem chama deve tratar erro como best-effort (não derrubar request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
