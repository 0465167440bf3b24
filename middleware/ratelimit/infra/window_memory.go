package infra

import (
	"context"
	"time"

	"tryon-gateway/middleware/ratelimit/domain"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// MemoryWindowStore é uma janela deslizante (sliding log) em memória, por chave.
//
// Cada chave guarda os instantes das admissões ainda dentro da janela. Um `now`
// anterior à última admissão (relógio que voltou) é tratado como essa admissão.
// A checagem de uma chave roda dentro do callback do shard do concurrent-map,
// então chamadas concorrentes da mesma chave são serializadas.
type MemoryWindowStore struct {
	windows      cmap.ConcurrentMap[string, *clientWindow]
	policy       domain.Policy
	cleanupEvery time.Duration
	now          func() time.Time
}

type clientWindow struct {
	// em ordem crescente
	hits []time.Time
}

// prune remove tudo que já saiu da janela: now - t >= window.
func (w *clientWindow) prune(now time.Time, window time.Duration) {
	i := 0
	for i < len(w.hits) && now.Sub(w.hits[i]) >= window {
		i++
	}
	if i > 0 {
		w.hits = append(w.hits[:0], w.hits[i:]...)
	}
}

type MemoryWindowOption func(*MemoryWindowStore)

func WithCleanupEvery(d time.Duration) MemoryWindowOption {
	return func(s *MemoryWindowStore) { s.cleanupEvery = d }
}

// WithClock troca o relógio usado pelo janitor (testes).
func WithClock(now func() time.Time) MemoryWindowOption {
	return func(s *MemoryWindowStore) { s.now = now }
}

func NewMemoryWindowStore(policy domain.Policy, opts ...MemoryWindowOption) *MemoryWindowStore {
	s := &MemoryWindowStore{
		windows:      cmap.New[*clientWindow](),
		policy:       policy,
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryWindowStore) Policy() domain.Policy { return s.policy }

func (s *MemoryWindowStore) CleanupEvery() time.Duration { return s.cleanupEvery }

// Len retorna quantas chaves estão na tabela.
func (s *MemoryWindowStore) Len() int { return s.windows.Count() }

// Admit implementa domain.WindowStore.
func (s *MemoryWindowStore) Admit(_ context.Context, key domain.Key, now time.Time) (domain.Decision, error) {
	limit, window := s.policy.Limit, s.policy.Window
	var dec domain.Decision

	s.windows.Upsert(string(key), nil, func(exist bool, w *clientWindow, _ *clientWindow) *clientWindow {
		if !exist || w == nil {
			w = &clientWindow{}
		}
		// relógio nunca volta: hits fica ordenado e prune continua correto
		if n := len(w.hits); n > 0 && now.Before(w.hits[n-1]) {
			now = w.hits[n-1]
		}
		w.prune(now, window)

		count := len(w.hits)
		if count < limit {
			w.hits = append(w.hits, now)
			dec = domain.Decision{Allowed: true, Limit: limit, Remaining: limit - count - 1}
			return w
		}

		retry := window
		if len(w.hits) > 0 {
			retry = max(w.hits[0].Add(window).Sub(now), 0)
		}
		dec = domain.Decision{Allowed: false, Limit: limit, Remaining: 0, RetryAfter: retry}
		return w
	})

	return dec, nil
}

// Cleanup remove as chaves cuja janela ficou vazia em `now`.
// Uma chave removida volta a ser tratada como primeira requisição.
func (s *MemoryWindowStore) Cleanup(now time.Time) int {
	removed := 0
	for _, k := range s.windows.Keys() {
		ok := s.windows.RemoveCb(k, func(_ string, w *clientWindow, exists bool) bool {
			if !exists || w == nil {
				return exists
			}
			w.prune(now, s.policy.Window)
			return len(w.hits) == 0
		})
		if ok {
			removed++
		}
	}
	return removed
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *MemoryWindowStore) StartJanitor(ctx DoneContext) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup(s.now())
			}
		}
	}()
}

// DoneContext é o mínimo necessário para aceitar context.Context no janitor.
type DoneContext interface {
	Done() <-chan struct{}
}
