package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"time"
)

type Key string

// Policy é a política de janela deslizante: no máximo Limit admissões
// em qualquer intervalo de duração Window, por chave.
type Policy struct {
	Limit  int
	Window time.Duration
}

func (p Policy) Valid() bool { return p.Limit > 0 && p.Window > 0 }

// WindowStore decide admissões por chave em uma janela deslizante.
//
// Admit deve ser atômico por chave: duas chamadas concorrentes para a mesma
// chave nunca podem ambas enxergar a mesma contagem. Ao admitir, `now` é
// registrado; ao negar, nada é registrado.
// A implementação pode ser em memória, Redis, etc.
type WindowStore interface {
	Admit(ctx context.Context, key Key, now time.Time) (Decision, error)
}

type Decision struct {
	Allowed bool
	// Limit e Remaining refletem a janela após a decisão.
	Limit     int
	Remaining int
	// RetryAfter é quanto falta para a entrada mais antiga sair da janela.
	// Só faz sentido quando Allowed=false.
	RetryAfter time.Duration
}
