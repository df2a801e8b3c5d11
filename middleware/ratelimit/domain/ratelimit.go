package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"time"
)

// Key identifica o cliente (ex: IP de origem, API key).
type Key string

// Policy é a configuração imutável de um endpoint protegido.
//
// Cada política tem seus próprios contadores: esgotar uma não afeta outra.
type Policy struct {
	ID          string
	Window      time.Duration
	MaxRequests int
	// RetryAfter fixo devolvido ao bloquear. Se 0, usa o restante da janela.
	RetryAfter time.Duration
	Message    string
}

// Counter é o estado de uma janela fixa para o par (identidade, política).
type Counter struct {
	Key         Key
	PolicyID    string
	WindowStart time.Time
	Count       int
}

// CounterStore guarda contadores de janela fixa.
//
// Take abre uma nova janela quando não há contador ou quando a atual venceu,
// e só incrementa se Count < MaxRequests. Retorna o contador após a operação
// e se a requisição foi admitida.
type CounterStore interface {
	Take(ctx context.Context, key Key, p Policy, now time.Time) (Counter, bool, error)
}

// Limiter é o bucket de um cliente no limite global. Take consome um token
// em now; negado, wait diz quanto falta para o próximo (0 se desconhecido).
//
// As políticas por endpoint usam CounterStore.
type Limiter interface {
	Take(now time.Time) (allowed bool, wait time.Duration)
}

// LimiterStore obtém um limiter por chave (ex: IP, API key, usuário).
type LimiterStore interface {
	Get(Key) Limiter
}

type Decision struct {
	Allowed bool
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
	Message    string

	Limit     int
	Remaining int
	ResetIn   time.Duration
}
