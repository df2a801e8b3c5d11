package domain

import (
	"context"
	"time"
)

// StatsEvent representa uma decisão do rate limit (política por endpoint ou
// limite global).
//
// Policy vazio indica o limite global. Cuidado com cardinalidade ao
// persistir Key: cada IP vira uma chave no Redis.
type StatsEvent struct {
	Key     Key
	Policy  string
	Allowed bool

	Method string
	Path   string

	At time.Time
}

// StatsStore persiste estatísticas do rate limit.
//
// Quem chama trata erro como best-effort (não derruba o request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
