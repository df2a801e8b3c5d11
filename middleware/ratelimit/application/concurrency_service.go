package application

import (
	"context"
	"time"

	"summary-gateway/middleware/ratelimit/domain"
)

// DefaultBusyRetryAfter é sugerido ao cliente quando não há vaga.
const DefaultBusyRetryAfter = 5 * time.Second

// ConcurrencyService decide se a requisição ganha uma vaga de processamento.
type ConcurrencyService struct {
	Pool domain.SlotPool
	// AcquireTimeout <= 0 espera enquanto o ctx da requisição viver.
	AcquireTimeout time.Duration
	RetryAfter     time.Duration
	Message        string
}

// Acquire reserva uma vaga. Negado, release é nil e a decisão traz
// Retry-After e a capacidade do pool.
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), domain.Decision) {
	if s.Pool == nil {
		return func() {}, domain.Decision{Allowed: true}
	}

	waitCtx := ctx
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}

	capacity := s.Pool.Capacity()
	if release, ok := s.Pool.Acquire(waitCtx); ok {
		return release, domain.Decision{
			Allowed:   true,
			Limit:     capacity,
			Remaining: max(capacity-s.Pool.InUse(), 0),
		}
	}

	retry := s.RetryAfter
	if retry <= 0 {
		retry = DefaultBusyRetryAfter
	}
	return nil, domain.Decision{
		Allowed:    false,
		RetryAfter: retry,
		Message:    s.Message,
		Limit:      capacity,
	}
}
