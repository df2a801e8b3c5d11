package application

import (
	"context"
	"time"

	"summary-gateway/middleware/ratelimit/domain"
)

// PolicyService aplica políticas de janela fixa por endpoint.
//
// É injetado nos handlers; não existe estado global. O estado fica no
// CounterStore (memória ou Redis).
type PolicyService struct {
	Counters domain.CounterStore
	// Now permite relógio controlado nos testes.
	Now func() time.Time
}

// Check consome uma requisição da política p para a chave.
//
// Em erro do store a decisão devolvida é Allowed=true junto com o erro:
// quem chama decide se loga e segue (fail open) ou aborta.
func (s PolicyService) Check(ctx context.Context, key domain.Key, p domain.Policy) (domain.Decision, error) {
	if s.Counters == nil || p.MaxRequests <= 0 || p.Window <= 0 {
		return domain.Decision{Allowed: true}, nil
	}

	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	c, ok, err := s.Counters.Take(ctx, key, p, now)
	if err != nil {
		return domain.Decision{Allowed: true}, err
	}

	resetIn := c.WindowStart.Add(p.Window).Sub(now)
	if resetIn < 0 {
		resetIn = 0
	}
	dec := domain.Decision{
		Allowed:   ok,
		Limit:     p.MaxRequests,
		Remaining: max(p.MaxRequests-c.Count, 0),
		ResetIn:   resetIn,
	}
	if ok {
		return dec, nil
	}

	dec.Message = p.Message
	dec.RetryAfter = p.RetryAfter
	if dec.RetryAfter <= 0 {
		dec.RetryAfter = ceilSeconds(resetIn)
	}
	return dec, nil
}

// ceilSeconds arredonda para cima em segundos inteiros, nunca abaixo de 1s
// (Retry-After: 0 faria o cliente tentar de novo na hora).
func ceilSeconds(d time.Duration) time.Duration {
	s := d.Truncate(time.Second)
	if s < d {
		s += time.Second
	}
	if s < time.Second {
		s = time.Second
	}
	return s
}
