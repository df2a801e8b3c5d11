package application

import (
	"time"

	"summary-gateway/middleware/ratelimit/domain"
)

// Service aplica o limite global (token bucket por cliente).
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Store domain.LimiterStore
	// RetryAfter é usado quando o bucket não informa a espera.
	RetryAfter time.Duration
	Message    string
	Now        func() time.Time
}

// Decide consome um token do cliente. Negado, Retry-After é a espera até o
// próximo token arredondada para cima em segundos.
func (s Service) Decide(key domain.Key) domain.Decision {
	if s.Store == nil {
		return domain.Decision{Allowed: true}
	}
	lim := s.Store.Get(key)
	if lim == nil {
		return domain.Decision{Allowed: true}
	}

	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	ok, wait := lim.Take(now)
	if ok {
		return domain.Decision{Allowed: true}
	}

	retry := s.RetryAfter
	if wait > 0 {
		retry = ceilSeconds(wait)
	}
	if retry <= 0 {
		retry = time.Second
	}
	return domain.Decision{Allowed: false, RetryAfter: retry, Message: s.Message}
}
