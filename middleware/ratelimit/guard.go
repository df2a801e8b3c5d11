package ratelimit

import (
	"log/slog"
	"net/http"
	"time"

	"summary-gateway/middleware/ratelimit/application"
	"summary-gateway/middleware/ratelimit/domain"
)

type GuardOptions struct {
	Counters            domain.CounterStore
	Stats               domain.StatsStore
	KeyFn               KeyFunc
	KeyHeader           string
	TrustXForwardedFor  bool
	AddRateLimitHeaders bool
	Logger              *slog.Logger
	Now                 func() time.Time
}

// Guard aplica uma política por endpoint. Cada handler chama Allow no topo,
// antes de ler o corpo: o bloqueio por cota vem antes da validação.
type Guard struct {
	svc     application.PolicyService
	stats   domain.StatsStore
	keyFn   KeyFunc
	headers bool
	logger  *slog.Logger
}

func NewGuard(opts GuardOptions) *Guard {
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Guard{
		svc:     application.PolicyService{Counters: opts.Counters, Now: opts.Now},
		stats:   opts.Stats,
		keyFn:   opts.KeyFn,
		headers: opts.AddRateLimitHeaders,
		logger:  opts.Logger,
	}
}

// Allow consome uma requisição da política p para o cliente de r.
// Se negado, já escreve o 429 e retorna false; o handler só precisa sair.
func (g *Guard) Allow(w http.ResponseWriter, r *http.Request, p domain.Policy) bool {
	key := domain.Key(g.keyFn(r))

	dec, err := g.svc.Check(r.Context(), key, p)
	if err != nil {
		// fail open: sem contador não dá pra negar com justiça
		g.logger.WarnContext(r.Context(), "rate limit store failed, allowing request",
			"policy", p.ID, "key", key, "error", err)
	}

	if g.stats != nil {
		if err := g.stats.Record(r.Context(), domain.StatsEvent{
			Key:     key,
			Policy:  p.ID,
			Allowed: dec.Allowed,
			Method:  r.Method,
			Path:    r.URL.Path,
			At:      time.Now(),
		}); err != nil {
			g.logger.DebugContext(r.Context(), "rate limit stats not recorded", "error", err)
		}
	}

	if g.headers && dec.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", formatInt(dec.Limit))
		w.Header().Set("X-RateLimit-Remaining", formatInt(dec.Remaining))
		w.Header().Set("X-RateLimit-Reset", formatInt(int(dec.ResetIn.Seconds())))
	}

	if dec.Allowed {
		return true
	}

	g.logger.InfoContext(r.Context(), "rate limit exceeded",
		"policy", p.ID, "key", key, "retry_after", dec.RetryAfter)
	WriteRejection(w, http.StatusTooManyRequests, dec)
	return false
}
