package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"time"

	"summary-gateway/middleware/ratelimit/application"
	"summary-gateway/middleware/ratelimit/domain"
)

// KeyFunc extrai a identidade do cliente (chave de partição do rate limit).
type KeyFunc func(r *http.Request) string

// Options configura o limite global (token bucket) aplicado a todas as rotas.
type Options struct {
	Store domain.LimiterStore
	// Stats recebe só as negações; as admissões são contadas pelas políticas.
	Stats              domain.StatsStore
	KeyFn              KeyFunc
	KeyHeader          string
	TrustXForwardedFor bool
	RejectStatus       int
	// RetryAfter é o fallback quando o bucket não informa a espera.
	RetryAfter          time.Duration
	Message             string
	AddRateLimitHeaders bool
}

type rateInfo interface {
	RPS() float64
	Burst() int
}

// DefaultKeyFunc usa, nesta ordem: o header keyHeader (se configurado), o
// primeiro IP do X-Forwarded-For (só com trustXFF) e o host de RemoteAddr.
func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
		}

		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

// GlobalPolicyID identifica o limite global nas estatísticas.
const GlobalPolicyID = "global"

// Middleware aplica o limite global antes do roteamento.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.Message == "" {
		opts.Message = DefaultMessage
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}

	svc := application.Service{
		Store:      opts.Store,
		RetryAfter: opts.RetryAfter,
		Message:    opts.Message,
	}
	info, hasInfo := opts.Store.(rateInfo)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := domain.Key(opts.KeyFn(r))

			if opts.AddRateLimitHeaders && hasInfo {
				w.Header().Set("X-RateLimit-RPS", formatFloat(info.RPS()))
				w.Header().Set("X-RateLimit-Burst", formatInt(info.Burst()))
			}

			dec := svc.Decide(key)
			if dec.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			if opts.Stats != nil {
				_ = opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:     key,
					Policy:  GlobalPolicyID,
					Allowed: false,
					Method:  r.Method,
					Path:    r.URL.Path,
					At:      time.Now(),
				})
			}
			WriteRejection(w, opts.RejectStatus, dec)
		})
	}
}
