package ratelimit

import (
	"net/http"
	"time"

	"summary-gateway/middleware/ratelimit/application"
	"summary-gateway/middleware/ratelimit/infra"
)

const busyMessage = "The service is busy. Please try again in a moment."

type ConcurrencyOptions struct {
	// Max <= 0 desliga o limite.
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
	// RetryAfter sugerido no 503; padrão application.DefaultBusyRetryAfter.
	RetryAfter time.Duration
}

// ConcurrencyMiddleware limita requisições em voo. Cada uma pode segurar uma
// chamada ao provedor de IA por dezenas de segundos; sem vaga dentro de
// AcquireTimeout responde 503 com Retry-After.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}

	svc := application.ConcurrencyService{
		Pool:           infra.NewSemaphorePool(opts.Max),
		AcquireTimeout: opts.AcquireTimeout,
		RetryAfter:     opts.RetryAfter,
		Message:        busyMessage,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, dec := svc.Acquire(r.Context())
			if !dec.Allowed {
				writeDecision(w, opts.RejectStatus, errorCodeBusy, dec)
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
