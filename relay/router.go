package relay

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"summary-gateway/logging"
	"summary-gateway/middleware/ratelimit/infra"
)

const requestIDHeader = "X-Request-ID"

const msgStatsUnavailable = "Rate limit statistics are unavailable right now."

// DefaultAllowedOrigins são os front-ends de desenvolvimento.
var DefaultAllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}

// StatsSource expõe o snapshot servido em GET /api/ratelimit/stats.
type StatsSource interface {
	Read(ctx context.Context) (infra.StatsSnapshot, error)
}

type RouterOptions struct {
	Handler        *Handler
	AllowedOrigins []string
	// Middlewares rodam depois do CORS e antes das rotas, na ordem dada
	// (limite global, concorrência).
	Middlewares []func(http.Handler) http.Handler
	// Stats nil desliga a rota de estatísticas.
	Stats  StatsSource
	Logger *slog.Logger
}

func NewRouter(opts RouterOptions) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(middleware.Recoverer)
	r.Use(AccessLog(opts.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Retry-After", requestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	for _, mw := range opts.Middlewares {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/generate-summary", opts.Handler.GenerateSummary)
		r.Post("/share-summary", opts.Handler.ShareSummary)

		if opts.Stats != nil {
			r.Get("/ratelimit/stats", func(w http.ResponseWriter, r *http.Request) {
				snap, err := opts.Stats.Read(r.Context())
				if err != nil {
					opts.Logger.WarnContext(r.Context(), "rate limit stats unavailable", "error", err)
					writeJSON(w, http.StatusServiceUnavailable, errorBody{
						Error: "stats_unavailable", Message: msgStatsUnavailable, Detail: msgStatsUnavailable,
					})
					return
				}
				writeJSON(w, http.StatusOK, snap)
			})
		}
	})

	return r
}

// RequestID reaproveita o X-Request-ID do cliente (se razoável) ou gera um
// UUID, devolve no header e coloca no contexto para os logs.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

// AccessLog registra uma linha por requisição.
func AccessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}
