// Package relay expõe as rotas HTTP do gateway de resumos: cada handler
// consome a cota da sua política, confere o corpo e delega ao serviço.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"summary-gateway/middleware/ratelimit"
	rldomain "summary-gateway/middleware/ratelimit/domain"
	"summary-gateway/relay/domain"
)

// SummarizePolicy: 5 resumos por hora por cliente.
var SummarizePolicy = rldomain.Policy{
	ID:          "generate-summary",
	Window:      time.Hour,
	MaxRequests: 5,
	RetryAfter:  3600 * time.Second,
	Message:     "You can only generate 5 summaries per hour due to rate-limiting. Please wait 1 hour before trying again.",
}

// SharePolicy: 5 e-mails por minuto por cliente.
var SharePolicy = rldomain.Policy{
	ID:          "share-summary",
	Window:      time.Minute,
	MaxRequests: 5,
	RetryAfter:  60 * time.Second,
	Message:     "You can only send 5 emails per minute due to rate-limiting. Please wait a minute before trying again.",
}

const msgInternal = "An unexpected error occurred. Please try again."

// Relay é o que o handler precisa do serviço de aplicação.
type Relay interface {
	Summarize(ctx context.Context, req domain.SummaryRequest) (domain.SummaryResponse, error)
	Share(ctx context.Context, req domain.ShareRequest) (domain.ShareResponse, error)
}

type Handler struct {
	svc     Relay
	guard   *ratelimit.Guard
	schemas *bodySchemas
	logger  *slog.Logger

	summarize rldomain.Policy
	share     rldomain.Policy
}

type HandlerOption func(*Handler)

// WithPolicies troca as políticas padrão (útil em testes e deploys com
// cotas diferentes).
func WithPolicies(summarize, share rldomain.Policy) HandlerOption {
	return func(h *Handler) {
		h.summarize = summarize
		h.share = share
	}
}

func WithLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

func NewHandler(svc Relay, guard *ratelimit.Guard, opts ...HandlerOption) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("relay service is required")
	}
	if guard == nil {
		return nil, errors.New("rate limit guard is required")
	}
	schemas, err := loadSchemas()
	if err != nil {
		return nil, err
	}

	h := &Handler{
		svc:       svc,
		guard:     guard,
		schemas:   schemas,
		logger:    slog.Default(),
		summarize: SummarizePolicy,
		share:     SharePolicy,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// GenerateSummary atende POST /api/generate-summary.
func (h *Handler) GenerateSummary(w http.ResponseWriter, r *http.Request) {
	if !h.guard.Allow(w, r, h.summarize) {
		return
	}

	var req domain.SummaryRequest
	if err := decodeBody(w, r, h.schemas.summary, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	resp, err := h.svc.Summarize(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ShareSummary atende POST /api/share-summary.
func (h *Handler) ShareSummary(w http.ResponseWriter, r *http.Request) {
	if !h.guard.Allow(w, r, h.share) {
		return
	}

	var req domain.ShareRequest
	if err := decodeBody(w, r, h.schemas.share, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	resp, err := h.svc.Share(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

// writeError serializa só a mensagem classificada; a causa vai para o log.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := domain.AsError(err)
	if !ok {
		h.logger.ErrorContext(r.Context(), "unclassified error", "path", r.URL.Path, "error", err)
		e = &domain.Error{Kind: domain.KindDependencyFailure, Message: msgInternal, Err: err}
	}

	if e.Kind == domain.KindInvalidInput {
		attrs := []any{"path", r.URL.Path, "field", e.Field, "message", e.Message}
		if e.Err != nil {
			attrs = append(attrs, "error", e.Err)
		}
		h.logger.InfoContext(r.Context(), "request rejected", attrs...)
	}

	writeJSON(w, e.Status(), errorBody{Error: e.Code(), Message: e.Message, Detail: e.Message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
