package application

import (
	"context"
	"errors"
	"strings"

	"summary-gateway/relay/domain"
)

// Mensagens devolvidas ao cliente quando uma dependência falha.
const (
	MsgCompletionConfig     = "OpenAI API configuration error. Please contact support."
	MsgCompletionRateLimit  = "OpenAI API rate limit exceeded. Please try again later."
	MsgCompletionTimeout    = "Request timed out. Please try again with a shorter text."
	MsgCompletionConnection = "Unable to connect to AI service. Please try again later."
	MsgCompletionGeneric    = "An unexpected error occurred while generating the summary. Please try again."
	MsgEmptyCompletion      = "AI model returned an empty response. Please try again."

	MsgMailAuth       = "Email authentication failed. Please contact support."
	MsgMailInvalid    = "One or more email addresses are invalid. Please check and try again."
	MsgMailConnection = "Unable to connect to email server. Please try again later."
	MsgMailQuota      = "Email sending quota exceeded. Please try again later."
	MsgMailGeneric    = "Failed to send email. Please check email addresses and try again."
)

// Classifier transforma a falha de uma dependência em erro apresentável.
// É o único ponto a trocar quando os provedores expuserem códigos estáveis.
type Classifier interface {
	Classify(dep domain.Dependency, err error) *domain.Error
}

// Rule casa quando o texto do erro contém todos os termos de All e pelo
// menos um de Any (comparação sem diferenciar maiúsculas).
type Rule struct {
	All     []string
	Any     []string
	Message string
}

func (r Rule) matches(text string) bool {
	for _, term := range r.All {
		if !strings.Contains(text, term) {
			return false
		}
	}
	if len(r.Any) == 0 {
		return len(r.All) > 0
	}
	for _, term := range r.Any {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

// SubstringClassifier aplica regras por texto, em ordem; a primeira que casa
// vence. Erros tipados (um *domain.Error já pronto ou deadline do contexto)
// são tratados antes das regras.
type SubstringClassifier struct {
	Rules    map[domain.Dependency][]Rule
	Fallback map[domain.Dependency]string
}

func NewSubstringClassifier() *SubstringClassifier {
	return &SubstringClassifier{
		Rules: map[domain.Dependency][]Rule{
			domain.Completion: {
				{Any: []string{"api key"}, Message: MsgCompletionConfig},
				{Any: []string{"rate limit"}, Message: MsgCompletionRateLimit},
				{Any: []string{"timeout"}, Message: MsgCompletionTimeout},
				{Any: []string{"connection"}, Message: MsgCompletionConnection},
			},
			domain.Mail: {
				{Any: []string{"authentication", "login"}, Message: MsgMailAuth},
				{All: []string{"invalid", "email"}, Message: MsgMailInvalid},
				{Any: []string{"smtp", "connection"}, Message: MsgMailConnection},
				{Any: []string{"quota", "limit"}, Message: MsgMailQuota},
			},
		},
		Fallback: map[domain.Dependency]string{
			domain.Completion: MsgCompletionGeneric,
			domain.Mail:       MsgMailGeneric,
		},
	}
}

func (c *SubstringClassifier) Classify(dep domain.Dependency, err error) *domain.Error {
	if err == nil {
		return nil
	}
	if e, ok := domain.AsError(err); ok {
		return e
	}

	out := &domain.Error{Kind: domain.KindDependencyFailure, Err: err}

	if errors.Is(err, context.DeadlineExceeded) {
		if dep == domain.Mail {
			out.Message = MsgMailConnection
		} else {
			out.Message = MsgCompletionTimeout
		}
		return out
	}

	text := strings.ToLower(err.Error())
	for _, r := range c.Rules[dep] {
		if r.matches(text) {
			out.Message = r.Message
			return out
		}
	}

	out.Message = c.Fallback[dep]
	if out.Message == "" {
		out.Message = MsgCompletionGeneric
	}
	return out
}
