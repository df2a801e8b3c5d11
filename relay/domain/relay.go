// Package domain define os tipos do relay de resumos: payloads das rotas,
// colaboradores externos (provedor de IA e transporte de e-mail) e a
// taxonomia de erros devolvida ao cliente.
package domain

import "context"

type SummaryRequest struct {
	Transcript string `json:"transcript"`
	Prompt     string `json:"prompt"`
}

type SummaryResponse struct {
	Summary string `json:"summary"`
}

type ShareRequest struct {
	Subject    string   `json:"subject"`
	Summary    string   `json:"summary"`
	Recipients []string `json:"recipients"`
}

type ShareResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Message é o e-mail em texto puro entregue ao Mailer.
type Message struct {
	Subject    string
	Body       string
	Recipients []string
}

// Completer é o provedor de IA: texto entra, texto sai (ou falha).
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Mailer é o transporte de e-mail.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Dependency identifica qual colaborador externo falhou.
type Dependency int

const (
	Completion Dependency = iota
	Mail
)

func (d Dependency) String() string {
	switch d {
	case Completion:
		return "completion"
	case Mail:
		return "mail"
	default:
		return "unknown"
	}
}
