// Package application sequencia as rotas do relay: validação, chamada ao
// colaborador externo com timeout e classificação da falha. Não conhece
// HTTP nem rate limit (isso fica no handler).
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"summary-gateway/relay/domain"
)

const (
	SystemPrompt = "You are an expert assistant specialized in summarizing text based on user instructions."

	ShareSuccessMessage = "Email has been sent successfully."

	DefaultCompletionTimeout = 30 * time.Second
	DefaultMailTimeout       = 20 * time.Second
)

// UserPrompt monta a instrução enviada ao modelo.
func UserPrompt(prompt, transcript string) string {
	return fmt.Sprintf("Please follow this instruction: '%s'. Here is the text you need to work on: \n\n%s", prompt, transcript)
}

type Config struct {
	CompletionTimeout time.Duration
	MailTimeout       time.Duration
	Classifier        Classifier
	Logger            *slog.Logger
}

type Service struct {
	completer  domain.Completer
	mailer     domain.Mailer
	classifier Classifier
	logger     *slog.Logger

	completionTimeout time.Duration
	mailTimeout       time.Duration
}

func NewService(completer domain.Completer, mailer domain.Mailer, cfg Config) (*Service, error) {
	if completer == nil {
		return nil, errors.New("completer is required")
	}
	if mailer == nil {
		return nil, errors.New("mailer is required")
	}
	if cfg.CompletionTimeout <= 0 {
		cfg.CompletionTimeout = DefaultCompletionTimeout
	}
	if cfg.MailTimeout <= 0 {
		cfg.MailTimeout = DefaultMailTimeout
	}
	if cfg.Classifier == nil {
		cfg.Classifier = NewSubstringClassifier()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Service{
		completer:         completer,
		mailer:            mailer,
		classifier:        cfg.Classifier,
		logger:            cfg.Logger,
		completionTimeout: cfg.CompletionTimeout,
		mailTimeout:       cfg.MailTimeout,
	}, nil
}

// Summarize valida, chama o provedor de IA e devolve o resumo.
// Todo erro retornado é um *domain.Error.
func (s *Service) Summarize(ctx context.Context, req domain.SummaryRequest) (domain.SummaryResponse, error) {
	if err := ValidateSummary(req); err != nil {
		return domain.SummaryResponse{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.completionTimeout)
	defer cancel()

	started := time.Now()
	text, err := s.completer.Complete(callCtx, SystemPrompt, UserPrompt(req.Prompt, req.Transcript))
	if err != nil {
		classified := s.classifier.Classify(domain.Completion, err)
		s.logger.ErrorContext(ctx, "summary generation failed",
			"error", err, "classified", classified.Message, "elapsed", time.Since(started))
		return domain.SummaryResponse{}, classified
	}

	if strings.TrimSpace(text) == "" {
		s.logger.WarnContext(ctx, "completion returned empty content", "elapsed", time.Since(started))
		return domain.SummaryResponse{}, &domain.Error{
			Kind:    domain.KindEmptyDependencyResult,
			Message: MsgEmptyCompletion,
		}
	}

	s.logger.InfoContext(ctx, "summary generated",
		"transcript_chars", len(req.Transcript), "summary_chars", len(text), "elapsed", time.Since(started))
	return domain.SummaryResponse{Summary: text}, nil
}

// Share valida e envia o resumo por e-mail em texto puro.
func (s *Service) Share(ctx context.Context, req domain.ShareRequest) (domain.ShareResponse, error) {
	if err := ValidateShare(req); err != nil {
		return domain.ShareResponse{}, err
	}

	msg := domain.Message{
		Subject:    req.Subject,
		Body:       req.Summary,
		Recipients: normalizeRecipients(req.Recipients),
	}

	callCtx, cancel := context.WithTimeout(ctx, s.mailTimeout)
	defer cancel()

	if err := s.mailer.Send(callCtx, msg); err != nil {
		classified := s.classifier.Classify(domain.Mail, err)
		s.logger.ErrorContext(ctx, "failed to send email",
			"error", err, "classified", classified.Message, "recipients", len(msg.Recipients))
		return domain.ShareResponse{}, classified
	}

	s.logger.InfoContext(ctx, "summary shared", "recipients", len(msg.Recipients))
	return domain.ShareResponse{Status: "success", Message: ShareSuccessMessage}, nil
}

// normalizeRecipients remove espaços e duplicatas (sem diferenciar caixa),
// mantendo a ordem.
func normalizeRecipients(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, r := range in {
		r = strings.TrimSpace(r)
		k := strings.ToLower(r)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}
