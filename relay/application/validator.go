package application

import (
	"net/mail"
	"strings"

	"summary-gateway/relay/domain"
)

// ValidateSummary rejeita transcript ou prompt vazios (ou só espaços).
func ValidateSummary(req domain.SummaryRequest) error {
	if isBlank(req.Transcript) {
		return domain.InvalidInput("transcript", "Transcript cannot be empty.")
	}
	if isBlank(req.Prompt) {
		return domain.InvalidInput("prompt", "Prompt cannot be empty.")
	}
	return nil
}

// ValidateShare rejeita resumo vazio, lista de destinatários vazia ou
// qualquer endereço inválido. O assunto pode ser vazio, mas precisa ser uma
// linha só: ele vira header do e-mail.
func ValidateShare(req domain.ShareRequest) error {
	if isBlank(req.Summary) {
		return domain.InvalidInput("summary", "Summary cannot be empty.")
	}
	if strings.ContainsAny(req.Subject, "\r\n") {
		return domain.InvalidInput("subject", "Subject must be a single line.")
	}
	if len(req.Recipients) == 0 {
		return domain.InvalidInput("recipients", "At least one recipient email is required.")
	}
	for _, r := range req.Recipients {
		if !IsValidEmail(strings.TrimSpace(r)) {
			return domain.InvalidInput("recipients", "Invalid email address: "+r)
		}
	}
	return nil
}

// IsValidEmail aceita apenas local@dominio, com ao menos um ponto no domínio.
// Formas com nome ("Ana <ana@x.com>") são recusadas.
func IsValidEmail(addr string) bool {
	if addr == "" || strings.ContainsAny(addr, " \t\r\n<>,;") {
		return false
	}
	local, host, ok := strings.Cut(addr, "@")
	if !ok || local == "" || host == "" || strings.Contains(host, "@") {
		return false
	}
	if !strings.Contains(host, ".") ||
		strings.HasPrefix(host, ".") || strings.HasSuffix(host, ".") ||
		strings.Contains(host, "..") {
		return false
	}
	parsed, err := mail.ParseAddress(addr)
	return err == nil && parsed.Address == addr
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }
