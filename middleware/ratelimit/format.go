package ratelimit

import (
	"encoding/json"
	"net/http"
	"strconv"

	"summary-gateway/middleware/ratelimit/domain"
)

// DefaultMessage é usado quando a decisão não traz mensagem própria.
const DefaultMessage = "Too many requests. Please wait before trying again."

const (
	errorCodeRateLimited = "rate_limit_exceeded"
	errorCodeBusy        = "server_busy"
)

func formatInt(v int) string { return strconv.Itoa(v) }

func formatFloat(v float64) string {
	// sem notação científica para valores comuns
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type rejection struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// WriteRejection escreve o corpo JSON de bloqueio com Retry-After em
// segundos inteiros, igual no header e no corpo.
func WriteRejection(w http.ResponseWriter, status int, dec domain.Decision) {
	writeDecision(w, status, errorCodeRateLimited, dec)
}

func writeDecision(w http.ResponseWriter, status int, code string, dec domain.Decision) {
	msg := dec.Message
	if msg == "" {
		msg = DefaultMessage
	}
	secs := int(dec.RetryAfter.Seconds())

	w.Header().Set("Retry-After", formatInt(secs))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rejection{
		Error:      code,
		Message:    msg,
		RetryAfter: secs,
	})
}
