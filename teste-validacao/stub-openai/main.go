// Servidor falso compatível com /v1/chat/completions para testar o gateway
// de ponta a ponta sem gastar cota real. Aponte OPENAI_BASE_URL para
// http://localhost:8081/v1.
//
// STUB_DELAY atrasa cada resposta (ex: 40s para forçar timeout).
// STUB_FAIL força um erro: rate_limit, api_key, empty ou 500.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func main() {
	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}
	delay, _ := time.ParseDuration(os.Getenv("STUB_DELAY"))
	fail := os.Getenv("STUB_FAIL")

	http.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_error", "could not parse body")
			return
		}
		log.Printf("Log: completion pedida model=%s messages=%d auth=%t",
			req.Model, len(req.Messages), strings.HasPrefix(r.Header.Get("Authorization"), "Bearer "))

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		switch fail {
		case "rate_limit":
			writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Rate limit reached for requests")
			return
		case "api_key":
			writeError(w, http.StatusUnauthorized, "invalid_api_key", "Incorrect API key provided")
			return
		case "500":
			writeError(w, http.StatusInternalServerError, "server_error", "The server had an error while processing your request")
			return
		}

		content := any(summarize(req))
		if fail == "empty" {
			content = nil
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     fmt.Sprintf("chatcmpl-stub-%d", time.Now().UnixNano()),
			"object": "chat.completion",
			"model":  req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	})

	log.Printf("stub openai rodando em http://localhost%s (delay=%s fail=%q)", addr, delay, fail)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("Erro ao subir o servidor: %s", err)
	}
}

// summarize devolve as primeiras palavras da última mensagem do usuário.
func summarize(req chatRequest) string {
	var user string
	for _, m := range req.Messages {
		if m.Role == "user" {
			user = m.Content
		}
	}
	if _, text, ok := strings.Cut(user, "\n\n"); ok {
		user = text
	}
	words := strings.Fields(user)
	if len(words) > 12 {
		words = append(words[:12], "...")
	}
	return "Resumo (stub): " + strings.Join(words, " ")
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": msg, "type": code, "code": code},
	})
}
