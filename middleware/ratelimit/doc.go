// Package ratelimit fornece a governança de requisições do gateway em net/http.
//
// Camadas:
//
//   - domain: políticas, contadores e contratos (sem net/http)
//   - application: decisões (janela fixa por endpoint, token bucket global, vagas)
//   - infra: stores em memória e Redis, token bucket (x/time/rate), semáforo
//   - ratelimit (este pacote): Guard por endpoint, middlewares globais,
//     extração da chave do cliente e resposta 429 em JSON
//
// Fluxo:
//
//  1. Middleware (opcional) aplica o token bucket global por cliente
//  2. ConcurrencyMiddleware limita requisições em voo (503 se lotado)
//  3. No topo de cada handler, Guard.Allow(w, r, policy) consome a cota do
//     endpoint; se negado escreve 429 + Retry-After e o handler retorna
//
// A chave do cliente é o IP de origem (RemoteAddr). X-Forwarded-For só é
// usado com TRUST_XFF=true.
package ratelimit
