// Package domain define contratos e tipos de domínio para rate limit e concorrência.
//
// Este pacote não depende de net/http nem de implementações concretas.
// Políticas (Policy) descrevem janelas fixas por endpoint; CounterStore é o
// ponto de troca entre memória e Redis.
package domain
