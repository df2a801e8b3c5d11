package domain

import "context"

// SlotPool reserva vagas de processamento. Uma requisição em voo pode
// segurar uma chamada ao provedor de IA ou ao SMTP; a capacidade do pool é
// o teto de chamadas externas simultâneas.
//
// Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar.
// O release retornado deve ser chamado exatamente uma vez (chamadas extras
// são ignoradas).
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
	InUse() int
	Capacity() int
}
