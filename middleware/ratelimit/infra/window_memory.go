package infra

import (
	"context"
	"sync"
	"time"

	"summary-gateway/middleware/ratelimit/domain"
)

// MemoryCounterStore é o CounterStore padrão: janela fixa em memória,
// um contador por (política, chave).
//
// Janelas vencidas são reiniciadas no próximo acesso; Cleanup/StartJanitor
// removem as que ninguém mais acessa.
type MemoryCounterStore struct {
	mu           sync.Mutex
	counters     map[counterID]*windowEntry
	cleanupEvery time.Duration
	now          func() time.Time
}

type counterID struct {
	policy string
	key    domain.Key
}

type windowEntry struct {
	counter domain.Counter
	window  time.Duration
}

type MemoryCounterOption func(*MemoryCounterStore)

func WithCounterCleanupEvery(d time.Duration) MemoryCounterOption {
	return func(s *MemoryCounterStore) { s.cleanupEvery = d }
}

// WithCounterClock troca o relógio usado por Cleanup (testes).
func WithCounterClock(now func() time.Time) MemoryCounterOption {
	return func(s *MemoryCounterStore) { s.now = now }
}

func NewMemoryCounterStore(opts ...MemoryCounterOption) *MemoryCounterStore {
	s := &MemoryCounterStore{
		counters:     make(map[counterID]*windowEntry),
		cleanupEvery: time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Take implementa domain.CounterStore.
func (s *MemoryCounterStore) Take(_ context.Context, key domain.Key, p domain.Policy, now time.Time) (domain.Counter, bool, error) {
	id := counterID{policy: p.ID, key: key}

	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.counters[id]
	if !ok || !now.Before(ent.counter.WindowStart.Add(p.Window)) {
		ent = &windowEntry{
			counter: domain.Counter{Key: key, PolicyID: p.ID, WindowStart: now},
			window:  p.Window,
		}
		s.counters[id] = ent
	}

	if ent.counter.Count >= p.MaxRequests {
		return ent.counter, false, nil
	}
	ent.counter.Count++
	return ent.counter, true, nil
}

// Len devolve quantos contadores estão em memória.
func (s *MemoryCounterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}

// Cleanup remove contadores cuja janela já venceu.
func (s *MemoryCounterStore) Cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, ent := range s.counters {
		if !now.Before(ent.counter.WindowStart.Add(ent.window)) {
			delete(s.counters, id)
		}
	}
}

// StartJanitor roda Cleanup a cada cleanupEvery até o ctx encerrar.
func (s *MemoryCounterStore) StartJanitor(ctx DoneContext) {
	startJanitor(ctx, s.cleanupEvery, s.Cleanup)
}
