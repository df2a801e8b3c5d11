package infra

import (
	"context"
	"maps"
	"sync"

	"summary-gateway/middleware/ratelimit/domain"
)

type Counters struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

func (c *Counters) add(allowed bool) {
	if allowed {
		c.Allowed++
		return
	}
	c.Denied++
}

// StatsSnapshot é a cópia exposta em GET /api/ratelimit/stats.
type StatsSnapshot struct {
	Total    Counters            `json:"total"`
	ByPolicy map[string]Counters `json:"by_policy"`
	ByRoute  map[string]Counters `json:"by_route"`
	ByKey    map[string]Counters `json:"by_key,omitempty"`
}

// MemoryStatsStore guarda contadores de decisões em memória.
//
// Não faz expiração; com trackKeys ligado cresce com o número de IPs.
type MemoryStatsStore struct {
	mu       sync.Mutex
	total    Counters
	byPolicy map[string]Counters
	byRoute  map[string]Counters
	byKey    map[string]Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byPolicy: make(map[string]Counters),
		byRoute:  make(map[string]Counters),
		byKey:    make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	policy := ev.Policy
	if policy == "" {
		policy = "global"
	}
	route := ev.Method + " " + ev.Path

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Allowed)

	c := s.byPolicy[policy]
	c.add(ev.Allowed)
	s.byPolicy[policy] = c

	r := s.byRoute[route]
	r.add(ev.Allowed)
	s.byRoute[route] = r

	if s.trackKeys {
		k := s.byKey[string(ev.Key)]
		k.add(ev.Allowed)
		s.byKey[string(ev.Key)] = k
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		Total:    s.total,
		ByPolicy: maps.Clone(s.byPolicy),
		ByRoute:  maps.Clone(s.byRoute),
	}
	if s.trackKeys {
		snap.ByKey = maps.Clone(s.byKey)
	}
	return snap
}

// Read implementa a leitura usada pela rota de estatísticas.
func (s *MemoryStatsStore) Read(context.Context) (StatsSnapshot, error) {
	return s.Snapshot(), nil
}
