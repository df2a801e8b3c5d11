package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"summary-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// RedisCounterStore guarda os contadores de janela fixa no Redis, para
// quando mais de uma instância do gateway precisa compartilhar as cotas.
//
// Cada (política, chave) vira uma chave com TTL igual à janela: o TTL só é
// definido no primeiro INCR (EXPIRE NX), então a janela não desliza.
type RedisCounterStore struct {
	rdb    *redis.Client
	prefix string
}

type RedisCounterOption func(*RedisCounterStore)

func WithCounterPrefix(prefix string) RedisCounterOption {
	return func(s *RedisCounterStore) { s.prefix = strings.Trim(prefix, ":") }
}

func NewRedisCounterStore(rdb *redis.Client, opts ...RedisCounterOption) *RedisCounterStore {
	s := &RedisCounterStore{rdb: rdb, prefix: "ratelimit:window"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ domain.CounterStore = (*RedisCounterStore)(nil)

func (s *RedisCounterStore) counterKey(key domain.Key, policyID string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, policyID, strings.ToLower(strings.TrimSpace(string(key))))
}

// Take implementa domain.CounterStore.
//
// O INCR acontece mesmo acima do limite; o valor devolvido em Counter.Count
// é limitado a MaxRequests, que é o que de fato foi admitido.
func (s *RedisCounterStore) Take(ctx context.Context, key domain.Key, p domain.Policy, now time.Time) (domain.Counter, bool, error) {
	k := s.counterKey(key, p.ID)

	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, p.Window)
	pttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.Counter{}, false, fmt.Errorf("redis counter %s: %w", k, err)
	}

	ttl := pttl.Val()
	if ttl < 0 || ttl > p.Window {
		ttl = p.Window
	}

	count := incr.Val()
	c := domain.Counter{
		Key:         key,
		PolicyID:    p.ID,
		WindowStart: now.Add(ttl - p.Window),
		Count:       int(min(count, int64(p.MaxRequests))),
	}
	return c, count <= int64(p.MaxRequests), nil
}
