package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"summary-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore grava as decisões do rate limit em hashes do Redis, para
// que várias réplicas do gateway somem no mesmo lugar:
//
//	<prefix>:total                 allowed|denied
//	<prefix>:policy                <policy>|allowed, <policy>|denied
//	<prefix>:route                 <METHOD path>|allowed, ...
//	<prefix>:minute:<yyyymmddHHMM> allowed|denied  (com TTL)
//	<prefix>:key:<key>             allowed|denied  (opcional, com TTL)
type RedisStatsStore struct {
	rdb *redis.Client

	prefix string
	// total, policy e route são cumulativos; ttl vale para minute e key.
	ttl time.Duration

	bucket string // "minute" (padrão) ou "none"

	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb *redis.Client, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "ratelimit:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const (
	fieldAllowed = "allowed"
	fieldDenied  = "denied"
	// separador entre dimensão e campo; não aparece em IDs de política nem
	// em paths de rota
	fieldSep = "|"
)

func statsField(allowed bool) string {
	if allowed {
		return fieldAllowed
	}
	return fieldDenied
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	field := statsField(ev.Allowed)

	policy := ev.Policy
	if policy == "" {
		policy = "global"
	}
	route := ev.Method + " " + ev.Path

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", field, 1)
	pipe.HIncrBy(ctx, s.prefix+":policy", policy+fieldSep+field, 1)
	pipe.HIncrBy(ctx, s.prefix+":route", route+fieldSep+field, 1)

	if s.bucket == "minute" {
		bucketKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
		pipe.HIncrBy(ctx, bucketKey, field, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, bucketKey, s.ttl)
		}
	}

	if s.trackKeys {
		if k := strings.TrimSpace(string(ev.Key)); k != "" {
			keyKey := s.prefix + ":key:" + k
			pipe.HIncrBy(ctx, keyKey, field, 1)
			if s.ttl > 0 {
				pipe.Expire(ctx, keyKey, s.ttl)
			}
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis stats: %w", err)
	}
	return nil
}

// Read monta o snapshot a partir dos hashes cumulativos. Contadores por
// chave ficam de fora (exigiriam SCAN).
func (s *RedisStatsStore) Read(ctx context.Context) (StatsSnapshot, error) {
	pipe := s.rdb.Pipeline()
	total := pipe.HGetAll(ctx, s.prefix+":total")
	policy := pipe.HGetAll(ctx, s.prefix+":policy")
	route := pipe.HGetAll(ctx, s.prefix+":route")
	if _, err := pipe.Exec(ctx); err != nil {
		return StatsSnapshot{}, fmt.Errorf("redis stats read: %w", err)
	}

	snap := StatsSnapshot{
		ByPolicy: foldCounters(policy.Val()),
		ByRoute:  foldCounters(route.Val()),
	}
	for field, v := range total.Val() {
		snap.Total.set(field, v)
	}
	return snap, nil
}

// foldCounters converte {"dim|allowed": "3", "dim|denied": "1"} em
// {"dim": {3, 1}}. Campos fora do formato são ignorados.
func foldCounters(h map[string]string) map[string]Counters {
	out := make(map[string]Counters)
	for f, v := range h {
		dim, field, ok := strings.Cut(f, fieldSep)
		if !ok {
			continue
		}
		c := out[dim]
		c.set(field, v)
		out[dim] = c
	}
	return out
}

func (c *Counters) set(field, v string) {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return
	}
	switch field {
	case fieldAllowed:
		c.Allowed = n
	case fieldDenied:
		c.Denied = n
	}
}
