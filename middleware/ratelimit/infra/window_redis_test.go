package infra

import (
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestRedisCounterStore_KeyIsPartitionedByPolicy(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer func() { _ = rdb.Close() }()

	s := NewRedisCounterStore(rdb, WithCounterPrefix(":rl:"))

	summarize := s.counterKey(" 10.0.0.1 ", "generate-summary")
	share := s.counterKey("10.0.0.1", "share-summary")

	if summarize != "rl:generate-summary:10.0.0.1" {
		t.Fatalf("unexpected summarize key %q", summarize)
	}
	if share != "rl:share-summary:10.0.0.1" {
		t.Fatalf("unexpected share key %q", share)
	}
}
