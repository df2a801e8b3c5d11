package infra

import (
	"context"
	"sync"

	"summary-gateway/middleware/ratelimit/domain"
)

// SemaphorePool é um SlotPool sobre channel bufferizado.
type SemaphorePool struct {
	sem chan struct{}
}

var _ domain.SlotPool = (*SemaphorePool)(nil)

func NewSemaphorePool(capacity int) *SemaphorePool {
	if capacity < 1 {
		capacity = 1
	}
	return &SemaphorePool{sem: make(chan struct{}, capacity)}
}

func (p *SemaphorePool) Acquire(ctx context.Context) (func(), bool) {
	// ctx já encerrado não disputa vaga livre
	if ctx.Err() != nil {
		return nil, false
	}
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, false
	}

	var once sync.Once
	return func() { once.Do(func() { <-p.sem }) }, true
}

func (p *SemaphorePool) InUse() int    { return len(p.sem) }
func (p *SemaphorePool) Capacity() int { return cap(p.sem) }
