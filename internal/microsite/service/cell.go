package service

import (
	"context"
	"sync"

	"github.com/smallbiznis/campus/internal/microsite/domain"
)

type cellKey struct{}

// cell holds the overlay for exactly one request.
type cell struct {
	mu      sync.RWMutex
	overlay domain.Overlay
}

func (c *cell) load() domain.Overlay {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.overlay
}

func (c *cell) store(o domain.Overlay) {
	c.mu.Lock()
	c.overlay = o
	c.mu.Unlock()
}

func (c *cell) clear() {
	c.store(domain.Overlay{})
}

func cellFrom(ctx context.Context) *cell {
	if ctx == nil {
		return nil
	}
	c, _ := ctx.Value(cellKey{}).(*cell)
	return c
}
