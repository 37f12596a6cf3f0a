package admission

import (
	"context"
	"sync"

	apperrors "github.com/photorestore/restore-server-go/internal/errors"
)

// MemoryController keeps in-flight counts in a process-local map. It is
// correct only when a single process serves all requests for a session.
type MemoryController struct {
	mu       sync.Mutex
	inFlight map[string]int
}

func NewMemoryController() *MemoryController {
	return &MemoryController{
		inFlight: make(map[string]int),
	}
}

func (c *MemoryController) TryAcquire(_ context.Context, token string, limit int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := c.inFlight[token]
	if count >= limit {
		return apperrors.AdmissionDenied(limit)
	}
	c.inFlight[token] = count + 1
	return nil
}

func (c *MemoryController) Release(_ context.Context, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	count, ok := c.inFlight[token]
	if !ok {
		return
	}
	if count <= 1 {
		delete(c.inFlight, token)
		return
	}
	c.inFlight[token] = count - 1
}

// InFlight returns the number of slots currently held for token.
func (c *MemoryController) InFlight(token string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight[token]
}

// Len returns the number of tokens holding at least one slot.
func (c *MemoryController) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inFlight)
}
