// Package admission bounds how many processing requests one session may have
// in flight at once.
package admission

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Controller is a per-session concurrency gate.
//
// TryAcquire either takes one slot for token or fails with an
// ADMISSION_DENIED AppError without taking anything. Every successful
// TryAcquire must be paired with exactly one Release. Releasing a token that
// holds no slots is a no-op.
type Controller interface {
	TryAcquire(ctx context.Context, token string, limit int) error
	Release(ctx context.Context, token string)
}

// Guard runs fn while holding one admission slot for token. The slot is
// released on every exit path, including errors, context expiry and panics.
// A denied acquisition returns immediately without calling fn.
func Guard(ctx context.Context, c Controller, token string, limit int, fn func(ctx context.Context) error) error {
	if err := c.TryAcquire(ctx, token, limit); err != nil {
		return err
	}
	defer func() {
		// Release on a fresh context: ctx may already be cancelled and the slot
		// still has to be returned.
		c.Release(context.WithoutCancel(ctx), token)
		log.Debug().Str("sessionToken", token).Msg("admission slot released")
	}()

	return fn(ctx)
}
