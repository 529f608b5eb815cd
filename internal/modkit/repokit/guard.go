package repokit

import (
	"context"
	"fmt"
	"time"
)

// Guarder verifies its backends answer
type Guarder interface {
	Guard(context.Context) error
}

// MustGuard panics when g does not pass its guard within timeout
func MustGuard(ctx context.Context, g Guarder, timeout time.Duration) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := g.Guard(ctx); err != nil {
		panic(fmt.Errorf("dependency guard failed: %w", err))
	}
}
