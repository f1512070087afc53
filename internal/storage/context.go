package storage

import (
	"context"
	"time"
)

// DefaultQueryTimeout caps any single database operation. The charge path
// sits between a POS tap and a shopper staring at signage, so a hung query
// must fail fast.
const DefaultQueryTimeout = 5 * time.Second

// withQueryTimeout adds the default deadline unless the caller already set
// a tighter one.
func withQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, DefaultQueryTimeout)
}
