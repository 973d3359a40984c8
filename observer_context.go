package unitrouter

import (
	"context"
	"sync/atomic"
)

// internal key types to avoid collisions
type (
	syncNotifyCtxKey struct{}
	cancelNavCtxKey  struct{}
)

// WithSynchronousNotification marks the context to request synchronous
// observer delivery. Routing events are always delivered this way.
func WithSynchronousNotification(ctx context.Context) context.Context {
	return context.WithValue(ctx, syncNotifyCtxKey{}, true)
}

// IsSynchronousNotification reports whether ctx requests synchronous delivery.
func IsSynchronousNotification(ctx context.Context) bool {
	v, _ := ctx.Value(syncNotifyCtxKey{}).(bool)
	return v
}

func withSyncNotification(ctx context.Context) context.Context {
	if IsSynchronousNotification(ctx) {
		return ctx
	}
	return WithSynchronousNotification(ctx)
}

type navigationCanceller struct {
	canceled atomic.Bool
}

func withNavigationCanceller(ctx context.Context, c *navigationCanceller) context.Context {
	return context.WithValue(ctx, cancelNavCtxKey{}, c)
}

// CancelNavigation cancels the routing pass that is delivering the current
// before-routing event. It reports false when called with any other context.
// A cancelled pass changes no unit and navigates back to the previous URL.
func CancelNavigation(ctx context.Context) bool {
	c, ok := ctx.Value(cancelNavCtxKey{}).(*navigationCanceller)
	if !ok || c == nil {
		return false
	}
	c.canceled.Store(true)
	return true
}
