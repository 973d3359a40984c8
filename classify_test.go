package unitrouter

import (
	"context"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GoCodeAlone/unitrouter/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_PanickingPredicateDuringTransition(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	sink := f.collectErrors()

	var armed atomic.Bool
	entered, release := make(chan struct{}), make(chan struct{})
	require.NoError(t, f.router.Register(UnitConfig{
		Name: "home",
		ActiveWhen: func(loc *url.URL) bool {
			if armed.Load() {
				panic("predicate bug")
			}
			return true
		},
		Load: Static(&Lifecycle{
			Mount: Hooks(noop),
			Unmount: Hooks(func(context.Context, Props) error {
				close(entered)
				<-release
				return nil
			}),
		}),
	}))
	f.start()
	u := f.unit("home")
	require.Equal(t, lifecycle.Mounted, u.Status())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.router.unmount(context.Background(), u, false)
	}()
	<-entered
	require.Equal(t, lifecycle.Unmounting, u.Status())

	armed.Store(true)
	c := f.router.classify(context.Background(), f.router.Location())
	assert.True(t, c.empty())
	assert.Equal(t, lifecycle.SkipBecauseBroken, u.Status())

	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("unmount did not return")
	}
	assert.Equal(t, lifecycle.SkipBecauseBroken, u.Status(), "quarantine is final")

	reported := sink.list()
	require.Len(t, reported, 1)
	assert.Equal(t, KindActivation, reported[0].Kind)
	assert.Empty(t, f.router.Journal().Illegal())
}

func TestClassify_SkipsQuarantinedUnits(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	var calls atomic.Int32
	require.NoError(t, f.router.Register(UnitConfig{
		Name: "broken",
		ActiveWhen: func(*url.URL) bool {
			calls.Add(1)
			return true
		},
		Load: func(context.Context, Props) (*Lifecycle, error) { panic("bad bundle") },
	}))
	f.settle()
	require.Equal(t, lifecycle.SkipBecauseBroken, f.status("broken"))

	before := calls.Load()
	c := f.router.classify(context.Background(), f.router.Location())
	assert.True(t, c.empty())
	assert.Equal(t, before, calls.Load())
}
