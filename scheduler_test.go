package unitrouter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRerouteScheduler_InvalidSpec(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, err := NewRerouteScheduler(f.router, "every now and then")
	assert.Error(t, err)
}

func TestRerouteScheduler_Tick(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.register("home", "/")
	f.start()
	before := len(f.events.ofType(EventTypeRouting))

	s, err := NewRerouteScheduler(f.router, "@every 1h")
	require.NoError(t, err)
	s.tick()

	assert.Len(t, f.events.ofType(EventTypeRouting), before+1)
}

func TestRerouteScheduler_StartStop(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.register("home", "/")
	f.start()

	s, err := NewRerouteScheduler(f.router, "@every 1s")
	require.NoError(t, err)
	require.NoError(t, s.Start())
	require.NoError(t, s.Start())

	before := len(f.events.ofType(EventTypeRouting))
	require.Eventually(t, func() bool {
		return len(f.events.ofType(EventTypeRouting)) > before
	}, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
}

func TestRerouteScheduler_TickAfterClose(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	s, err := NewRerouteScheduler(f.router, "@every 1h")
	require.NoError(t, err)
	require.NoError(t, f.router.Close())

	s.tick()
	_, ok := f.logger.Find("Scheduled reroute failed")
	assert.True(t, ok)
}
