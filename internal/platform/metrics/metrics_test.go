package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/unitrouter"
	"github.com/GoCodeAlone/unitrouter/lifecycle"
)

type staticUnits []unitrouter.UnitInfo

func (s staticUnits) Units() []unitrouter.UnitInfo { return s }

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	srv := httptest.NewServer(c.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func event(t *testing.T, eventType string, data any) cloudevents.Event {
	t.Helper()
	ev := cloudevents.NewEvent()
	ev.SetID("1")
	ev.SetSource("test")
	ev.SetType(eventType)
	require.NoError(t, ev.SetData(cloudevents.ApplicationJSON, data))
	return ev
}

func TestCollector_Observe(t *testing.T) {
	t.Parallel()
	c := NewCollector()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	units := staticUnits{
		{Name: "navbar", Status: lifecycle.Mounted},
		{Name: "cart", Status: lifecycle.Mounted},
		{Name: "ads", Status: lifecycle.SkipBecauseBroken},
	}

	require.NoError(t, c.observe(event(t, unitrouter.EventTypeRouting, unitrouter.RoutingDetail{
		TotalChanges: 2, StartedAt: now.Add(-50 * time.Millisecond),
	}), units))
	require.NoError(t, c.observe(event(t, unitrouter.EventTypeRouting, unitrouter.RoutingDetail{}), units))
	require.NoError(t, c.observe(event(t, unitrouter.EventTypeRouting, unitrouter.RoutingDetail{
		NavigationIsCanceled: true, TotalChanges: 1,
	}), nil))
	require.NoError(t, c.observe(event(t, unitrouter.EventTypeUnitFailed, unitrouter.UnitFailedData{
		Unit: "ads", Kind: unitrouter.KindHook, Phase: unitrouter.PhaseMount,
	}), units))

	out := scrape(t, c)
	assert.Contains(t, out, `unitrouter_routing_passes_total{outcome="change"} 1`)
	assert.Contains(t, out, `unitrouter_routing_passes_total{outcome="no_change"} 1`)
	assert.Contains(t, out, `unitrouter_routing_passes_total{outcome="canceled"} 1`)
	assert.Contains(t, out, `unitrouter_unit_changes_total 3`)
	assert.Contains(t, out, `unitrouter_routing_pass_duration_seconds_count 1`)
	assert.Contains(t, out, `unitrouter_unit_failures_total{kind="`+string(unitrouter.KindHook)+`",phase="`+string(unitrouter.PhaseMount)+`"} 1`)
	assert.Contains(t, out, `unitrouter_units{status="MOUNTED"} 2`)
	assert.Contains(t, out, `unitrouter_units{status="SKIP_BECAUSE_BROKEN"} 1`)
	assert.Contains(t, out, `unitrouter_units_registered 3`)
}

func TestCollector_ObserveBadData(t *testing.T) {
	t.Parallel()
	c := NewCollector()
	ev := cloudevents.NewEvent()
	ev.SetType(unitrouter.EventTypeRouting)
	require.NoError(t, ev.SetData(cloudevents.ApplicationJSON, []byte("not json")))
	assert.Error(t, c.observe(ev, nil))
}

func TestCollector_WithRouter(t *testing.T) {
	t.Parallel()
	h, err := unitrouter.NewMemoryHistory("https://app.test/")
	require.NoError(t, err)
	r, err := unitrouter.New(h)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	c := NewCollector()
	require.NoError(t, r.RegisterObserver(c.Observer(r), EventTypes()...))
	noop := func(context.Context, unitrouter.Props) error { return nil }
	require.NoError(t, r.Register(unitrouter.UnitConfig{
		Name:       "home",
		ActiveWhen: unitrouter.Always,
		Load:       unitrouter.Static(&unitrouter.Lifecycle{Mount: unitrouter.Hooks(noop), Unmount: unitrouter.Hooks(noop)}),
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = r.Reroute(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, r.Start(ctx))
	_, err = r.Reroute(ctx, nil)
	require.NoError(t, err)

	out := scrape(t, c)
	assert.Contains(t, out, `unitrouter_routing_passes_total{outcome="change"} 1`)
	assert.Contains(t, out, `unitrouter_routing_passes_total{outcome="no_change"} 1`)
	assert.Contains(t, out, `unitrouter_units{status="MOUNTED"} 1`)
}
