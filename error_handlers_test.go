package unitrouter

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/GoCodeAlone/unitrouter/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failingUnit(t *testing.T, f *fixture) *Unit {
	t.Helper()
	require.NoError(t, f.router.Register(UnitConfig{
		Name:       "failing",
		ActiveWhen: func(*url.URL) bool { return false },
		Load:       func(context.Context, Props) (*Lifecycle, error) { return nil, errors.New("down") },
	}))
	return f.unit("failing")
}

func TestErrorHandlers_AddAndRemove(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	first, second := &errorSink{}, &errorSink{}
	removeFirst := f.router.AddErrorHandler(first.handle)
	f.router.AddErrorHandler(second.handle)
	u := failingUnit(t, f)

	f.router.load(context.Background(), u)
	assert.Len(t, first.list(), 1)
	assert.Len(t, second.list(), 1)

	removeFirst()
	removeFirst()
	f.router.load(context.Background(), u)
	assert.Len(t, first.list(), 1)
	assert.Len(t, second.list(), 2)
}

func TestErrorHandlers_PanicIsContained(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.router.AddErrorHandler(func(*UnitError) { panic("handler bug") })
	sink := f.collectErrors()
	u := failingUnit(t, f)

	f.router.load(context.Background(), u)
	assert.Len(t, sink.list(), 1)
	_, ok := f.logger.Find("Error handler panicked")
	assert.True(t, ok)
}

func TestErrorHandlers_LoggedWithoutHandlers(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	u := failingUnit(t, f)

	f.router.load(context.Background(), u)
	e, ok := f.logger.Find("Unit failed")
	require.True(t, ok)
	assert.Equal(t, "error", e.Level)
	kind, _ := e.Arg("kind")
	assert.Equal(t, KindLoad, kind)

	require.Eventually(t, func() bool {
		return len(f.events.ofType(EventTypeUnitFailed)) == 1
	}, time.Second, 10*time.Millisecond)
	failed := f.events.ofType(EventTypeUnitFailed)
	var data UnitFailedData
	require.NoError(t, failed[0].DataAs(&data))
	assert.Equal(t, "failing", data.Unit)
	assert.Equal(t, lifecycle.LoadError, data.NewStatus)
}

func TestTransformErr_ReusesClassifiedError(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	u := failingUnit(t, f)

	first := f.router.transformErr(errors.New("x"), u, PhaseMount, KindHook, lifecycle.SkipBecauseBroken)
	again := f.router.transformErr(fmt.Errorf("wrapped: %w", first), u, PhaseUnmount, KindHook, lifecycle.SkipBecauseBroken)
	assert.Same(t, first, again)
	assert.Same(t, first, u.Err())
}

func TestClassifyKind(t *testing.T) {
	t.Parallel()
	assert.Equal(t, KindTimeout, classifyKind(fmt.Errorf("w: %w", &TimeoutError{}), KindHook))
	assert.Equal(t, KindUser, classifyKind(fmt.Errorf("%w: boom", ErrHookPanicked), KindHook))
	assert.Equal(t, KindHook, classifyKind(errors.New("plain"), KindHook))
}

func TestUnitError_Error(t *testing.T) {
	t.Parallel()
	ue := &UnitError{Unit: "cart", Status: lifecycle.Mounting, Err: errors.New("boom")}
	assert.Equal(t, "application 'cart' died in status MOUNTING: boom", ue.Error())
	ue.Parcel = true
	assert.Equal(t, "parcel 'cart' died in status MOUNTING: boom", ue.Error())
}
