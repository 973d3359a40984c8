package unitrouter

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type navRecorder struct {
	mu     sync.Mutex
	events []NavigationEvent
}

func (n *navRecorder) record(ev NavigationEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *navRecorder) list() []NavigationEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]NavigationEvent(nil), n.events...)
}

func TestNewMemoryHistory(t *testing.T) {
	t.Parallel()

	_, err := NewMemoryHistory("/relative")
	assert.Error(t, err)

	_, err = NewMemoryHistory("://bad")
	assert.Error(t, err)

	h, err := NewMemoryHistory(testOrigin + "/start?x=1")
	require.NoError(t, err)
	assert.Equal(t, "/start", h.Location().Path)
	assert.Equal(t, "x=1", h.Location().RawQuery)
}

func TestMemoryHistory_LocationIsACopy(t *testing.T) {
	t.Parallel()
	h, err := NewMemoryHistory(testOrigin + "/")
	require.NoError(t, err)

	loc := h.Location()
	loc.Path = "/mutated"
	assert.Equal(t, "/", h.Location().Path)
}

func TestMemoryHistory_PushBackForward(t *testing.T) {
	t.Parallel()
	h, err := NewMemoryHistory(testOrigin + "/")
	require.NoError(t, err)
	rec := &navRecorder{}
	h.Subscribe(rec.record)

	require.NoError(t, h.Push("/a"))
	require.NoError(t, h.Push("/b"))
	require.NoError(t, h.Back())
	assert.Equal(t, "/a", h.Location().Path)
	require.NoError(t, h.Forward())
	assert.Equal(t, "/b", h.Location().Path)
	require.NoError(t, h.Forward())
	assert.Equal(t, "/b", h.Location().Path, "forward at the end does nothing")

	require.NoError(t, h.Back())
	require.NoError(t, h.Push("/c"))
	require.NoError(t, h.Forward())
	assert.Equal(t, "/c", h.Location().Path, "push drops forward entries")

	events := rec.list()
	require.Len(t, events, 6)
	assert.Equal(t, NavigationPush, events[0].Type)
	assert.Equal(t, testOrigin+"/", events[0].From)
	assert.Equal(t, testOrigin+"/a", events[0].To)
	assert.Equal(t, NavigationPop, events[2].Type)
}

func TestMemoryHistory_Replace(t *testing.T) {
	t.Parallel()
	h, err := NewMemoryHistory(testOrigin + "/")
	require.NoError(t, err)
	require.NoError(t, h.Push("/a"))
	require.NoError(t, h.Replace("/b"))
	require.NoError(t, h.Back())
	assert.Equal(t, "/", h.Location().Path)
}

func TestMemoryHistory_Navigate(t *testing.T) {
	t.Parallel()
	h, err := NewMemoryHistory(testOrigin + "/page")
	require.NoError(t, err)
	rec := &navRecorder{}
	unsubscribe := h.Subscribe(rec.record)

	require.NoError(t, h.Navigate("#section"))
	assert.Equal(t, "section", h.Location().Fragment)

	require.NoError(t, h.Navigate("/other"))
	assert.Equal(t, "/other", h.Location().Path)

	require.NoError(t, h.Navigate(testOrigin+"/absolute"))
	assert.Equal(t, "/absolute", h.Location().Path)

	err = h.Navigate("https://elsewhere.test/")
	assert.ErrorIs(t, err, ErrCrossOriginNavigation)
	assert.Equal(t, "/absolute", h.Location().Path)

	events := rec.list()
	require.Len(t, events, 3)
	assert.Equal(t, NavigationFragment, events[0].Type)
	assert.Equal(t, NavigationPush, events[1].Type)

	unsubscribe()
	require.NoError(t, h.Navigate("/quiet"))
	assert.Len(t, rec.list(), 3)

	require.NoError(t, h.Back())
	assert.Equal(t, "/absolute", h.Location().Path)
}

func TestMemoryHistory_URLRerouteOnly(t *testing.T) {
	t.Parallel()
	h, err := NewMemoryHistory(testOrigin + "/")
	require.NoError(t, err)
	h.URLRerouteOnly = true
	rec := &navRecorder{}
	h.Subscribe(rec.record)

	require.NoError(t, h.Replace("/"))
	assert.Empty(t, rec.list())

	require.NoError(t, h.Replace("/next"))
	assert.Len(t, rec.list(), 1)
}

func TestMemoryHistory_SubscribersInOrder(t *testing.T) {
	t.Parallel()
	h, err := NewMemoryHistory(testOrigin + "/")
	require.NoError(t, err)

	var order []int
	for i := range 3 {
		h.Subscribe(func(NavigationEvent) { order = append(order, i) })
	}
	require.NoError(t, h.Push("/x"))
	assert.Equal(t, []int{0, 1, 2}, order)
}
