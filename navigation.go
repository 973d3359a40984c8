package unitrouter

import (
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"
)

// Navigation event types.
const (
	NavigationPush     = "push"
	NavigationReplace  = "replace"
	NavigationPop      = "pop"
	NavigationFragment = "fragment"
	NavigationManual   = "manual"
)

// NavigationEvent describes a location change.
type NavigationEvent struct {
	Type string    `json:"type"`
	From string    `json:"from"`
	To   string    `json:"to"`
	Time time.Time `json:"time"`
}

// ConditionSource is where the router reads the current location from and
// how it learns about changes.
type ConditionSource interface {
	// Location returns a copy of the current location.
	Location() *url.URL

	// Navigate moves to target, resolved against the current location.
	Navigate(target string) error

	// Subscribe calls fn after every location change. It returns a function
	// that removes the subscription.
	Subscribe(fn func(NavigationEvent)) (unsubscribe func())
}

// MemoryHistory is an in-process ConditionSource with a back stack.
type MemoryHistory struct {
	// URLRerouteOnly suppresses notifications for changes that leave the
	// URL as it was.
	URLRerouteOnly bool

	mu      sync.RWMutex
	entries []*url.URL
	index   int
	subs    map[int]func(NavigationEvent)
	nextSub int
	now     func() time.Time
}

// NewMemoryHistory starts a history at initial, which must be absolute.
func NewMemoryHistory(initial string) (*MemoryHistory, error) {
	u, err := url.Parse(initial)
	if err != nil {
		return nil, fmt.Errorf("parse initial location: %w", err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("initial location %q is not absolute", initial)
	}
	return &MemoryHistory{
		entries: []*url.URL{u},
		subs:    make(map[int]func(NavigationEvent)),
		now:     time.Now,
	}, nil
}

// Location returns a copy of the current location.
func (h *MemoryHistory) Location() *url.URL {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c := *h.entries[h.index]
	return &c
}

// Push adds target to the history and moves to it.
func (h *MemoryHistory) Push(target string) error {
	return h.change(NavigationPush, target, func(dest *url.URL) {
		h.entries = append(h.entries[:h.index+1], dest)
		h.index++
	})
}

// Replace swaps the current entry for target.
func (h *MemoryHistory) Replace(target string) error {
	return h.change(NavigationReplace, target, func(dest *url.URL) {
		h.entries[h.index] = dest
	})
}

// Back moves one entry back. It does nothing at the start of the history.
func (h *MemoryHistory) Back() error {
	return h.step(-1)
}

// Forward moves one entry forward. It does nothing at the end.
func (h *MemoryHistory) Forward() error {
	return h.step(1)
}

func (h *MemoryHistory) step(delta int) error {
	h.mu.Lock()
	next := h.index + delta
	if next < 0 || next >= len(h.entries) {
		h.mu.Unlock()
		return nil
	}
	from := h.entries[h.index].String()
	h.index = next
	to := h.entries[h.index].String()
	h.mu.Unlock()

	h.notify(NavigationEvent{Type: NavigationPop, From: from, To: to, Time: h.now()})
	return nil
}

// Navigate resolves target against the current location. A bare fragment or
// a target that only differs in its fragment replaces the current entry;
// anything else is pushed. Targets on another origin are rejected.
func (h *MemoryHistory) Navigate(target string) error {
	cur := h.Location()
	dest, err := cur.Parse(target)
	if err != nil {
		return fmt.Errorf("parse navigation target: %w", err)
	}
	if dest.Scheme != cur.Scheme || dest.Host != cur.Host {
		return fmt.Errorf("%w: %s", ErrCrossOriginNavigation, dest.Redacted())
	}
	if dest.Path == cur.Path && dest.RawQuery == cur.RawQuery {
		return h.change(NavigationFragment, target, func(d *url.URL) {
			h.entries[h.index] = d
		})
	}
	return h.Push(target)
}

func (h *MemoryHistory) change(kind, target string, apply func(*url.URL)) error {
	h.mu.Lock()
	cur := h.entries[h.index]
	dest, err := cur.Parse(target)
	if err != nil {
		h.mu.Unlock()
		return fmt.Errorf("parse navigation target: %w", err)
	}
	from := cur.String()
	apply(dest)
	to := dest.String()
	h.mu.Unlock()

	if h.URLRerouteOnly && from == to {
		return nil
	}
	h.notify(NavigationEvent{Type: kind, From: from, To: to, Time: h.now()})
	return nil
}

// Subscribe registers fn for location changes.
func (h *MemoryHistory) Subscribe(fn func(NavigationEvent)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextSub
	h.nextSub++
	h.subs[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs, id)
	}
}

func (h *MemoryHistory) notify(ev NavigationEvent) {
	h.mu.RLock()
	ids := make([]int, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(NavigationEvent), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, h.subs[id])
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
