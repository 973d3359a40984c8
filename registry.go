package unitrouter

import (
	"context"
	"fmt"
	"sync"
)

// registry holds registered applications in registration order plus the
// pending unload requests keyed by unit name.
type registry struct {
	mu      sync.RWMutex
	units   []*Unit
	byName  map[string]*Unit
	unloads map[string]*unloadRequest
}

func newRegistry() *registry {
	return &registry{
		byName:  make(map[string]*Unit),
		unloads: make(map[string]*unloadRequest),
	}
}

func (r *registry) add(u *Unit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[u.name]; exists {
		return fmt.Errorf("%w: %s", ErrUnitAlreadyRegistered, u.name)
	}
	r.units = append(r.units, u)
	r.byName[u.name] = u
	return nil
}

func (r *registry) get(name string) (*Unit, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byName[name]
	return u, ok
}

func (r *registry) remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[name]; !ok {
		return false
	}
	delete(r.byName, name)
	delete(r.unloads, name)
	for i, u := range r.units {
		if u.name == name {
			r.units = append(r.units[:i:i], r.units[i+1:]...)
			break
		}
	}
	return true
}

// snapshot returns the units in registration order.
func (r *registry) snapshot() []*Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Unit(nil), r.units...)
}

// unloadRequest is shared by every caller asking to unload the same unit
// while an earlier request is still open.
type unloadRequest struct {
	done chan struct{}
	once sync.Once
	err  error
}

func (q *unloadRequest) finish(err error) {
	q.once.Do(func() {
		q.err = err
		close(q.done)
	})
}

func (q *unloadRequest) wait(ctx context.Context) error {
	select {
	case <-q.done:
		return q.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// requestUnload returns the open request for name, creating one if needed.
func (r *registry) requestUnload(name string) (*unloadRequest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if q, ok := r.unloads[name]; ok {
		return q, false
	}
	q := &unloadRequest{done: make(chan struct{})}
	r.unloads[name] = q
	return q, true
}

func (r *registry) pendingUnload(name string) *unloadRequest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.unloads[name]
}

// settle finishes q and forgets it if it is still the open request for name.
func (r *registry) settle(name string, q *unloadRequest, err error) {
	r.mu.Lock()
	if r.unloads[name] == q {
		delete(r.unloads, name)
	}
	r.mu.Unlock()
	q.finish(err)
}

// finishUnload closes and forgets the open request for name.
func (r *registry) finishUnload(name string, err error) {
	r.mu.Lock()
	q, ok := r.unloads[name]
	if ok {
		delete(r.unloads, name)
	}
	r.mu.Unlock()
	if ok {
		q.finish(err)
	}
}
