package unitrouter

import (
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/GoCodeAlone/unitrouter/lifecycle"
)

// UnitConfig describes a unit at registration.
type UnitConfig struct {
	Name        string
	Load        LoadFunc
	ActiveWhen  ActivityFunc
	CustomProps map[string]any
}

func (c UnitConfig) validate() error {
	switch {
	case c.Name == "":
		return ErrInvalidUnitName
	case c.Load == nil:
		return ErrNilLoadFunc
	case c.ActiveWhen == nil:
		return ErrNilActivityFunc
	}
	return nil
}

// Unit is a registered application or a parcel. All status changes go
// through its mutex so a precondition check and the move into the
// transitional status happen together.
type Unit struct {
	name       string
	router     *Router
	load       LoadFunc
	activeWhen ActivityFunc
	parent     *Unit
	parcelID   string

	mu            sync.Mutex
	status        lifecycle.Status
	custom        map[string]any
	bundle        *Lifecycle
	timeouts      Timeouts
	loadErrorTime time.Time
	lastErr       *UnitError
	children      map[string]*Parcel
}

func newUnit(r *Router, cfg UnitConfig) *Unit {
	return &Unit{
		name:       cfg.Name,
		router:     r,
		load:       cfg.Load,
		activeWhen: cfg.ActiveWhen,
		custom:     cfg.CustomProps,
		status:     lifecycle.NotLoaded,
		timeouts:   r.timeouts,
	}
}

// Name returns the unit name.
func (u *Unit) Name() string { return u.name }

// Status returns the current status.
func (u *Unit) Status() lifecycle.Status {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.status
}

// Err returns the last classified failure, if any.
func (u *Unit) Err() *UnitError {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lastErr
}

// IsParcel reports whether the unit was created through MountParcel.
func (u *Unit) IsParcel() bool { return u.parcelID != "" }

func (u *Unit) kind() string {
	if u.IsParcel() {
		return "parcel"
	}
	return "application"
}

// key identifies the unit for single-flight loading.
func (u *Unit) key() string {
	if u.IsParcel() {
		return "parcel:" + u.parcelID
	}
	return "app:" + u.name
}

func (u *Unit) props() Props {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.propsLocked()
}

func (u *Unit) propsLocked() Props {
	return Props{Name: u.name, Custom: u.custom, router: u.router, owner: u}
}

// phaseInput snapshots what a supervised phase needs.
func (u *Unit) phaseInput(phase Phase) ([]HookFunc, TimeoutPolicy, Props) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.bundle.hooks(phase), u.timeouts.For(phase), u.propsLocked()
}

func (u *Unit) hasHooks(phase Phase) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.bundle.hooks(phase)) > 0
}

// setStatusLocked moves the unit and records the move. Quarantine is final
// and repeated moves to the same status are dropped.
func (u *Unit) setStatusLocked(to lifecycle.Status) lifecycle.Status {
	from := u.status
	if from == to || from.IsTerminal() {
		return from
	}
	u.status = to
	if u.router.journal != nil {
		u.router.journal.Record(u.name, from, to)
	}
	u.router.logger.Debug("Unit status changed", "unit", u.name, "kind", u.kind(), "from", from, "to", to)
	return from
}

func (u *Unit) setStatus(to lifecycle.Status) lifecycle.Status {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.setStatusLocked(to)
}

// enter moves the unit into to when its status is one of from. It returns
// the previous status and whether the move happened.
func (u *Unit) enter(to lifecycle.Status, from ...lifecycle.Status) (lifecycle.Status, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, s := range from {
		if u.status == s {
			u.setStatusLocked(to)
			return s, true
		}
	}
	return u.status, false
}

// advance completes a transition started by enter. It does nothing when
// something else (quarantine) moved the unit in the meantime.
func (u *Unit) advance(from, to lifecycle.Status) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.status != from {
		return false
	}
	u.setStatusLocked(to)
	return true
}

func (u *Unit) shouldRetryLoad(now time.Time, backoff time.Duration) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.status == lifecycle.LoadError && now.Sub(u.loadErrorTime) >= backoff
}

// stripHooks forgets the loaded bundle so the next load starts fresh.
func (u *Unit) stripHooks() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.bundle = nil
	u.timeouts = u.router.timeouts
}

func (u *Unit) addChild(p *Parcel) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.children == nil {
		u.children = make(map[string]*Parcel)
	}
	u.children[p.id] = p
}

func (u *Unit) removeChild(id string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.children, id)
}

// liveChildren returns the child parcels ordered by id.
func (u *Unit) liveChildren() []*Parcel {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]*Parcel, 0, len(u.children))
	for _, p := range u.children {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// isActive evaluates the activity function. A panic quarantines the unit.
func (u *Unit) isActive(loc *url.URL) (active bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			active = false
			err = fmt.Errorf("%w: %v", ErrActivityPanicked, rec)
		}
	}()
	return u.activeWhen(loc), nil
}

// UnitInfo is a read-only snapshot of a unit.
type UnitInfo struct {
	Name      string           `json:"name"`
	Status    lifecycle.Status `json:"status"`
	Parcels   int              `json:"parcels"`
	LastError string           `json:"lastError,omitempty"`
	ErrorKind ErrorKind        `json:"errorKind,omitempty"`
}

func (u *Unit) info() UnitInfo {
	u.mu.Lock()
	defer u.mu.Unlock()
	info := UnitInfo{Name: u.name, Status: u.status, Parcels: len(u.children)}
	if u.lastErr != nil {
		info.LastError = u.lastErr.Error()
		info.ErrorKind = u.lastErr.Kind
	}
	return info
}
