package unitrouter

import (
	"context"
	"fmt"
	"strconv"

	"github.com/GoCodeAlone/unitrouter/lifecycle"
)

// ParcelConfig describes a parcel to mount. Either Bundle or Load must be
// set; Bundle wins when both are.
type ParcelConfig struct {
	Name        string
	Bundle      *Lifecycle
	Load        LoadFunc
	CustomProps map[string]any
}

// Parcel is a unit mounted imperatively by another unit (or by the caller
// directly). Its failures are always returned, never reported.
type Parcel struct {
	id    string
	seq   int64
	unit  *Unit
	owner *Unit
}

// ID returns the router-unique parcel id.
func (p *Parcel) ID() string { return p.id }

// Name returns the parcel name.
func (p *Parcel) Name() string { return p.unit.name }

// Status returns the parcel status.
func (p *Parcel) Status() lifecycle.Status { return p.unit.Status() }

// Unmount tears the parcel down and detaches it from its owner.
func (p *Parcel) Unmount(ctx context.Context) error {
	if p.unit.Status() != lifecycle.Mounted {
		return fmt.Errorf("%w: cannot unmount parcel '%s'", ErrParcelNotMounted, p.unit.name)
	}
	_, err := p.unit.router.unmount(ctx, p.unit, true)
	if p.owner != nil {
		p.owner.removeChild(p.id)
	}
	return err
}

// Update replaces the parcel's custom props and runs its update hooks.
// A nil map keeps the current props.
func (p *Parcel) Update(ctx context.Context, custom map[string]any) error {
	if !p.unit.hasHooks(PhaseUpdate) {
		return fmt.Errorf("%w: parcel '%s' has no update hooks", ErrInvalidBundle, p.unit.name)
	}
	if custom != nil {
		p.unit.mu.Lock()
		p.unit.custom = custom
		p.unit.mu.Unlock()
	}
	return p.unit.router.update(ctx, p.unit)
}

// MountParcel mounts a parcel owned by the unit these props belong to. The
// owner must be mounting or mounted; the parcel is unmounted with it.
func (p Props) MountParcel(ctx context.Context, cfg ParcelConfig) (*Parcel, error) {
	if p.router == nil {
		return nil, ErrRouterClosed
	}
	if p.owner != nil {
		switch p.owner.Status() {
		case lifecycle.Mounting, lifecycle.Mounted, lifecycle.Updating:
		default:
			return nil, fmt.Errorf("%w: owner '%s' is %s", ErrOwnerNotMounted, p.owner.name, p.owner.Status())
		}
	}
	return p.router.mountParcel(ctx, p.owner, cfg)
}

// MountParcel mounts a parcel with no owner. The caller must unmount it.
func (r *Router) MountParcel(ctx context.Context, cfg ParcelConfig) (*Parcel, error) {
	return r.mountParcel(ctx, nil, cfg)
}

func (r *Router) mountParcel(ctx context.Context, owner *Unit, cfg ParcelConfig) (*Parcel, error) {
	load := cfg.Load
	if cfg.Bundle != nil {
		load = Static(cfg.Bundle)
	}
	if load == nil {
		return nil, ErrNilParcelBundle
	}

	seq := r.parcelSeq.Add(1)
	id := "parcel-" + strconv.FormatInt(seq, 10)
	name := cfg.Name
	if name == "" {
		name = id
	}

	u := newUnit(r, UnitConfig{Name: name, Load: load, ActiveWhen: Always, CustomProps: cfg.CustomProps})
	u.parent = owner
	u.parcelID = id
	parcel := &Parcel{id: id, seq: seq, unit: u, owner: owner}

	if owner != nil {
		owner.addChild(parcel)
	}
	detach := func() {
		if owner != nil {
			owner.removeChild(id)
		}
	}

	r.load(ctx, u)
	if u.Status() != lifecycle.NotBootstrapped {
		detach()
		if ue := u.Err(); ue != nil {
			return nil, fmt.Errorf("%w: %w", ErrParcelLoadFailed, ue)
		}
		return nil, fmt.Errorf("%w: parcel '%s' is %s", ErrParcelLoadFailed, name, u.Status())
	}
	if _, err := r.bootstrap(ctx, u, true); err != nil {
		detach()
		return nil, err
	}
	if _, err := r.mount(ctx, u, true); err != nil {
		detach()
		return nil, err
	}
	if u.Status() != lifecycle.Mounted {
		detach()
		return nil, fmt.Errorf("%w: parcel '%s' is %s", ErrParcelMountFailed, name, u.Status())
	}
	r.logger.Debug("Parcel mounted", "parcel", name, "id", id, "owner", ownerName(owner))
	return parcel, nil
}

func ownerName(u *Unit) string {
	if u == nil {
		return ""
	}
	return u.name
}
