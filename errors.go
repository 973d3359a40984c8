package unitrouter

import (
	"errors"
	"fmt"

	"github.com/GoCodeAlone/unitrouter/lifecycle"
)

// Router errors
var (
	// Registration errors
	ErrUnitAlreadyRegistered = errors.New("unit already registered")
	ErrUnitNotFound          = errors.New("unit not found")
	ErrInvalidUnitName       = errors.New("unit name must be a non-empty string")
	ErrNilLoadFunc           = errors.New("unit load function is nil")
	ErrNilActivityFunc       = errors.New("unit activity function is nil")

	// Lifecycle errors
	ErrInvalidBundle      = errors.New("invalid lifecycle bundle")
	ErrInvalidTimeouts    = errors.New("invalid timeout configuration")
	ErrLoaderPanicked     = errors.New("load function panicked")
	ErrHookPanicked       = errors.New("lifecycle hook panicked")
	ErrActivityPanicked   = errors.New("activity function panicked")
	ErrChildUnmountFailed = errors.New("child parcels failed to unmount")
	ErrUnitBroken         = errors.New("unit is quarantined")

	// Parcel errors
	ErrParcelNotMounted  = errors.New("parcel is not mounted")
	ErrOwnerNotMounted   = errors.New("parcel owner is not mounted")
	ErrParcelLoadFailed  = errors.New("parcel failed to load")
	ErrNilParcelBundle   = errors.New("parcel config needs a bundle or load function")
	ErrParcelMountFailed = errors.New("parcel failed to mount")

	// Router errors
	ErrRouterClosed          = errors.New("router is closed")
	ErrNilConditionSource    = errors.New("condition source is nil")
	ErrCrossOriginNavigation = errors.New("navigation target is on another origin")
	ErrNilObserver           = errors.New("observer is nil")
)

// ErrorKind classifies a lifecycle failure.
type ErrorKind string

const (
	// KindUser is misuse of the hook contract, such as a panicking loader or
	// an invalid bundle.
	KindUser ErrorKind = "user"
	// KindHook is an error returned by a hook.
	KindHook ErrorKind = "hook"
	// KindTimeout is a phase that ran past a deadline with DieOnTimeout set.
	KindTimeout ErrorKind = "timeout"
	// KindLoad is an error returned by a LoadFunc. These are retried.
	KindLoad ErrorKind = "load"
	// KindActivation is a panicking activity function.
	KindActivation ErrorKind = "activation"
	// KindOrchestration is a failure outside any single hook.
	KindOrchestration ErrorKind = "orchestration"
)

// UnitError is the classified form of every lifecycle failure. Status is what
// the unit was doing when it failed; NewStatus is where it was moved.
type UnitError struct {
	Unit      string
	Kind      ErrorKind
	Phase     Phase
	Parcel    bool
	Status    lifecycle.Status
	NewStatus lifecycle.Status
	Err       error
}

func (e *UnitError) Error() string {
	obj := "application"
	if e.Parcel {
		obj = "parcel"
	}
	return fmt.Sprintf("%s '%s' died in status %s: %v", obj, e.Unit, e.Status, e.Err)
}

func (e *UnitError) Unwrap() error {
	return e.Err
}

// TimeoutError is returned by a phase that passed its deadline.
type TimeoutError struct {
	Unit   string
	Kind   string
	Phase  Phase
	Policy TimeoutPolicy
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s '%s' did not finish %s within %d milliseconds", e.Kind, e.Unit, e.Phase, e.Policy.Millis)
}

// ErrorHandler receives every soft lifecycle failure.
type ErrorHandler func(err *UnitError)

// classifyKind picks the kind for err when the caller did not force one.
func classifyKind(err error, fallback ErrorKind) ErrorKind {
	var terr *TimeoutError
	switch {
	case errors.As(err, &terr):
		return KindTimeout
	case errors.Is(err, ErrHookPanicked):
		return KindUser
	default:
		return fallback
	}
}
