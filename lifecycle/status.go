// Package lifecycle defines the unit status state machine shared by the router,
// its transitions and the journal that records every status change.
//
// The stable statuses of a healthy unit are:
//
//	NOT_LOADED → NOT_BOOTSTRAPPED → NOT_MOUNTED ⇄ MOUNTED
//
// Each move between stable statuses passes through exactly one transitional
// ("-ING") status while the corresponding hook runs. A unit whose hook fails
// unrecoverably moves to SKIP_BECAUSE_BROKEN, which is terminal.
package lifecycle

// Status represents the lifecycle status of a unit.
type Status string

const (
	// NotLoaded is the status of a freshly registered unit, and of a unit
	// whose hooks were discarded by an unload.
	NotLoaded Status = "NOT_LOADED"

	// LoadingSourceCode is set while the unit's load function runs.
	LoadingSourceCode Status = "LOADING_SOURCE_CODE"

	// NotBootstrapped means the unit's hooks are known but bootstrap has not run.
	NotBootstrapped Status = "NOT_BOOTSTRAPPED"

	// Bootstrapping is set while the bootstrap hooks run.
	Bootstrapping Status = "BOOTSTRAPPING"

	// NotMounted means the unit is bootstrapped and ready to mount.
	NotMounted Status = "NOT_MOUNTED"

	// Mounting is set while the mount hooks run.
	Mounting Status = "MOUNTING"

	// Mounted means the unit is active.
	Mounted Status = "MOUNTED"

	// Updating is set while a nested unit's update hooks run.
	Updating Status = "UPDATING"

	// Unmounting is set while the unmount hooks run.
	Unmounting Status = "UNMOUNTING"

	// Unloading is set while the unload hooks run.
	Unloading Status = "UNLOADING"

	// LoadError means the load function failed. The unit may be retried.
	LoadError Status = "LOAD_ERROR"

	// SkipBecauseBroken quarantines a unit. It is never left.
	SkipBecauseBroken Status = "SKIP_BECAUSE_BROKEN"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Valid reports whether s is one of the recognized statuses.
func (s Status) Valid() bool {
	switch s {
	case NotLoaded, LoadingSourceCode, NotBootstrapped, Bootstrapping,
		NotMounted, Mounting, Mounted, Updating, Unmounting, Unloading,
		LoadError, SkipBecauseBroken:
		return true
	default:
		return false
	}
}

// IsTransitional reports whether a hook (or the load function) is running
// while the unit holds this status.
func (s Status) IsTransitional() bool {
	switch s {
	case LoadingSourceCode, Bootstrapping, Mounting, Updating, Unmounting, Unloading:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status can never be left.
func (s Status) IsTerminal() bool {
	return s == SkipBecauseBroken
}

// validTransitions is the transition matrix. Every non-terminal status may
// additionally move to SkipBecauseBroken.
//
//	NOT_LOADED          → LOADING_SOURCE_CODE
//	LOADING_SOURCE_CODE → NOT_BOOTSTRAPPED, LOAD_ERROR
//	LOAD_ERROR          → LOADING_SOURCE_CODE, UNLOADING
//	NOT_BOOTSTRAPPED    → BOOTSTRAPPING
//	BOOTSTRAPPING       → NOT_MOUNTED
//	NOT_MOUNTED         → MOUNTING, UNLOADING
//	MOUNTING            → MOUNTED
//	MOUNTED             → UNMOUNTING, UPDATING
//	UPDATING            → MOUNTED
//	UNMOUNTING          → NOT_MOUNTED
//	UNLOADING           → NOT_LOADED
var validTransitions = map[Status][]Status{
	NotLoaded:         {LoadingSourceCode},
	LoadingSourceCode: {NotBootstrapped, LoadError},
	LoadError:         {LoadingSourceCode, Unloading},
	NotBootstrapped:   {Bootstrapping},
	Bootstrapping:     {NotMounted},
	NotMounted:        {Mounting, Unloading},
	Mounting:          {Mounted},
	Mounted:           {Unmounting, Updating},
	Updating:          {Mounted},
	Unmounting:        {NotMounted},
	Unloading:         {NotLoaded},
}

// ValidTransition reports whether moving from one status to another follows an
// edge of the state machine. Same-status moves are rejected.
func ValidTransition(from, to Status) bool {
	if from == to || from.IsTerminal() || !from.Valid() || !to.Valid() {
		return false
	}
	if to == SkipBecauseBroken {
		return true
	}
	for _, t := range validTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}
