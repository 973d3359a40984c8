package unitrouter

import (
	"time"

	"github.com/GoCodeAlone/unitrouter/lifecycle"
)

// RoutingDetail is the data of every routing pass event. Observers decode it
// with event.DataAs.
type RoutingDetail struct {
	PassID string `json:"passId"`

	// NewStatuses maps each changed unit to the status it is heading to
	// (before events) or ended in (after events).
	NewStatuses map[string]lifecycle.Status `json:"newAppStatuses"`

	// UnitsByNewStatus groups the changed units. The MOUNTED, NOT_MOUNTED,
	// NOT_LOADED and SKIP_BECAUSE_BROKEN keys are always present.
	UnitsByNewStatus map[lifecycle.Status][]string `json:"appsByNewStatus"`

	TotalChanges         int              `json:"totalAppChanges"`
	OriginalEvent        *NavigationEvent `json:"originalEvent,omitempty"`
	OldURL               string           `json:"oldUrl"`
	NewURL               string           `json:"newUrl"`
	NavigationIsCanceled bool             `json:"navigationIsCanceled"`
	StartedAt            time.Time        `json:"startedAt"`
}

// UnitEventData is the data of unit lifecycle events.
type UnitEventData struct {
	Unit   string           `json:"unit"`
	Status lifecycle.Status `json:"status"`
}

func newUnitData(u *Unit) UnitEventData {
	return UnitEventData{Unit: u.name, Status: u.Status()}
}

// UnitFailedData is the data of EventTypeUnitFailed.
type UnitFailedData struct {
	Unit      string           `json:"unit"`
	Kind      ErrorKind        `json:"kind"`
	Phase     Phase            `json:"phase"`
	Status    lifecycle.Status `json:"status"`
	NewStatus lifecycle.Status `json:"newStatus"`
	Error     string           `json:"error"`
}

func newUnitFailedData(ue *UnitError) UnitFailedData {
	return UnitFailedData{
		Unit:      ue.Unit,
		Kind:      ue.Kind,
		Phase:     ue.Phase,
		Status:    ue.Status,
		NewStatus: ue.NewStatus,
		Error:     ue.Error(),
	}
}

func emptyByStatus() map[lifecycle.Status][]string {
	return map[lifecycle.Status][]string{
		lifecycle.Mounted:           {},
		lifecycle.NotMounted:        {},
		lifecycle.NotLoaded:         {},
		lifecycle.SkipBecauseBroken: {},
	}
}
