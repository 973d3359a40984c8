package unitrouter

import (
	"context"
	"errors"

	"github.com/GoCodeAlone/unitrouter/lifecycle"
)

// AddErrorHandler registers h for every soft lifecycle failure. The returned
// function removes it.
func (r *Router) AddErrorHandler(h ErrorHandler) (remove func()) {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	id := r.nextHandlerID
	r.nextHandlerID++
	r.errorHandlers = append(r.errorHandlers, errorHandlerEntry{id: id, fn: h})
	return func() { r.removeErrorHandler(id) }
}

func (r *Router) removeErrorHandler(id int) {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	for i, e := range r.errorHandlers {
		if e.id == id {
			r.errorHandlers = append(r.errorHandlers[:i:i], r.errorHandlers[i+1:]...)
			return
		}
	}
}

type errorHandlerEntry struct {
	id int
	fn ErrorHandler
}

// transformErr classifies err, moves the unit to newStatus and remembers the
// result on the unit. An error already classified for this unit is reused.
func (r *Router) transformErr(err error, u *Unit, phase Phase, kind ErrorKind, newStatus lifecycle.Status) *UnitError {
	var ue *UnitError
	if errors.As(err, &ue) && ue.Unit == u.name && ue.Parcel == u.IsParcel() {
		u.setStatus(newStatus)
		return ue
	}

	u.mu.Lock()
	ue = &UnitError{
		Unit:      u.name,
		Kind:      classifyKind(err, kind),
		Phase:     phase,
		Parcel:    u.IsParcel(),
		Status:    u.status,
		NewStatus: newStatus,
		Err:       err,
	}
	u.setStatusLocked(newStatus)
	u.lastErr = ue
	u.mu.Unlock()
	return ue
}

// handleUnitError is the soft failure path: classify, move the unit, then
// tell the handlers. Parcel failures are returned to whoever mounted the
// parcel, so they are not reported.
func (r *Router) handleUnitError(ctx context.Context, err error, u *Unit, phase Phase, kind ErrorKind, newStatus lifecycle.Status) *UnitError {
	ue := r.transformErr(err, u, phase, kind, newStatus)
	if !u.IsParcel() {
		r.reportError(ctx, ue)
	}
	return ue
}

func (r *Router) reportError(ctx context.Context, ue *UnitError) {
	r.errMu.RLock()
	handlers := make([]ErrorHandler, 0, len(r.errorHandlers))
	for _, e := range r.errorHandlers {
		handlers = append(handlers, e.fn)
	}
	r.errMu.RUnlock()

	r.emit(ctx, EventTypeUnitFailed, newUnitFailedData(ue))

	if len(handlers) == 0 {
		r.logger.Error("Unit failed", "unit", ue.Unit, "kind", ue.Kind, "phase", ue.Phase, "status", ue.NewStatus, "error", ue.Err)
		return
	}
	r.logger.Debug("Unit failed", "unit", ue.Unit, "kind", ue.Kind, "phase", ue.Phase, "status", ue.NewStatus, "error", ue.Err)
	for _, h := range handlers {
		r.callErrorHandler(h, ue)
	}
}

func (r *Router) callErrorHandler(h ErrorHandler, ue *UnitError) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Error handler panicked", "unit", ue.Unit, "panic", rec)
		}
	}()
	h(ue)
}
