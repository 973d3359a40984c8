package health

import (
	"context"
	"fmt"

	"github.com/GoCodeAlone/unitrouter"
	"github.com/GoCodeAlone/unitrouter/lifecycle"
)

// UnitSource is the part of a router the unit checks read.
type UnitSource interface {
	Started() bool
	Units() []unitrouter.UnitInfo
}

// RouterChecker is a readiness check: the router must have been started.
type RouterChecker struct {
	src UnitSource
}

// NewRouterChecker creates a readiness check for src.
func NewRouterChecker(src UnitSource) *RouterChecker {
	return &RouterChecker{src: src}
}

func (c *RouterChecker) Name() string        { return "router" }
func (c *RouterChecker) Description() string { return "router has been started" }

// Check reports critical until the router starts.
func (c *RouterChecker) Check(context.Context) (*CheckResult, error) {
	if !c.src.Started() {
		return &CheckResult{Status: StatusCritical, Message: "router not started", Readiness: true}, nil
	}
	return &CheckResult{Status: StatusHealthy, Message: "router started", Readiness: true}, nil
}

// UnitsChecker maps unit statuses to health: quarantined units are
// critical, units waiting to retry a load are a warning.
type UnitsChecker struct {
	src UnitSource
}

// NewUnitsChecker creates a check over every unit of src.
func NewUnitsChecker(src UnitSource) *UnitsChecker {
	return &UnitsChecker{src: src}
}

func (c *UnitsChecker) Name() string        { return "units" }
func (c *UnitsChecker) Description() string { return "no registered unit is quarantined" }

// Check inspects every unit.
func (c *UnitsChecker) Check(context.Context) (*CheckResult, error) {
	result := &CheckResult{Status: StatusHealthy, Details: make(map[string]any)}
	var broken, failing int
	for _, u := range c.src.Units() {
		status := UnitHealth(u.Status)
		result.Status = result.Status.Worse(status)
		detail := map[string]any{"status": string(u.Status), "health": string(status)}
		if u.LastError != "" {
			detail["error"] = u.LastError
		}
		result.Details[u.Name] = detail
		switch status {
		case StatusCritical:
			broken++
		case StatusWarning:
			failing++
		}
	}
	result.Message = fmt.Sprintf("%d quarantined, %d failing to load", broken, failing)
	return result, nil
}

// UnitHealth maps a unit status to a health status.
func UnitHealth(s lifecycle.Status) HealthStatus {
	switch s {
	case lifecycle.SkipBecauseBroken:
		return StatusCritical
	case lifecycle.LoadError:
		return StatusWarning
	default:
		return StatusHealthy
	}
}
