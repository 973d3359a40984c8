// Package health reports whether a router and its units are healthy.
package health

import (
	"context"
	"time"
)

// HealthChecker is a single named check.
type HealthChecker interface {
	// Check performs a health check and returns the current status
	Check(ctx context.Context) (*CheckResult, error)

	// Name returns the unique name of this health check
	Name() string

	// Description returns a human-readable description of what this check validates
	Description() string
}

// CheckResult represents the result of a single health check
type CheckResult struct {
	Name      string         `json:"name"`
	Status    HealthStatus   `json:"status"`
	Message   string         `json:"message,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Duration  time.Duration  `json:"duration"`
	Details   map[string]any `json:"details,omitempty"`

	// Readiness marks checks that gate readiness but not liveness.
	Readiness bool `json:"readiness,omitempty"`
}

// AggregatedStatus is the worst-of view over every registered check.
type AggregatedStatus struct {
	OverallStatus   HealthStatus            `json:"overall_status"`
	ReadinessStatus HealthStatus            `json:"readiness_status"`
	LivenessStatus  HealthStatus            `json:"liveness_status"`
	Timestamp       time.Time               `json:"timestamp"`
	CheckResults    map[string]*CheckResult `json:"check_results"`
	Summary         *StatusSummary          `json:"summary"`
}

// StatusSummary counts check results by status.
type StatusSummary struct {
	TotalChecks    int `json:"total_checks"`
	PassingChecks  int `json:"passing_checks"`
	WarningChecks  int `json:"warning_checks"`
	CriticalChecks int `json:"critical_checks"`
	UnknownChecks  int `json:"unknown_checks"`
}

// HealthStatus represents the status of a health check
type HealthStatus string

const (
	StatusHealthy  HealthStatus = "healthy"
	StatusWarning  HealthStatus = "warning"
	StatusCritical HealthStatus = "critical"
	StatusUnknown  HealthStatus = "unknown"
)

// severity orders statuses from best to worst.
func (s HealthStatus) severity() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusWarning:
		return 1
	case StatusUnknown:
		return 2
	default:
		return 3
	}
}

// Worse returns the worse of s and other.
func (s HealthStatus) Worse(other HealthStatus) HealthStatus {
	if other.severity() > s.severity() {
		return other
	}
	return s
}

// StatusChangeCallback is called when the overall status changes.
type StatusChangeCallback func(ctx context.Context, previous, current *AggregatedStatus)
