package health

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
)

var (
	ErrHealthCheckNotFound      = errors.New("health check not found")
	ErrHealthCheckExists        = errors.New("health check already registered")
	ErrMonitoringAlreadyRunning = errors.New("monitoring is already running")
	ErrMonitoringNotRunning     = errors.New("monitoring is not running")
	ErrInvalidInterval          = errors.New("monitoring interval must be positive")
)

// Aggregator runs registered checks and combines their results.
type Aggregator struct {
	mu         sync.RWMutex
	checkers   map[string]HealthChecker
	last       *AggregatedStatus
	config     AggregatorConfig
	callbacks  []StatusChangeCallback
	stopChan   chan struct{}
	monitoring sync.WaitGroup
}

// AggregatorConfig represents configuration for the health aggregator
type AggregatorConfig struct {
	Timeout     time.Duration `json:"timeout"`
	Parallelism int           `json:"parallelism"`
}

// NewAggregator creates an aggregator. Zero config fields get defaults.
func NewAggregator(config AggregatorConfig) *Aggregator {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.Parallelism <= 0 {
		config.Parallelism = 4
	}
	return &Aggregator{
		checkers: make(map[string]HealthChecker),
		config:   config,
	}
}

// RegisterCheck adds a check.
func (a *Aggregator) RegisterCheck(checker HealthChecker) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.checkers[checker.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrHealthCheckExists, checker.Name())
	}
	a.checkers[checker.Name()] = checker
	return nil
}

// UnregisterCheck removes a check.
func (a *Aggregator) UnregisterCheck(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.checkers[name]; !ok {
		return fmt.Errorf("%w: %s", ErrHealthCheckNotFound, name)
	}
	delete(a.checkers, name)
	return nil
}

// OnStatusChange registers a callback for overall status changes.
func (a *Aggregator) OnStatusChange(cb StatusChangeCallback) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.callbacks = append(a.callbacks, cb)
}

// CheckAll runs every check concurrently and aggregates the results.
func (a *Aggregator) CheckAll(ctx context.Context) *AggregatedStatus {
	a.mu.RLock()
	checkers := make([]HealthChecker, 0, len(a.checkers))
	for _, c := range a.checkers {
		checkers = append(checkers, c)
	}
	a.mu.RUnlock()
	sort.Slice(checkers, func(i, j int) bool { return checkers[i].Name() < checkers[j].Name() })

	p := pool.NewWithResults[*CheckResult]().WithMaxGoroutines(a.config.Parallelism)
	for _, c := range checkers {
		p.Go(func() *CheckResult { return a.run(ctx, c) })
	}
	status := aggregate(p.Wait(), time.Now())

	a.mu.Lock()
	previous := a.last
	a.last = status
	callbacks := append([]StatusChangeCallback(nil), a.callbacks...)
	a.mu.Unlock()

	if previous == nil || previous.OverallStatus != status.OverallStatus {
		for _, cb := range callbacks {
			cb(ctx, previous, status)
		}
	}
	return status
}

// CheckOne runs a single check by name.
func (a *Aggregator) CheckOne(ctx context.Context, name string) (*CheckResult, error) {
	a.mu.RLock()
	c, ok := a.checkers[name]
	a.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHealthCheckNotFound, name)
	}
	return a.run(ctx, c), nil
}

// GetStatus returns the last aggregated status without running checks. It is
// nil until CheckAll has run once.
func (a *Aggregator) GetStatus() *AggregatedStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.last
}

// IsReady runs the checks and reports readiness.
func (a *Aggregator) IsReady(ctx context.Context) bool {
	return a.CheckAll(ctx).ReadinessStatus != StatusCritical
}

// IsLive runs the checks and reports liveness.
func (a *Aggregator) IsLive(ctx context.Context) bool {
	return a.CheckAll(ctx).LivenessStatus != StatusCritical
}

// StartMonitoring runs CheckAll every interval until StopMonitoring or ctx
// is done.
func (a *Aggregator) StartMonitoring(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}
	a.mu.Lock()
	if a.stopChan != nil {
		a.mu.Unlock()
		return ErrMonitoringAlreadyRunning
	}
	stop := make(chan struct{})
	a.stopChan = stop
	a.monitoring.Add(1)
	a.mu.Unlock()

	go func() {
		defer a.monitoring.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.CheckAll(ctx)
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// StopMonitoring stops a monitor started with StartMonitoring.
func (a *Aggregator) StopMonitoring() error {
	a.mu.Lock()
	stop := a.stopChan
	a.stopChan = nil
	a.mu.Unlock()
	if stop == nil {
		return ErrMonitoringNotRunning
	}
	close(stop)
	a.monitoring.Wait()
	return nil
}

// IsMonitoring reports whether a monitor is running.
func (a *Aggregator) IsMonitoring() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stopChan != nil
}

func (a *Aggregator) run(ctx context.Context, c HealthChecker) *CheckResult {
	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	start := time.Now()
	result, err := c.Check(ctx)
	if err != nil {
		result = &CheckResult{Name: c.Name(), Status: StatusCritical, Error: err.Error()}
	}
	if result == nil {
		result = &CheckResult{Name: c.Name(), Status: StatusUnknown}
	}
	result.Name = c.Name()
	result.Timestamp = start
	result.Duration = time.Since(start)
	return result
}

func aggregate(results []*CheckResult, now time.Time) *AggregatedStatus {
	status := &AggregatedStatus{
		OverallStatus:   StatusHealthy,
		ReadinessStatus: StatusHealthy,
		LivenessStatus:  StatusHealthy,
		Timestamp:       now,
		CheckResults:    make(map[string]*CheckResult, len(results)),
		Summary:         &StatusSummary{TotalChecks: len(results)},
	}
	for _, r := range results {
		status.CheckResults[r.Name] = r
		status.OverallStatus = status.OverallStatus.Worse(r.Status)
		status.ReadinessStatus = status.ReadinessStatus.Worse(r.Status)
		if !r.Readiness {
			status.LivenessStatus = status.LivenessStatus.Worse(r.Status)
		}
		switch r.Status {
		case StatusHealthy:
			status.Summary.PassingChecks++
		case StatusWarning:
			status.Summary.WarningChecks++
		case StatusCritical:
			status.Summary.CriticalChecks++
		default:
			status.Summary.UnknownChecks++
		}
	}
	return status
}
