// Package metrics exports router activity as Prometheus metrics. It is an
// observer: register it on the router and it counts passes and failures.
package metrics

import (
	"context"
	"net/http"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GoCodeAlone/unitrouter"
)

// Collector holds the router metrics and their registry.
type Collector struct {
	registry *prometheus.Registry
	now      func() time.Time

	passes        *prometheus.CounterVec
	passDuration  prometheus.Histogram
	unitChanges   prometheus.Counter
	failures      *prometheus.CounterVec
	unitsByStatus *prometheus.GaugeVec
	registered    prometheus.Gauge
}

// UnitLister is what the status gauge reads on every routing event.
type UnitLister interface {
	Units() []unitrouter.UnitInfo
}

// NewCollector creates the metrics on a fresh registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		now:      time.Now,
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "unitrouter",
			Name:      "routing_passes_total",
			Help:      "Completed routing passes by outcome (change, no_change, canceled).",
		}, []string{"outcome"}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "unitrouter",
			Name:      "routing_pass_duration_seconds",
			Help:      "Duration of routing passes.",
			Buckets:   prometheus.DefBuckets,
		}),
		unitChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "unitrouter",
			Name:      "unit_changes_total",
			Help:      "Units changed by routing passes.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "unitrouter",
			Name:      "unit_failures_total",
			Help:      "Lifecycle failures by kind and phase.",
		}, []string{"kind", "phase"}),
		unitsByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "unitrouter",
			Name:      "units",
			Help:      "Registered units by status.",
		}, []string{"status"}),
		registered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "unitrouter",
			Name:      "units_registered",
			Help:      "Registered units.",
		}),
	}
	c.registry.MustRegister(c.passes, c.passDuration, c.unitChanges, c.failures, c.unitsByStatus, c.registered)
	return c
}

// Registry returns the registry the metrics live in.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Observer returns an observer that updates the metrics. units may be nil,
// in which case the per-status gauge is not maintained.
func (c *Collector) Observer(units UnitLister) unitrouter.Observer {
	return unitrouter.NewFunctionalObserver("metrics", func(ctx context.Context, event cloudevents.Event) error {
		return c.observe(event, units)
	})
}

// EventTypes lists the events the observer needs.
func EventTypes() []string {
	return []string{
		unitrouter.EventTypeRouting,
		unitrouter.EventTypeUnitFailed,
		unitrouter.EventTypeUnitRegistered,
		unitrouter.EventTypeUnitUnregistered,
	}
}

func (c *Collector) observe(event cloudevents.Event, units UnitLister) error {
	switch event.Type() {
	case unitrouter.EventTypeRouting:
		var d unitrouter.RoutingDetail
		if err := event.DataAs(&d); err != nil {
			return err
		}
		outcome := "change"
		switch {
		case d.NavigationIsCanceled:
			outcome = "canceled"
		case d.TotalChanges == 0:
			outcome = "no_change"
		}
		c.passes.WithLabelValues(outcome).Inc()
		c.unitChanges.Add(float64(d.TotalChanges))
		if !d.StartedAt.IsZero() {
			c.passDuration.Observe(c.now().Sub(d.StartedAt).Seconds())
		}
	case unitrouter.EventTypeUnitFailed:
		var d unitrouter.UnitFailedData
		if err := event.DataAs(&d); err != nil {
			return err
		}
		c.failures.WithLabelValues(string(d.Kind), string(d.Phase)).Inc()
	}

	if units != nil {
		c.refreshUnits(units.Units())
	}
	return nil
}

func (c *Collector) refreshUnits(infos []unitrouter.UnitInfo) {
	c.unitsByStatus.Reset()
	for _, info := range infos {
		c.unitsByStatus.WithLabelValues(string(info.Status)).Inc()
	}
	c.registered.Set(float64(len(infos)))
}
