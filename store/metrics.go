package store

import (
	"context"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/composable-features/runtime/observability"
)

// MetricsSnapshot is a point-in-time copy of the runtime counters.
type MetricsSnapshot struct {
	ActionsSent      int64
	ActionsDropped   int64
	StaleWrites      int64
	EffectsLaunched  int64
	EffectsCancelled int64
	CaseRetirements  int64
	FieldChanges     int64
}

// Metrics counts runtime activity. It is an observability.Observer: wire
// it into the observer chain given to the store and the case router, and
// every diagnostics event increments its counter.
type Metrics struct {
	actionsSent      atomic.Int64
	actionsDropped   atomic.Int64
	staleWrites      atomic.Int64
	effectsLaunched  atomic.Int64
	effectsCancelled atomic.Int64
	caseRetirements  atomic.Int64
	fieldChanges     atomic.Int64
}

// NewMetrics creates a Metrics with all counters at zero.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) OnEvent(ctx context.Context, event observability.Event) {
	switch event.Type {
	case observability.EventStoreSend:
		m.actionsSent.Add(1)
	case observability.EventActionDrop:
		m.actionsDropped.Add(1)
	case observability.EventStaleWriteback:
		m.staleWrites.Add(1)
	case observability.EventEffectLaunch:
		m.effectsLaunched.Add(1)
	case observability.EventEffectCancel:
		m.effectsCancelled.Add(1)
	case observability.EventCaseRetire:
		m.caseRetirements.Add(1)
	case observability.EventFieldChange:
		m.fieldChanges.Add(1)
	}
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		ActionsSent:      m.actionsSent.Load(),
		ActionsDropped:   m.actionsDropped.Load(),
		StaleWrites:      m.staleWrites.Load(),
		EffectsLaunched:  m.effectsLaunched.Load(),
		EffectsCancelled: m.effectsCancelled.Load(),
		CaseRetirements:  m.caseRetirements.Load(),
		FieldChanges:     m.fieldChanges.Load(),
	}
}

// Collector returns a prometheus view over the counters, for callers that
// export scrape endpoints. The store itself never serves HTTP.
func (m *Metrics) Collector(namespace string) prometheus.Collector {
	return &metricsCollector{
		metrics: m,
		descs: map[string]*prometheus.Desc{
			"actions_sent":      desc(namespace, "actions_sent_total", "Actions fed through Send."),
			"actions_dropped":   desc(namespace, "actions_dropped_total", "Actions dropped by case routing."),
			"stale_writes":      desc(namespace, "stale_writes_total", "Write-backs discarded as stale."),
			"effects_launched":  desc(namespace, "effects_launched_total", "Effects started."),
			"effects_cancelled": desc(namespace, "effects_cancelled_total", "Effects cancelled before completion."),
			"case_retirements":  desc(namespace, "case_retirements_total", "Case identities retired."),
			"field_changes":     desc(namespace, "field_changes_total", "Tracked field mutations."),
		},
	}
}

func desc(namespace, name, help string) *prometheus.Desc {
	return prometheus.NewDesc(prometheus.BuildFQName(namespace, "runtime", name), help, nil, nil)
}

type metricsCollector struct {
	metrics *Metrics
	descs   map[string]*prometheus.Desc
}

func (c *metricsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d
	}
}

func (c *metricsCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.metrics.Snapshot()
	counters := map[string]int64{
		"actions_sent":      snap.ActionsSent,
		"actions_dropped":   snap.ActionsDropped,
		"stale_writes":      snap.StaleWrites,
		"effects_launched":  snap.EffectsLaunched,
		"effects_cancelled": snap.EffectsCancelled,
		"case_retirements":  snap.CaseRetirements,
		"field_changes":     snap.FieldChanges,
	}
	for name, value := range counters {
		ch <- prometheus.MustNewConstMetric(c.descs[name], prometheus.CounterValue, float64(value))
	}
}
