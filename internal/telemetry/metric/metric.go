// Package metric provides Prometheus metrics for ns-server.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// NodeMetrics holds the metrics of the node-identity subsystem.
//
// A nil *NodeMetrics is valid and records nothing, so components can be
// constructed without metrics in tests.
type NodeMetrics struct {
	addressChanges      *prometheus.CounterVec
	probeFailures       prometheus.Counter
	renameRuns          prometheus.Counter
	renameKeysRewritten prometheus.Counter
	layerUp             prometheus.Gauge
}

// NewNodeMetrics creates and registers the node metrics on reg.
func NewNodeMetrics(reg prometheus.Registerer) *NodeMetrics {
	m := &NodeMetrics{
		addressChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nsserver",
			Subsystem: "node",
			Name:      "address_changes_total",
			Help:      "Address change requests by outcome.",
		}, []string{"outcome"}),
		probeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nsserver",
			Subsystem: "node",
			Name:      "probe_failures_total",
			Help:      "Failed address probe attempts.",
		}),
		renameRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nsserver",
			Subsystem: "node",
			Name:      "rename_runs_total",
			Help:      "Completed rename protocol runs.",
		}),
		renameKeysRewritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nsserver",
			Subsystem: "node",
			Name:      "rename_keys_rewritten_total",
			Help:      "Configuration entries rewritten by the rename protocol.",
		}),
		layerUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nsserver",
			Subsystem: "node",
			Name:      "comm_layer_up",
			Help:      "Whether the distributed communication layer is up (1) or down (0).",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.addressChanges,
			m.probeFailures,
			m.renameRuns,
			m.renameKeysRewritten,
			m.layerUp,
		)
	}
	return m
}

// IncAddressChange records an address change request outcome.
func (m *NodeMetrics) IncAddressChange(outcome string) {
	if m == nil {
		return
	}
	m.addressChanges.WithLabelValues(outcome).Inc()
}

// IncProbeFailure records a failed probe attempt.
func (m *NodeMetrics) IncProbeFailure() {
	if m == nil {
		return
	}
	m.probeFailures.Inc()
}

// IncRenameRun records a completed rename protocol run.
func (m *NodeMetrics) IncRenameRun() {
	if m == nil {
		return
	}
	m.renameRuns.Inc()
}

// AddRenameKeysRewritten records rewritten configuration entries.
func (m *NodeMetrics) AddRenameKeysRewritten(n int) {
	if m == nil {
		return
	}
	m.renameKeysRewritten.Add(float64(n))
}

// SetLayerUp records whether the communication layer is running.
func (m *NodeMetrics) SetLayerUp(up bool) {
	if m == nil {
		return
	}
	if up {
		m.layerUp.Set(1)
	} else {
		m.layerUp.Set(0)
	}
}
