package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ledgerMetrics struct {
	groupsCommitted prometheus.Counter
	groupsRejected  prometheus.Counter
	operations      prometheus.Counter
}

var (
	ledgerMetricsOnce sync.Once
	ledgerRegistry    *ledgerMetrics
)

// Ledger returns the lazily-initialised registry tracking group execution
// outcomes. It satisfies the ledger's recorder interface, so it can be
// installed directly with SetRecorder.
func Ledger() *ledgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &ledgerMetrics{
			groupsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "mkt",
				Subsystem: "ledger",
				Name:      "groups_committed_total",
				Help:      "Count of atomic groups applied to the ledger.",
			}),
			groupsRejected: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "mkt",
				Subsystem: "ledger",
				Name:      "groups_rejected_total",
				Help:      "Count of atomic groups rejected during validation.",
			}),
			operations: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "mkt",
				Subsystem: "ledger",
				Name:      "operations_total",
				Help:      "Count of individual operations inside committed groups.",
			}),
		}
		prometheus.MustRegister(
			ledgerRegistry.groupsCommitted,
			ledgerRegistry.groupsRejected,
			ledgerRegistry.operations,
		)
	})
	return ledgerRegistry
}

// GroupCommitted records one applied group and its operation count.
func (m *ledgerMetrics) GroupCommitted(ops int) {
	if m == nil {
		return
	}
	m.groupsCommitted.Inc()
	m.operations.Add(float64(ops))
}

// GroupRejected records one rejected group.
func (m *ledgerMetrics) GroupRejected() {
	if m == nil {
		return
	}
	m.groupsRejected.Inc()
}

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
