package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "crm"

// Metrics holds the customer core collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	DeletedRows   *prometheus.CounterVec
	Deletions     *prometheus.CounterVec
	ListFallbacks prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DeletedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cascade_deleted_rows_total",
			Help:      "Rows removed by customer cascade deletes, by table.",
		}, []string{"table"}),
		Deletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "customer_deletions_total",
			Help:      "Customer delete calls by mode and outcome.",
		}, []string{"mode", "outcome"}),
		ListFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "customer_list_fallbacks_total",
			Help:      "Customer listings answered empty because the customers table is missing.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.DeletedRows, m.Deletions, m.ListFallbacks)
	}
	return m
}

func (m *Metrics) AddDeletedRows(table string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.DeletedRows.WithLabelValues(table).Add(float64(n))
}

func (m *Metrics) ObserveDeletion(mode, outcome string) {
	if m == nil {
		return
	}
	m.Deletions.WithLabelValues(mode, outcome).Inc()
}

func (m *Metrics) IncListFallback() {
	if m == nil {
		return
	}
	m.ListFallbacks.Inc()
}
