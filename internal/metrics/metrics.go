// Package metrics is the daemon's single prometheus registry: every
// long-lived component is handed a *Registry at construction and records
// into it directly rather than reaching for prometheus's default global
// registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/FutureHeadCoin/futurehead-node-sub000/internal/ledger"
)

// Registry groups every counter/gauge the ledger core exposes.
type Registry struct {
	registerer prometheus.Registerer

	BlocksProcessed  *prometheus.CounterVec
	UncheckedSize    prometheus.Gauge
	ElectionsActive  prometheus.Gauge
	VoteReplays      prometheus.Counter
	VoteCooldownHits prometheus.Counter
	RepWeight        *prometheus.GaugeVec
}

// New builds a Registry backed by reg, or prometheus.NewRegistry() if reg
// is nil (the usual choice in tests, so parallel test runs never collide
// on prometheus's shared default registry).
func New(reg prometheus.Registerer) *Registry {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Registry{
		registerer: reg,
		BlocksProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledgerd",
			Name:      "blocks_processed_total",
			Help:      "Blocks processed by the block processor, labeled by result code.",
		}, []string{"result"}),
		UncheckedSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ledgerd",
			Name:      "unchecked_pool_size",
			Help:      "Current number of blocks parked in the unchecked pool.",
		}),
		ElectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ledgerd",
			Name:      "elections_active",
			Help:      "Number of qualified roots with an open election.",
		}),
		VoteReplays: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ledgerd",
			Name:      "vote_replays_total",
			Help:      "Votes discarded as a replay of an equal or lower sequence number.",
		}),
		VoteCooldownHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ledgerd",
			Name:      "vote_cooldown_hits_total",
			Help:      "Votes discarded because the voter is still within its cooldown window.",
		}),
		RepWeight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ledgerd",
			Name:      "representative_weight",
			Help:      "Current representative weight, labeled by representative account.",
		}, []string{"representative"}),
	}
}

// ObserveProcessResult increments the processed counter for result.
func (r *Registry) ObserveProcessResult(result ledger.ProcessResult) {
	r.BlocksProcessed.WithLabelValues(result.String()).Inc()
}

// SetUncheckedSize reports the unchecked pool's current occupancy.
func (r *Registry) SetUncheckedSize(n int) {
	r.UncheckedSize.Set(float64(n))
}

// SetElectionsActive reports the election arena's current size.
func (r *Registry) SetElectionsActive(n int) {
	r.ElectionsActive.Set(float64(n))
}
