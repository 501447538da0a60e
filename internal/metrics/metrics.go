package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"openamm/internal/model"
)

const namespace = "openamm"

// Recorder publishes pool state and transition outcomes. A nil Recorder is
// valid and records nothing.
type Recorder struct {
	reserves     *prometheus.GaugeVec
	lpSupply     *prometheus.GaugeVec
	volume       *prometheus.CounterVec
	crankerPaid  *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	ladderLevels *prometheus.GaugeVec
	paused       *prometheus.GaugeVec
}

// NewRecorder registers the pool collectors on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		reserves: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_reserves",
			Help:      "Pool reserves in native units.",
		}, []string{"pool", "asset"}),
		lpSupply: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_lp_supply",
			Help:      "Outstanding LP shares.",
		}, []string{"pool"}),
		volume: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_fill_volume_total",
			Help:      "Counter-asset received by filled ladder orders.",
		}, []string{"pool", "asset"}),
		crankerPaid: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_cranker_refund_total",
			Help:      "Refunds paid to crankers.",
		}, []string{"pool", "asset"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_transitions_total",
			Help:      "Pool transitions by operation and outcome.",
		}, []string{"op", "status"}),
		ladderLevels: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_ladder_levels",
			Help:      "Orders placed by the latest ladder.",
		}, []string{"pool", "side"}),
		paused: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_paused",
			Help:      "1 when market making is paused.",
		}, []string{"pool"}),
	}
}

// Transition counts one operation attempt.
func (r *Recorder) Transition(op string, err error) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.transitions.WithLabelValues(op, status).Inc()
}

// ObservePool mirrors a committed pool snapshot.
func (r *Recorder) ObservePool(p model.Pool) {
	if r == nil {
		return
	}
	addr := p.Address.Hex()
	r.reserves.WithLabelValues(addr, string(p.BaseAsset)).Set(float64(p.BaseAmount))
	r.reserves.WithLabelValues(addr, string(p.QuoteAsset)).Set(float64(p.QuoteAmount))
	r.lpSupply.WithLabelValues(addr).Set(float64(p.LPSupply))
	r.ladderLevels.WithLabelValues(addr, model.Ask.String()).Set(float64(len(p.PlacedAsks)))
	r.ladderLevels.WithLabelValues(addr, model.Bid.String()).Set(float64(len(p.PlacedBids)))
	if p.MarketMakingActive {
		r.paused.WithLabelValues(addr).Set(0)
	} else {
		r.paused.WithLabelValues(addr).Set(1)
	}
}

// ObserveFills adds reconciled fill volume.
func (r *Recorder) ObserveFills(p model.Pool, fills model.FillSummary) {
	if r == nil || fills.Empty() {
		return
	}
	addr := p.Address.Hex()
	r.volume.WithLabelValues(addr, string(p.QuoteAsset)).Add(float64(fills.QuoteReceived))
	r.volume.WithLabelValues(addr, string(p.BaseAsset)).Add(float64(fills.BaseReceived))
}

// ObserveCrankerPayment adds refunds released to a cranker.
func (r *Recorder) ObserveCrankerPayment(p model.Pool, base, quote uint64) {
	if r == nil {
		return
	}
	addr := p.Address.Hex()
	r.crankerPaid.WithLabelValues(addr, string(p.BaseAsset)).Add(float64(base))
	r.crankerPaid.WithLabelValues(addr, string(p.QuoteAsset)).Add(float64(quote))
}
