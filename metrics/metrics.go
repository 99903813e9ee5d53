package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	submittedCounter     prometheus.Counter
	includedCounter      prometheus.Counter
	expiredCounter       prometheus.Counter
	submitErrorCounter   prometheus.Counter
	bestHeightGauge      prometheus.Gauge
	finalizedHeightGauge prometheus.Gauge
	receiptHeightGauge   prometheus.Gauge
}

func NewMetrics(namespace string) *Metrics {
	m := Metrics{
		// transaction lifecycle counters
		submittedCounter: promauto.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_submitted_transactions_total", namespace),
			Help: "Transactions broadcast to the node",
		}),
		includedCounter: promauto.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_included_transactions_total", namespace),
			Help: "Transactions found in a block within their mortality window",
		}),
		expiredCounter: promauto.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_expired_transactions_total", namespace),
			Help: "Transactions whose mortality window passed without a match",
		}),
		submitErrorCounter: promauto.NewCounter(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_submit_errors_total", namespace),
			Help: "Broadcasts rejected by the node or lost to transport failures",
		}),
		// chain view for comparison against the node
		bestHeightGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_best_height", namespace),
			Help: "The latest known best block height",
		}),
		finalizedHeightGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_finalized_height", namespace),
			Help: "The latest known finalized block height",
		}),
		receiptHeightGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_receipt_height", namespace),
			Help: "The block height of the most recently resolved receipt",
		}),
	}
	return &m
}

func (metrics *Metrics) IncSubmitted() {
	metrics.submittedCounter.Inc()
}

func (metrics *Metrics) IncSubmitError() {
	metrics.submitErrorCounter.Inc()
}

func (metrics *Metrics) IncIncluded(blockHeight uint32) {
	metrics.includedCounter.Inc()
	metrics.receiptHeightGauge.Set(float64(blockHeight))
}

func (metrics *Metrics) IncExpired() {
	metrics.expiredCounter.Inc()
}

func (metrics *Metrics) SetChainHeights(best uint32, finalized uint32) {
	metrics.bestHeightGauge.Set(float64(best))
	metrics.finalizedHeightGauge.Set(float64(finalized))
}
