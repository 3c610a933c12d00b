package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/viralforge/mesh/services/financial-rails/M42-investment-engine/internal/domain"
)

const namespace = "investment_engine"

// Prometheus implements ports.EngineMetrics on a private registry.
type Prometheus struct {
	registry         *prometheus.Registry
	activations      *prometheus.CounterVec
	completions      *prometheus.CounterVec
	rewardsRecorded  *prometheus.CounterVec
	rewardAmount     *prometheus.CounterVec
	rankAdvances     *prometheus.CounterVec
	batchRuns        *prometheus.CounterVec
	batchAttempts    prometheus.Histogram
	batchProcessed   prometheus.Gauge
	batchDuration    prometheus.Histogram
	cyclesDetected   prometheus.Counter
	lastBatchSuccess prometheus.Gauge
}

func NewPrometheus() *Prometheus {
	m := &Prometheus{
		registry: prometheus.NewRegistry(),
		activations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "investments_activated_total",
			Help:      "Investments moved from pending to active.",
		}, []string{"variant"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "investments_completed_total",
			Help:      "Investments completed, by reason.",
		}, []string{"reason"}),
		rewardsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reward_records_total",
			Help:      "Reward ledger rows written.",
		}, []string{"type"}),
		rewardAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reward_amount_total",
			Help:      "Sum of reward amounts written to the ledger.",
		}, []string{"type"}),
		rankAdvances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rank_advances_total",
			Help:      "Participant rank promotions, by new rank.",
		}, []string{"rank"}),
		batchRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "distribution_batches_total",
			Help:      "Distribution batch runs, by outcome.",
		}, []string{"outcome"}),
		batchAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "distribution_batch_attempts",
			Help:      "Attempts used per distribution batch run.",
			Buckets:   []float64{1, 2, 3, 5, 10},
		}),
		batchProcessed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "distribution_batch_processed",
			Help:      "Investments advanced by the latest batch run.",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "distribution_batch_duration_seconds",
			Help:      "Wall time of distribution batch runs.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		cyclesDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upline_cycles_detected_total",
			Help:      "Upline walks stopped because a participant repeated.",
		}),
		lastBatchSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "distribution_last_success_timestamp_seconds",
			Help:      "Unix time of the latest successful batch run.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.activations,
		m.completions,
		m.rewardsRecorded,
		m.rewardAmount,
		m.rankAdvances,
		m.batchRuns,
		m.batchAttempts,
		m.batchProcessed,
		m.batchDuration,
		m.cyclesDetected,
		m.lastBatchSuccess,
	)
	return m
}

func (m *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Prometheus) Registry() *prometheus.Registry { return m.registry }

func (m *Prometheus) InvestmentActivated(variant domain.ProductVariant) {
	m.activations.WithLabelValues(string(variant)).Inc()
}

func (m *Prometheus) InvestmentCompleted(reason string) {
	m.completions.WithLabelValues(reason).Inc()
}

func (m *Prometheus) RewardRecorded(rewardType domain.RewardType, amount decimal.Decimal) {
	m.rewardsRecorded.WithLabelValues(string(rewardType)).Inc()
	m.rewardAmount.WithLabelValues(string(rewardType)).Add(amount.InexactFloat64())
}

func (m *Prometheus) RankAdvanced(rank int) {
	m.rankAdvances.WithLabelValues(strconv.Itoa(rank)).Inc()
}

func (m *Prometheus) BatchRunFinished(outcome domain.BatchOutcome, attempts, processed int, elapsed time.Duration) {
	m.batchRuns.WithLabelValues(string(outcome)).Inc()
	if outcome == domain.BatchOutcomeSkipped {
		return
	}
	m.batchAttempts.Observe(float64(attempts))
	m.batchProcessed.Set(float64(processed))
	m.batchDuration.Observe(elapsed.Seconds())
	if outcome == domain.BatchOutcomeSuccess {
		m.lastBatchSuccess.SetToCurrentTime()
	}
}

func (m *Prometheus) UplineCycleDetected() {
	m.cyclesDetected.Inc()
}
