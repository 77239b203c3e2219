package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "docpublish"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	publishDuration *prom.HistogramVec
	publishOutcome  *prom.CounterVec
	stageDuration   *prom.HistogramVec
	lockWait        prom.Histogram
	itemsPublished  *prom.CounterVec
	replays         prom.Counter
}

// NewPrometheusRecorder constructs the collectors and registers them on reg
// (a fresh registry when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		publishDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Duration of publish transactions from lock request to release",
			Buckets:   prom.DefBuckets,
		}, []string{"outcome"}),
		publishOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "publish_outcomes_total",
			Help:      "Publish transactions by result code",
		}, []string{"code"}),
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual transaction stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		lockWait: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "lock_wait_seconds",
			Help:      "Time spent queued for the publish lock",
			Buckets:   prom.DefBuckets,
		}),
		itemsPublished: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "items_published_total",
			Help:      "Documents pushed to the remote, by category",
		}, []string{"category"}),
		replays: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "publish_replays_total",
			Help:      "Transactions replayed from a fresh clone after a rejected push",
		}),
	}
	reg.MustRegister(pr.publishDuration, pr.publishOutcome, pr.stageDuration, pr.lockWait, pr.itemsPublished, pr.replays)
	return pr
}

func (p *PrometheusRecorder) ObservePublishDuration(outcome OutcomeLabel, d time.Duration) {
	if p == nil {
		return
	}
	p.publishDuration.WithLabelValues(string(outcome)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncPublishOutcome(code string) {
	if p == nil {
		return
	}
	p.publishOutcome.WithLabelValues(code).Inc()
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveLockWait(d time.Duration) {
	if p == nil {
		return
	}
	p.lockWait.Observe(d.Seconds())
}

func (p *PrometheusRecorder) AddItemsPublished(category string, n int) {
	if p == nil {
		return
	}
	p.itemsPublished.WithLabelValues(category).Add(float64(n))
}

func (p *PrometheusRecorder) IncReplay() {
	if p == nil {
		return
	}
	p.replays.Inc()
}
