package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/julianstephens/daystreak/internal/constants"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	arms       *prom.CounterVec
	fires      *prom.CounterVec
	fireDelay  *prom.HistogramVec
	armedSlots prom.Gauge
}

// NewPrometheusRecorder constructs the scheduler metrics and registers them on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		arms: prom.NewCounterVec(prom.CounterOpts{
			Namespace: constants.MetricsNamespace,
			Name:      "reminder_arms_total",
			Help:      "Reminder slot registrations by result",
		}, []string{"slot", "result"}),
		fires: prom.NewCounterVec(prom.CounterOpts{
			Namespace: constants.MetricsNamespace,
			Name:      "reminder_fires_total",
			Help:      "Reminder firings by outcome",
		}, []string{"slot", "outcome"}),
		fireDelay: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: constants.MetricsNamespace,
			Name:      "reminder_fire_delay_seconds",
			Help:      "How late a firing ran relative to its nominal time",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 60, 300},
		}, []string{"slot"}),
		armedSlots: prom.NewGauge(prom.GaugeOpts{
			Namespace: constants.MetricsNamespace,
			Name:      "reminder_armed_slots",
			Help:      "Number of reminder slots currently armed",
		}),
	}
	reg.MustRegister(pr.arms, pr.fires, pr.fireDelay, pr.armedSlots)
	return pr
}

func (p *PrometheusRecorder) IncArm(slot string, result ArmResult) {
	if p == nil {
		return
	}
	p.arms.WithLabelValues(slot, string(result)).Inc()
}

func (p *PrometheusRecorder) IncFire(slot string, outcome FireOutcome) {
	if p == nil {
		return
	}
	p.fires.WithLabelValues(slot, string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveFireDelay(slot string, d time.Duration) {
	if p == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	p.fireDelay.WithLabelValues(slot).Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetArmedSlots(n int) {
	if p == nil {
		return
	}
	p.armedSlots.Set(float64(n))
}

// HTTPHandler serves the metrics gathered by reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
