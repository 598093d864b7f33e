package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "feedbot"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	feedings      *prom.CounterVec
	deaths        prom.Counter
	adoptions     *prom.CounterVec
	sweeps        *prom.CounterVec
	sweepDuration prom.Histogram
	pets          *prom.GaugeVec
}

// NewPrometheusRecorder constructs and registers the bot metrics on reg.
// A nil reg gets a fresh private registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		feedings: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "feedings_total",
			Help:      "Feeding attempts by result",
		}, []string{"result"}),
		deaths: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "deaths_total",
			Help:      "Pets that died of neglect",
		}),
		adoptions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "adoptions_total",
			Help:      "Adoption handshakes by outcome",
		}, []string{"outcome"}),
		sweeps: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_total",
			Help:      "Daily death sweeps by outcome",
		}, []string{"outcome"}),
		sweepDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of the daily death sweep",
			Buckets:   prom.DefBuckets,
		}),
		pets: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "pets",
			Help:      "Pets currently stored by status",
		}, []string{"status"}),
	}
	reg.MustRegister(pr.feedings, pr.deaths, pr.adoptions, pr.sweeps, pr.sweepDuration, pr.pets)
	return pr
}

func (p *PrometheusRecorder) IncFeeding(result FeedingResult) {
	if p == nil {
		return
	}
	p.feedings.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) IncDeaths(n int) {
	if p == nil || n <= 0 {
		return
	}
	p.deaths.Add(float64(n))
}

func (p *PrometheusRecorder) IncAdoption(outcome AdoptionOutcome) {
	if p == nil {
		return
	}
	p.adoptions.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveSweep(d time.Duration, outcome SweepOutcome) {
	if p == nil {
		return
	}
	p.sweeps.WithLabelValues(string(outcome)).Inc()
	p.sweepDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetPets(alive, dead int) {
	if p == nil {
		return
	}
	p.pets.WithLabelValues("alive").Set(float64(alive))
	p.pets.WithLabelValues("dead").Set(float64(dead))
}
