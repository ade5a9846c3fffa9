// Package metrics instruments ensemble runs with Prometheus collectors.
package metrics

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const namespace = "fchmm"

// Recorder implements effects.Observer.
type Recorder struct {
	Draws        prometheus.Counter
	DrawDuration prometheus.Histogram
	Runs         *prometheus.CounterVec
	RunDuration  prometheus.Histogram
}

// NewRecorder creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		Draws: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draws_total",
			Help:      "Posterior draws evaluated.",
		}),
		DrawDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "draw_duration_seconds",
			Help:      "Time to evaluate one posterior draw over all tiv values.",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
		}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Ensemble runs by outcome.",
		}, []string{"status"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of an ensemble run.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(r.Draws, r.DrawDuration, r.Runs, r.RunDuration)
	}
	return r
}

func (r *Recorder) ObserveDraw(_ int, elapsed time.Duration) {
	r.Draws.Inc()
	r.DrawDuration.Observe(elapsed.Seconds())
}

func (r *Recorder) ObserveRun(_ int, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.Runs.WithLabelValues(status).Inc()
	r.RunDuration.Observe(elapsed.Seconds())
}

// WriteText writes every family gathered from g in the Prometheus text
// exposition format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
