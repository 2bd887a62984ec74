package auth

import (
	"time"

	"github.com/iden3/go-circuits/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "verifier"

	resultOK    = "ok"
	resultError = "error"
)

type metrics struct {
	proofs   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// newMetrics creates the verifier collectors and registers them on reg.
// A nil reg leaves them unregistered.
func newMetrics(reg prometheus.Registerer) (m *metrics, err error) {
	defer func() {
		// promauto panics on duplicate registration
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()

	factory := promauto.With(reg)
	return &metrics{
		proofs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "proofs_total",
				Help:      "Total number of verified proofs by circuit and result",
			},
			[]string{"circuit", "result"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "authorization_duration_seconds",
				Help:      "Time spent verifying one authorization response",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"result"},
		),
	}, nil
}

func (m *metrics) observeProof(circuitID circuits.CircuitID, err error) {
	m.proofs.WithLabelValues(string(circuitID), result(err)).Inc()
}

func (m *metrics) observeAuthorization(d time.Duration, err error) {
	m.duration.WithLabelValues(result(err)).Observe(d.Seconds())
}

func result(err error) string {
	if err != nil {
		return resultError
	}
	return resultOK
}
