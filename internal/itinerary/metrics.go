package itinerary

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline outcomes, used as the outcome label
const (
	OutcomeExtracted       = "extracted"
	OutcomeSkipped         = "skipped"
	OutcomeReadFailed      = "read_failed"
	OutcomeNoText          = "no_text"
	OutcomeInferenceFailed = "inference_failed"
	OutcomeDecodeFailed    = "decode_failed"
	OutcomeStoreFailed     = "store_failed"
)

// Metrics holds the Prometheus collectors of the extraction side
type Metrics struct {
	documents *prometheus.CounterVec
	duration  prometheus.Histogram
	records   prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "itinerary",
			Subsystem: "pipeline",
			Name:      "documents_total",
			Help:      "Documents handled by the extraction pipeline, by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "itinerary",
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Time spent extracting one document, including inference calls.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		}),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "itinerary",
			Subsystem: "pipeline",
			Name:      "records_total",
			Help:      "Activity records written in extraction results.",
		}),
	}
	reg.MustRegister(m.documents, m.duration, m.records)
	return m
}

func (m *Metrics) observe(outcome string, started time.Time, records int) {
	m.documents.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSkipped {
		return
	}
	m.duration.Observe(time.Since(started).Seconds())
	m.records.Add(float64(records))
}
