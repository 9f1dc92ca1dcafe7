package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Entry statuses. Drop reasons follow the usual SDK discard taxonomy.
const (
	StatusAccepted    = "accepted"
	StatusSampleRate  = "sample_rate"
	StatusBeforeSend  = "before_send"
	StatusHookTimeout = "hook_timeout"
	StatusClosed      = "closed"
)

// Batch results.
const (
	ResultBeacon    = "delivered_beacon"
	ResultRequest   = "delivered_request"
	ResultPersisted = "persisted"
	ResultDropped   = "dropped"
)

// PipelineMetrics holds the Prometheus metrics of one pipeline. A nil
// *PipelineMetrics is valid and records nothing.
type PipelineMetrics struct {
	EntriesTotal       *prometheus.CounterVec
	BatchesTotal       *prometheus.CounterVec
	AttemptsTotal      prometheus.Counter
	RetransmittedTotal prometheus.Counter
	QueueLength        prometheus.Gauge
	FailedStoreEntries prometheus.Gauge
}

// NewPipelineMetrics registers the pipeline metrics with reg. A nil reg
// gets a private registry, so several pipelines can coexist in one process.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &PipelineMetrics{
		EntriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logbeacon",
			Subsystem: "pipeline",
			Name:      "entries_total",
			Help:      "Total number of submitted entries by status.",
		}, []string{"status"}), // status: accepted, sample_rate, before_send, hook_timeout, closed
		BatchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logbeacon",
			Subsystem: "transport",
			Name:      "batches_total",
			Help:      "Total number of flushed batches by final result.",
		}, []string{"result"}),
		AttemptsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "logbeacon",
			Subsystem: "transport",
			Name:      "attempts_total",
			Help:      "Total number of delivery attempts, retries included.",
		}),
		RetransmittedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "logbeacon",
			Subsystem: "failed_store",
			Name:      "retransmitted_entries_total",
			Help:      "Total number of entries recovered from the failed-log store and resubmitted.",
		}),
		QueueLength: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "logbeacon",
			Subsystem: "pipeline",
			Name:      "queue_length",
			Help:      "Number of entries waiting for the next flush.",
		}),
		FailedStoreEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "logbeacon",
			Subsystem: "failed_store",
			Name:      "entries",
			Help:      "Number of entries held in the failed-log store after the last write.",
		}),
	}
}

func (m *PipelineMetrics) Entry(status string) {
	if m != nil {
		m.EntriesTotal.WithLabelValues(status).Inc()
	}
}

func (m *PipelineMetrics) Batch(result string) {
	if m != nil {
		m.BatchesTotal.WithLabelValues(result).Inc()
	}
}

func (m *PipelineMetrics) Attempt() {
	if m != nil {
		m.AttemptsTotal.Inc()
	}
}

func (m *PipelineMetrics) Retransmitted(n int) {
	if m != nil {
		m.RetransmittedTotal.Add(float64(n))
	}
}

func (m *PipelineMetrics) SetQueueLength(n int) {
	if m != nil {
		m.QueueLength.Set(float64(n))
	}
}

func (m *PipelineMetrics) SetFailedStoreEntries(n int) {
	if m != nil {
		m.FailedStoreEntries.Set(float64(n))
	}
}
