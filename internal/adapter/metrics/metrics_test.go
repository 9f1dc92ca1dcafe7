package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPipelineMetrics(t *testing.T) {
	t.Run("Independent Registries", func(t *testing.T) {
		// Two pipelines in one process must not collide on registration.
		a := NewPipelineMetrics(nil)
		b := NewPipelineMetrics(nil)
		a.Entry(StatusAccepted)
		if got := testutil.ToFloat64(b.EntriesTotal.WithLabelValues(StatusAccepted)); got != 0 {
			t.Errorf("expected registries to be independent, got %v", got)
		}
	})

	t.Run("Records Values", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		m := NewPipelineMetrics(reg)
		m.Entry(StatusSampleRate)
		m.Entry(StatusSampleRate)
		m.Batch(ResultPersisted)
		m.Attempt()
		m.SetQueueLength(7)

		if got := testutil.ToFloat64(m.EntriesTotal.WithLabelValues(StatusSampleRate)); got != 2 {
			t.Errorf("expected 2 sampled drops, got %v", got)
		}
		if got := testutil.ToFloat64(m.BatchesTotal.WithLabelValues(ResultPersisted)); got != 1 {
			t.Errorf("expected 1 persisted batch, got %v", got)
		}
		if got := testutil.ToFloat64(m.QueueLength); got != 7 {
			t.Errorf("expected queue length 7, got %v", got)
		}
	})

	t.Run("Nil Is Safe", func(t *testing.T) {
		var m *PipelineMetrics
		m.Entry(StatusAccepted)
		m.Batch(ResultDropped)
		m.Attempt()
		m.Retransmitted(3)
		m.SetQueueLength(1)
		m.SetFailedStoreEntries(1)
	})
}
