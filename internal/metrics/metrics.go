// Package metrics exposes Prometheus counters for the memory engine. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	promptsBuilt      *prometheus.CounterVec
	promptTokens      prometheus.Histogram
	promptsTruncated  prometheus.Counter
	chatTurns         *prometheus.CounterVec
	chatCompactions   prometheus.Counter
	contextItems      prometheus.Counter
	remembered        prometheus.Counter
	performed         *prometheus.CounterVec
	batchesRefused    prometheus.Counter
	snapshotsSaved    prometheus.Counter
	snapshotFailures  *prometheus.CounterVec
	snapshotFallbacks prometheus.Counter
	snapshotDuration  prometheus.Histogram
	snapshotBytes     prometheus.Gauge
	queuePending      prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		promptsBuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recall_prompts_built_total",
			Help: "Total number of prompts assembled, by source mix",
		}, []string{"mix"}),
		promptTokens: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "recall_prompt_tokens",
			Help:    "Estimated tokens per assembled prompt",
			Buckets: prometheus.ExponentialBuckets(64, 2, 10),
		}),
		promptsTruncated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recall_prompts_truncated_total",
			Help: "Prompts that left at least one candidate out",
		}),
		chatTurns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recall_chat_turns_total",
			Help: "Chat turns appended, by role",
		}, []string{"role"}),
		chatCompactions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recall_chat_compactions_total",
			Help: "Summaries created from compacted turns",
		}),
		contextItems: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recall_context_items_added_total",
			Help: "Context items added",
		}),
		remembered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recall_remembered_total",
			Help: "Instructions queued with remember",
		}),
		performed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recall_performed_total",
			Help: "Remembered entries executed, by route and result",
		}, []string{"route", "result"}),
		batchesRefused: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recall_perform_batches_refused_total",
			Help: "Perform calls refused for exceeding max_batch_perform",
		}),
		snapshotsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recall_snapshots_saved_total",
			Help: "Session snapshots written",
		}),
		snapshotFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recall_snapshot_failures_total",
			Help: "Snapshot operations that failed, by operation",
		}, []string{"op"}),
		snapshotFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recall_snapshot_fallbacks_total",
			Help: "Unreadable snapshots skipped during restore",
		}),
		snapshotDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "recall_snapshot_duration_seconds",
			Help:    "Time taken to write a snapshot",
			Buckets: prometheus.DefBuckets,
		}),
		snapshotBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "recall_snapshot_bytes",
			Help: "Size of the most recent snapshot",
		}),
		queuePending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "recall_queue_pending",
			Help: "Pending remembered entries",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.promptsBuilt,
		m.promptTokens,
		m.promptsTruncated,
		m.chatTurns,
		m.chatCompactions,
		m.contextItems,
		m.remembered,
		m.performed,
		m.batchesRefused,
		m.snapshotsSaved,
		m.snapshotFailures,
		m.snapshotFallbacks,
		m.snapshotDuration,
		m.snapshotBytes,
		m.queuePending,
	)

	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) PromptBuilt(mix string, tokens int, truncated bool) {
	if m == nil {
		return
	}
	m.promptsBuilt.WithLabelValues(mix).Inc()
	m.promptTokens.Observe(float64(tokens))
	if truncated {
		m.promptsTruncated.Inc()
	}
}

func (m *Metrics) TurnAppended(role string, compactions int) {
	if m == nil {
		return
	}
	m.chatTurns.WithLabelValues(role).Inc()
	m.chatCompactions.Add(float64(compactions))
}

func (m *Metrics) ContextItemAdded() {
	if m == nil {
		return
	}
	m.contextItems.Inc()
}

func (m *Metrics) Remembered() {
	if m == nil {
		return
	}
	m.remembered.Inc()
}

func (m *Metrics) Performed(route string, success bool) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.performed.WithLabelValues(route, result).Inc()
}

func (m *Metrics) BatchRefused() {
	if m == nil {
		return
	}
	m.batchesRefused.Inc()
}

func (m *Metrics) QueuePending(n int) {
	if m == nil {
		return
	}
	m.queuePending.Set(float64(n))
}

func (m *Metrics) SnapshotSaved(d time.Duration, size int) {
	if m == nil {
		return
	}
	m.snapshotsSaved.Inc()
	m.snapshotDuration.Observe(d.Seconds())
	m.snapshotBytes.Set(float64(size))
}

func (m *Metrics) SnapshotFailed(op string) {
	if m == nil {
		return
	}
	m.snapshotFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) SnapshotFallback() {
	if m == nil {
		return
	}
	m.snapshotFallbacks.Inc()
}
