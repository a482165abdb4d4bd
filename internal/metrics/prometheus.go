// Package metrics exposes Prometheus counters and gauges for the Memory
// coordinator. Kept intentionally small: the Coordinator's hot path records
// a handful of counters, and the mailbox depth is the one gauge operators
// actually page on.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors wraps the Prometheus collectors for the Memory coordinator.
type Collectors struct {
	registry *prometheus.Registry

	questionsReceived  prometheus.Counter
	answersReceived    prometheus.Counter
	cacheHits          prometheus.Counter
	brainerBroadcasts  prometheus.Counter
	fanoutReplies      prometheus.Counter
	storeErrors        *prometheus.CounterVec
	malformedDropped   *prometheus.CounterVec
	mailboxDepth       prometheus.Gauge
}

var collectors *Collectors

// Init registers the Memory coordinator's collectors under the given
// namespace. Safe to call once per process; a nil Collectors means the
// Record* helpers below become no-ops, so metrics can be disabled by
// simply never calling Init.
func Init(namespace string) *Collectors {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	c := &Collectors{
		registry: registry,
		questionsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_received_total",
			Help:      "Total asker questions consumed from the bus.",
		}),
		answersReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_received_total",
			Help:      "Total brainer answers consumed from the bus.",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Asker questions answered directly from the store.",
		}),
		brainerBroadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "brainer_broadcasts_total",
			Help:      "Questions forwarded to the brainer exchange.",
		}),
		fanoutReplies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_replies_total",
			Help:      "Replies published to pending askers after a brainer answer.",
		}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Store operation failures by operation name.",
		}, []string{"operation"}),
		malformedDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_dropped_total",
			Help:      "Inbound bus deliveries dropped as malformed, by source.",
		}, []string{"source"}),
		mailboxDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mailbox_depth",
			Help:      "Current number of envelopes buffered in the mailbox.",
		}),
	}

	registry.MustRegister(
		c.questionsReceived,
		c.answersReceived,
		c.cacheHits,
		c.brainerBroadcasts,
		c.fanoutReplies,
		c.storeErrors,
		c.malformedDropped,
		c.mailboxDepth,
	)

	collectors = c
	return c
}

func RecordQuestionReceived() {
	if collectors == nil {
		return
	}
	collectors.questionsReceived.Inc()
}

func RecordAnswerReceived() {
	if collectors == nil {
		return
	}
	collectors.answersReceived.Inc()
}

func RecordCacheHit() {
	if collectors == nil {
		return
	}
	collectors.cacheHits.Inc()
}

func RecordBrainerBroadcast() {
	if collectors == nil {
		return
	}
	collectors.brainerBroadcasts.Inc()
}

func RecordFanoutReply() {
	if collectors == nil {
		return
	}
	collectors.fanoutReplies.Inc()
}

func RecordStoreError(operation string) {
	if collectors == nil {
		return
	}
	collectors.storeErrors.WithLabelValues(operation).Inc()
}

func RecordMalformedDropped(source string) {
	if collectors == nil {
		return
	}
	collectors.malformedDropped.WithLabelValues(source).Inc()
}

func SetMailboxDepth(depth int) {
	if collectors == nil {
		return
	}
	collectors.mailboxDepth.Set(float64(depth))
}

// Handler returns an HTTP handler for Prometheus scraping. Returns a 503
// handler if Init hasn't run yet.
func Handler() http.Handler {
	if collectors == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("metrics not initialized"))
		})
	}
	return promhttp.HandlerFor(collectors.registry, promhttp.HandlerOpts{})
}
