package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "salonflow_sessions",
		Name:      "full_context_cache_hits_total",
		Help:      "Full-context reads served from the cache.",
	})

	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "salonflow_sessions",
		Name:      "full_context_cache_misses_total",
		Help:      "Full-context reads that rebuilt from the underlying data classes.",
	})

	degradedReadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "salonflow_sessions",
		Name:      "degraded_reads_total",
		Help:      "Full-context reads that returned an error-tagged minimal context.",
	})

	writeConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "salonflow_sessions",
		Name:      "write_conflicts_total",
		Help:      "Optimistic update cycles rejected by a concurrent writer.",
	})

	writeRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "salonflow_sessions",
		Name:      "write_retries_total",
		Help:      "Optimistic update cycles retried after a lost race.",
	})

	messagesAppendedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "salonflow_sessions",
		Name:      "messages_appended_total",
		Help:      "Entries appended to per-identity message logs.",
	})
)
