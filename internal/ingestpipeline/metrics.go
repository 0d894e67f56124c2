package ingestpipeline

import "github.com/prometheus/client_golang/prometheus"

var (
	ColdWriteFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logserver_cold_write_failed_total",
		Help: "Cold store batch writes that exhausted retry and were spilled to disk.",
	})
	CacheUnavailable = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logserver_cache_unavailable_total",
		Help: "Hot store puts skipped because the cache was unavailable.",
	})
	SpillReplayed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "logserver_spill_replayed_total",
		Help: "Records successfully replayed from the on-disk spillover file.",
	})
)

func init() {
	prometheus.MustRegister(ColdWriteFailed, CacheUnavailable, SpillReplayed)
}
