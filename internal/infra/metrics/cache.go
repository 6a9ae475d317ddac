package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(cacheRequestsTotal, cacheEntriesSwept) }

var cacheRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cache_requests_total",
		Help: "Tracks cache hits and misses for various caches.",
	},
	[]string{"cache", "result"}, // e.g., cache="result", result="hit"
)

var cacheEntriesSwept = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "cache_entries_swept_total",
		Help: "Expired cache entries removed by the periodic sweep.",
	},
)

func IncCacheRequest(cacheName, result string) {
	cacheRequestsTotal.WithLabelValues(norm(cacheName), norm(result)).Inc()
}

func AddCacheSwept(n int) {
	cacheEntriesSwept.Add(float64(n))
}
