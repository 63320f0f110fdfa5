package aggregate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "advisor_aggregation_cache_hit_total",
		Help: "The total number of aggregation cache hits",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "advisor_aggregation_cache_miss_total",
		Help: "The total number of aggregation cache misses",
	})
)
