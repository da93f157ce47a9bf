package cache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// runningCaches holds every Expiring whose sweeper is still running.
var runningCaches sync.Map // *Expiring -> struct{}

var (
	cacheEntries = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "cmd_cache_entries",
		Help: "Number of primary IDs held by the running command caches.",
	}, runningEntries)
	cacheRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cmd_cache_records_total",
		Help: "Total number of record calls on the command cache.",
	}, []string{"kind" /* new | append */})
	cacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cmd_cache_evictions_total",
		Help: "Total number of entries evicted because the command cache was full.",
	})
	cacheSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cmd_cache_swept_total",
		Help: "Total number of entries removed by the age sweep.",
	})
)

// runningEntries sums the live counts of the running caches.
func runningEntries() float64 {
	total := 0
	runningCaches.Range(func(key, _ any) bool {
		total += key.(*Expiring).Count()
		return true
	})
	return float64(total)
}
