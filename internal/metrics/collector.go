package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ScratchStats provides the metrics collector access to scratch disk state.
type ScratchStats interface {
	Usage() (arenas int, bytes int64)
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	scratch ScratchStats

	// Descriptors for scrape-time gauges.
	scratchArenas *prometheus.Desc
	scratchBytes  *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time.
// scratch may be nil (metrics will report 0).
func NewCollector(scratch ScratchStats) *Collector {
	return &Collector{
		scratch: scratch,
		scratchArenas: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "scratch", "arenas"),
			"Request arenas currently on scratch disk.",
			nil, nil,
		),
		scratchBytes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "scratch", "bytes"),
			"Bytes held by request arenas on scratch disk.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.scratchArenas
	ch <- c.scratchBytes
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	var arenas int
	var bytes int64
	if c.scratch != nil {
		arenas, bytes = c.scratch.Usage()
	}
	ch <- prometheus.MustNewConstMetric(c.scratchArenas, prometheus.GaugeValue, float64(arenas))
	ch <- prometheus.MustNewConstMetric(c.scratchBytes, prometheus.GaugeValue, float64(bytes))
}
