package workqueue

import (
	"github.com/prometheus/client_golang/prometheus"
)

// allStatuses lists every status so idle gauges read 0 instead of disappearing.
var allStatuses = []TaskStatus{
	TaskStatusPending,
	TaskStatusRunning,
	TaskStatusRetrying,
	TaskStatusCompleted,
	TaskStatusFailed,
	TaskStatusCancelled,
}

// Collector reports the number of tracked tasks per status at scrape time.
type Collector struct {
	queue *Queue
	desc  *prometheus.Desc
}

// NewCollector creates a Collector for q. The gauge is named <namespace>_tasks.
func NewCollector(q *Queue, namespace string) *Collector {
	return &Collector{
		queue: q,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "tasks"),
			"Tasks held by the work queue by status.",
			[]string{"status"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	counts := c.queue.Counts()
	for _, status := range allStatuses {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(counts[status]), string(status))
	}
}
