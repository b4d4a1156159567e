package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "beacon"

// Counters incremented on the UDP hot path. Registered once at startup
// via Register.
var (
	ResponsesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "responses_sent_total",
		Help:      "Server list responses sent to browser clients.",
	})

	InvalidPackets = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invalid_packets_total",
		Help:      "Datagrams discarded because they were not list requests.",
	})

	RateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Requests dropped by the per-IP rate limiter.",
	})

	DuplicateClients = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "duplicate_clients_total",
		Help:      "Requests from endpoints already present in the tracker.",
	})

	RefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "list_refresh_total",
		Help:      "Server list refresh attempts by result.",
	}, []string{"result"})

	RefreshDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "list_refresh_duration_seconds",
		Help:      "Time spent fetching and rebuilding the server list.",
		Buckets:   prometheus.DefBuckets,
	})
)

// StatsCollector exports point-in-time gauges sampled from the running
// components at scrape time.
type StatsCollector struct {
	serverCount    func() int
	trackedClients func() int
	auditQueue     func() int

	serverCountDesc    *prometheus.Desc
	trackedClientsDesc *prometheus.Desc
	auditQueueDesc     *prometheus.Desc
}

// NewStatsCollector builds a collector over the supplied samplers. Each
// func must be safe to call from the scrape goroutine.
func NewStatsCollector(serverCount, trackedClients, auditQueue func() int) *StatsCollector {
	return &StatsCollector{
		serverCount:    serverCount,
		trackedClients: trackedClients,
		auditQueue:     auditQueue,
		serverCountDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "server_count"),
			"Servers in the current list snapshot.",
			nil, nil,
		),
		trackedClientsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "tracked_clients"),
			"Client endpoints currently held by the duplicate tracker.",
			nil, nil,
		),
		auditQueueDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "audit_queue_depth"),
			"Audit entries waiting for the next flush.",
			nil, nil,
		),
	}
}

func (c *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.serverCountDesc
	ch <- c.trackedClientsDesc
	ch <- c.auditQueueDesc
}

func (c *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.serverCountDesc, prometheus.GaugeValue, float64(c.serverCount()))
	ch <- prometheus.MustNewConstMetric(c.trackedClientsDesc, prometheus.GaugeValue, float64(c.trackedClients()))
	ch <- prometheus.MustNewConstMetric(c.auditQueueDesc, prometheus.GaugeValue, float64(c.auditQueue()))
}

// Register installs the hot-path counters and the stats collector on the
// default registry.
func Register(stats *StatsCollector) {
	prometheus.MustRegister(
		ResponsesSent,
		InvalidPackets,
		RateLimited,
		DuplicateClients,
		RefreshTotal,
		RefreshDuration,
		stats,
	)
}
