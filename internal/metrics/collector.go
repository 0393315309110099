package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// PoolStats provides the metrics collector access to evaluation pool state.
type PoolStats interface {
	Pending() int
	InFlight() int
	Workers() int
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	pool  *pgxpool.Pool
	stats PoolStats

	evalPending     *prometheus.Desc
	evalInFlight    *prometheus.Desc
	evalWorkers     *prometheus.Desc
	dbTotalConns    *prometheus.Desc
	dbAcquiredConns *prometheus.Desc
	dbIdleConns     *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time.
// pool may be nil (metrics will report 0). stats may be nil if no evaluation pool is running.
func NewCollector(pool *pgxpool.Pool, stats PoolStats) *Collector {
	return &Collector{
		pool:  pool,
		stats: stats,
		evalPending: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "eval_pool", "pending"),
			"Evaluation requests waiting for a worker.",
			nil, nil,
		),
		evalInFlight: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "eval_pool", "in_flight"),
			"Evaluation requests currently being processed.",
			nil, nil,
		),
		evalWorkers: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "eval_pool", "workers"),
			"Configured evaluation workers.",
			nil, nil,
		),
		dbTotalConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "total_conns"),
			"Total database pool connections.",
			nil, nil,
		),
		dbAcquiredConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "acquired_conns"),
			"Database pool connections currently in use.",
			nil, nil,
		),
		dbIdleConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "idle_conns"),
			"Database pool idle connections.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.evalPending
	ch <- c.evalInFlight
	ch <- c.evalWorkers
	ch <- c.dbTotalConns
	ch <- c.dbAcquiredConns
	ch <- c.dbIdleConns
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.stats != nil {
		ch <- prometheus.MustNewConstMetric(c.evalPending, prometheus.GaugeValue, float64(c.stats.Pending()))
		ch <- prometheus.MustNewConstMetric(c.evalInFlight, prometheus.GaugeValue, float64(c.stats.InFlight()))
		ch <- prometheus.MustNewConstMetric(c.evalWorkers, prometheus.GaugeValue, float64(c.stats.Workers()))
	} else {
		ch <- prometheus.MustNewConstMetric(c.evalPending, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.evalInFlight, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.evalWorkers, prometheus.GaugeValue, 0)
	}

	// Database pool stats
	if c.pool != nil {
		stat := c.pool.Stat()
		ch <- prometheus.MustNewConstMetric(c.dbTotalConns, prometheus.GaugeValue, float64(stat.TotalConns()))
		ch <- prometheus.MustNewConstMetric(c.dbAcquiredConns, prometheus.GaugeValue, float64(stat.AcquiredConns()))
		ch <- prometheus.MustNewConstMetric(c.dbIdleConns, prometheus.GaugeValue, float64(stat.IdleConns()))
	} else {
		ch <- prometheus.MustNewConstMetric(c.dbTotalConns, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.dbAcquiredConns, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.dbIdleConns, prometheus.GaugeValue, 0)
	}
}
