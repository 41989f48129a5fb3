package database

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// PoolStatsCollector exports go-redis connection pool statistics.
type PoolStatsCollector struct {
	client  *redis.Client
	service string

	hits       *prometheus.Desc
	misses     *prometheus.Desc
	timeouts   *prometheus.Desc
	totalConns *prometheus.Desc
	idleConns  *prometheus.Desc
	staleConns *prometheus.Desc
}

// NewPoolStatsCollector creates a collector for client's pool.
func NewPoolStatsCollector(client *redis.Client, service string) *PoolStatsCollector {
	labels := []string{"service"}
	return &PoolStatsCollector{
		client:  client,
		service: service,
		hits: prometheus.NewDesc("redis_pool_hits_total",
			"Number of times a free connection was found in the pool", labels, nil),
		misses: prometheus.NewDesc("redis_pool_misses_total",
			"Number of times a free connection was not found in the pool", labels, nil),
		timeouts: prometheus.NewDesc("redis_pool_timeouts_total",
			"Number of times a wait for a connection timed out", labels, nil),
		totalConns: prometheus.NewDesc("redis_pool_total_connections",
			"Total number of connections in the pool", labels, nil),
		idleConns: prometheus.NewDesc("redis_pool_idle_connections",
			"Number of idle connections in the pool", labels, nil),
		staleConns: prometheus.NewDesc("redis_pool_stale_connections_total",
			"Number of stale connections removed from the pool", labels, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.timeouts
	ch <- c.totalConns
	ch <- c.idleConns
	ch <- c.staleConns
}

// Collect implements prometheus.Collector.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stat := c.client.PoolStats()

	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(stat.Hits), c.service)
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(stat.Misses), c.service)
	ch <- prometheus.MustNewConstMetric(c.timeouts, prometheus.CounterValue, float64(stat.Timeouts), c.service)
	ch <- prometheus.MustNewConstMetric(c.totalConns, prometheus.GaugeValue, float64(stat.TotalConns), c.service)
	ch <- prometheus.MustNewConstMetric(c.idleConns, prometheus.GaugeValue, float64(stat.IdleConns), c.service)
	ch <- prometheus.MustNewConstMetric(c.staleConns, prometheus.CounterValue, float64(stat.StaleConns), c.service)
}

// RegisterPoolMetrics registers a pool collector with the default registry.
func RegisterPoolMetrics(client *redis.Client, service string) {
	prometheus.MustRegister(NewPoolStatsCollector(client, service))
}
