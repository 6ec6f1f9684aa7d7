package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// Counter reports a current count at scrape time.
type Counter interface {
	Count() int
}

// WordCounter reports the size of the word catalog.
type WordCounter interface {
	Len() int
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	pool    *pgxpool.Pool
	scratch Counter
	words   WordCounter

	workspaces      *prometheus.Desc
	wordsLoaded     *prometheus.Desc
	dbTotalConns    *prometheus.Desc
	dbAcquiredConns *prometheus.Desc
	dbIdleConns     *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time.
// Any argument may be nil; its gauges then report 0.
func NewCollector(pool *pgxpool.Pool, scratch Counter, words WordCounter) *Collector {
	return &Collector{
		pool:    pool,
		scratch: scratch,
		words:   words,
		workspaces: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "scratch_workspaces"),
			"Request workspaces currently on disk.",
			nil, nil,
		),
		wordsLoaded: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "words_loaded"),
			"Word cards in the catalog.",
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
	ch <- c.workspaces
	ch <- c.wordsLoaded
	ch <- c.dbTotalConns
	ch <- c.dbAcquiredConns
	ch <- c.dbIdleConns
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	var workspaces, words float64
	if c.scratch != nil {
		workspaces = float64(c.scratch.Count())
	}
	if c.words != nil {
		words = float64(c.words.Len())
	}
	ch <- prometheus.MustNewConstMetric(c.workspaces, prometheus.GaugeValue, workspaces)
	ch <- prometheus.MustNewConstMetric(c.wordsLoaded, prometheus.GaugeValue, words)

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
