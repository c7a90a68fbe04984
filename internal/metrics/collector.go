package metrics

import (
	"context"
	"time"

	"vidshare/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	Stats(ctx context.Context) (Stats, error)
}

// Stats holds the current library statistics
type Stats struct {
	TotalRecords     int
	ConvertedRecords int
	TotalBytes       int64
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := c.statsProvider.Stats(ctx)
	if err != nil {
		logging.Warn("Metrics collection failed: %v", err)
		return
	}

	MediaRecordsTotal.WithLabelValues("true").Set(float64(stats.ConvertedRecords))
	MediaRecordsTotal.WithLabelValues("false").Set(float64(stats.TotalRecords - stats.ConvertedRecords))
	MediaStoredBytes.Set(float64(stats.TotalBytes))

	logging.Debug("Metrics collected: records=%d, converted=%d, bytes=%d",
		stats.TotalRecords, stats.ConvertedRecords, stats.TotalBytes)
}
