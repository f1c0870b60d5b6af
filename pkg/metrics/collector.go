package metrics

import (
	"time"
)

// ChainStats is the subset of the chain store the collector samples.
type ChainStats interface {
	ListTenants() ([]string, error)
	EntryCount(tenantID string) (uint64, error)
}

// Collector periodically samples chain-level gauges (tenant count and
// per-tenant chain length) from the chain store.
type Collector struct {
	stats  ChainStats
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(stats ChainStats) *Collector {
	return &Collector{
		stats:  stats,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	tenants, err := c.stats.ListTenants()
	if err != nil {
		return
	}
	TenantsTotal.Set(float64(len(tenants)))

	for _, tenantID := range tenants {
		count, err := c.stats.EntryCount(tenantID)
		if err != nil {
			continue
		}
		ChainLength.WithLabelValues(tenantID).Set(float64(count))
	}
}
