// Package telemetry collects in-process diagnostics about resolved queries:
// how many fields were skipped and why, how long each stage took and how
// many flat rows folded into how many objects.
package telemetry

import (
	"os"
	"sort"
	"sync"
	"time"
)

// DisableEnv turns recording off when set to "1" or "true".
const DisableEnv = "GQLQB_TELEMETRY_DISABLED"

// Event is one resolved request.
type Event struct {
	Entity  string
	Compile time.Duration
	Execute time.Duration
	Reshape time.Duration
	Rows    int
	Objects int
	// Skips lists the reason of every skipped field or filter key.
	Skips []string
	Error error
}

// Stats is a point-in-time summary of recorded events.
type Stats struct {
	Requests int            `json:"requests"`
	Errors   int            `json:"errors"`
	Rows     int            `json:"rows"`
	Objects  int            `json:"objects"`
	Skips    map[string]int `json:"skips"`
	Compile  time.Duration  `json:"compile"`
	Execute  time.Duration  `json:"execute"`
	Reshape  time.Duration  `json:"reshape"`
	// Entities lists the entities resolved, sorted.
	Entities []string `json:"entities"`
}

// Collector aggregates events. It is safe for concurrent use.
type Collector struct {
	mu       sync.Mutex
	enabled  bool
	stats    Stats
	entities map[string]bool
}

var (
	globalCollector *Collector
	once            sync.Once
)

// NewCollector creates an enabled collector.
func NewCollector() *Collector {
	return &Collector{
		enabled:  true,
		stats:    Stats{Skips: make(map[string]int)},
		entities: make(map[string]bool),
	}
}

// Default returns the process-wide collector, disabled when DisableEnv is
// set.
func Default() *Collector {
	once.Do(func() {
		globalCollector = NewCollector()
		globalCollector.enabled = !isTelemetryDisabled()
	})
	return globalCollector
}

// Record adds one event. A nil collector ignores it.
func (c *Collector) Record(e Event) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}

	c.stats.Requests++
	if e.Error != nil {
		c.stats.Errors++
	}
	c.stats.Rows += e.Rows
	c.stats.Objects += e.Objects
	c.stats.Compile += e.Compile
	c.stats.Execute += e.Execute
	c.stats.Reshape += e.Reshape
	for _, reason := range e.Skips {
		c.stats.Skips[reason]++
	}
	if e.Entity != "" {
		c.entities[e.Entity] = true
	}
}

// Snapshot returns a copy of the aggregated stats.
func (c *Collector) Snapshot() Stats {
	if c == nil {
		return Stats{Skips: map[string]int{}}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.stats
	out.Skips = make(map[string]int, len(c.stats.Skips))
	for k, v := range c.stats.Skips {
		out.Skips[k] = v
	}
	out.Entities = make([]string, 0, len(c.entities))
	for name := range c.entities {
		out.Entities = append(out.Entities, name)
	}
	sort.Strings(out.Entities)
	return out
}

// Reset clears every counter.
func (c *Collector) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = Stats{Skips: make(map[string]int)}
	c.entities = make(map[string]bool)
}

// IsEnabled reports whether Record has any effect.
func (c *Collector) IsEnabled() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

func isTelemetryDisabled() bool {
	v := os.Getenv(DisableEnv)
	return v == "1" || v == "true"
}
