// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sync"
	"time"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	Failures  int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64
	Failures    int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64
}

// Snapshot represents the session statistics at a point in time.
type Snapshot struct {
	UptimeSeconds  float64
	Load           *OperationSnapshot
	Write          *OperationSnapshot
	Subscribe      *OperationSnapshot
	EventsReceived int64
}

// Operation names for the collector.
const (
	OpLoad      = "load"
	OpWrite     = "write"
	OpSubscribe = "subscribe"
)

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe and safe to call on a nil *Collector.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
	events    int64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{
			MinTime: time.Duration(math.MaxInt64),
		}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records timing for an operation. failed marks the attempt as
// unsuccessful; it still counts towards latency.
func (c *Collector) RecordTiming(op string, duration time.Duration, failed bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration
	if failed {
		m.Failures++
	}

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// RecordEvent counts one message delivered by a live feed.
func (c *Collector) RecordEvent() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.events++
	c.mu.Unlock()
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}

	return &OperationSnapshot{
		Count:       m.Count,
		Failures:    m.Failures,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		UptimeSeconds:  time.Since(c.startTime).Seconds(),
		Load:           snapshotOp(c.ops[OpLoad]),
		Write:          snapshotOp(c.ops[OpWrite]),
		Subscribe:      snapshotOp(c.ops[OpSubscribe]),
		EventsReceived: c.events,
	}
}

// LogAttrs flattens the snapshot into slog key/value pairs.
func (s Snapshot) LogAttrs() []any {
	attrs := []any{
		"uptime_s", s.UptimeSeconds,
		"events_received", s.EventsReceived,
	}
	add := func(name string, op *OperationSnapshot) {
		if op == nil {
			return
		}
		attrs = append(attrs,
			name+"_count", op.Count,
			name+"_failures", op.Failures,
			name+"_avg_ms", op.AvgTimeMs,
			name+"_max_ms", op.MaxTimeMs,
		)
	}
	add(OpLoad, s.Load)
	add(OpWrite, s.Write)
	add(OpSubscribe, s.Subscribe)
	return attrs
}
