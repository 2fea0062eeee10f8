package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTiming(t *testing.T) {
	c := NewCollector()

	c.RecordTiming(OpLoad, 10*time.Millisecond, false)
	c.RecordTiming(OpLoad, 30*time.Millisecond, true)

	snap := c.Snapshot()
	require.NotNil(t, snap.Load)
	assert.Equal(t, int64(2), snap.Load.Count)
	assert.Equal(t, int64(1), snap.Load.Failures)
	assert.Equal(t, int64(10), snap.Load.MinTimeMs)
	assert.Equal(t, int64(30), snap.Load.MaxTimeMs)
	assert.InDelta(t, 20.0, snap.Load.AvgTimeMs, 0.001)
	assert.Nil(t, snap.Write, "operations without data are omitted")
}

func TestRecordEventConcurrent(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordEvent()
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), c.Snapshot().EventsReceived)
}

func TestNilCollector(t *testing.T) {
	var c *Collector

	assert.NotPanics(t, func() {
		c.RecordTiming(OpWrite, time.Second, false)
		c.RecordEvent()
		_ = c.Snapshot()
	})
}

func TestLogAttrs(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpWrite, 5*time.Millisecond, false)

	attrs := c.Snapshot().LogAttrs()
	assert.Contains(t, attrs, "write_count")
	assert.NotContains(t, attrs, "load_count")
	assert.Zero(t, len(attrs)%2, "attrs must be key/value pairs")
}
