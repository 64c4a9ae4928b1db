package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()
	const goroutines = 100
	const opsPerGoroutine = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < opsPerGoroutine; j++ {
				c.AddCreated(1)
				c.AddUpdated(1)
				c.AddSkipped(1)
				c.AddFailed(1)
				c.AddFoldersCreated(1)
				c.AddBytesUploaded(256)
			}
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	expected := int64(goroutines * opsPerGoroutine)
	assert.Equal(t, expected, s.Created)
	assert.Equal(t, expected, s.Updated)
	assert.Equal(t, expected, s.Skipped)
	assert.Equal(t, expected, s.Failed)
	assert.Equal(t, expected, s.FoldersCreated)
	assert.Equal(t, expected*256, s.BytesUploaded)
	assert.Equal(t, expected*4, s.Visited())
}

func TestSnapshotString(t *testing.T) {
	s := Snapshot{Created: 3, Updated: 2, Skipped: 1, FoldersCreated: 4}
	assert.Equal(t, "created=3 updated=2 skipped=1 failed=0 folders=4", s.String())
}

func TestSetTotals(t *testing.T) {
	c := NewCollector()
	c.SetTotals(100, 1024*1024)
	s := c.Snapshot()
	assert.Equal(t, int64(100), s.FilesTotal)
	assert.Equal(t, int64(1024*1024), s.BytesTotal)
}

func TestTickAndRollingSpeed(t *testing.T) {
	c := NewCollector()

	// Simulate 5 seconds at 1000 bytes/sec.
	for i := 0; i < 5; i++ {
		c.AddBytesUploaded(1000)
		c.Tick()
	}

	assert.InDelta(t, 1000.0, c.RollingSpeed(5), 0.01)
}

func TestRollingSpeedPartialWindow(t *testing.T) {
	c := NewCollector()

	c.AddBytesUploaded(500)
	c.Tick()
	c.AddBytesUploaded(500)
	c.Tick()

	// Ask for 10 but only have 2 samples.
	assert.InDelta(t, 500.0, c.RollingSpeed(10), 0.01)
}

func TestRollingSpeedNoSamples(t *testing.T) {
	c := NewCollector()
	assert.Equal(t, 0.0, c.RollingSpeed(5))
}

func TestRingWraparound(t *testing.T) {
	c := NewCollector()

	for i := 0; i < ringSize+10; i++ {
		c.AddBytesUploaded(int64(i + 1))
		c.Tick()
	}

	// Survives wraparound and still averages over the window.
	assert.Greater(t, c.RollingSpeed(ringSize), 0.0)
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1048576, "1.0 MiB"},
		{1073741824, "1.0 GiB"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			require.Equal(t, tt.expected, FormatBytes(tt.input))
		})
	}
}

func TestETA(t *testing.T) {
	c := NewCollector()
	c.SetTotals(10, 10000)

	// 1000 bytes/sec with 5000 bytes uploaded leaves five seconds.
	for i := 0; i < 5; i++ {
		c.AddBytesUploaded(1000)
		c.Tick()
	}
	assert.InDelta(t, 5.0, c.ETA().Seconds(), 0.1)
}

func TestETAUnknown(t *testing.T) {
	c := NewCollector()
	assert.Zero(t, c.ETA())

	// Everything uploaded: nothing remains.
	c.SetTotals(1, 100)
	c.AddBytesUploaded(100)
	c.Tick()
	assert.Zero(t, c.ETA())
}

func TestSnapshotIncludesElapsed(t *testing.T) {
	c := NewCollector()
	time.Sleep(10 * time.Millisecond)
	assert.Greater(t, c.Snapshot().Elapsed, time.Duration(0))
}
