package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const ringSize = 60

// Collector tracks sync counters using lock-free atomics. The engine writes,
// presenters read; the counters always sum to the number of files visited.
type Collector struct {
	created        atomic.Int64
	updated        atomic.Int64
	skipped        atomic.Int64
	failed         atomic.Int64
	foldersCreated atomic.Int64
	filesTotal     atomic.Int64
	bytesTotal     atomic.Int64
	bytesUploaded  atomic.Int64
	startTime      time.Time

	// Ring buffer — written only by the presenter's Tick(), not the engine.
	mu         sync.Mutex
	throughput [ringSize]int64 // bytes delta per second
	ringIdx    int
	ringCount  int
	lastBytes  int64
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// SetTotals records scan totals (called once when the local scan completes).
func (c *Collector) SetTotals(files, bytes int64) {
	c.filesTotal.Store(files)
	c.bytesTotal.Store(bytes)
}

func (c *Collector) AddCreated(n int64)        { c.created.Add(n) }
func (c *Collector) AddUpdated(n int64)        { c.updated.Add(n) }
func (c *Collector) AddSkipped(n int64)        { c.skipped.Add(n) }
func (c *Collector) AddFailed(n int64)         { c.failed.Add(n) }
func (c *Collector) AddFoldersCreated(n int64) { c.foldersCreated.Add(n) }
func (c *Collector) AddBytesUploaded(n int64)  { c.bytesUploaded.Add(n) }

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	Created        int64
	Updated        int64
	Skipped        int64
	Failed         int64
	FoldersCreated int64
	FilesTotal     int64
	BytesTotal     int64
	BytesUploaded  int64
	Elapsed        time.Duration
}

// Visited returns the number of files the sync has classified so far.
func (s Snapshot) Visited() int64 {
	return s.Created + s.Updated + s.Skipped + s.Failed
}

// Snapshot returns a consistent point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		Created:        c.created.Load(),
		Updated:        c.updated.Load(),
		Skipped:        c.skipped.Load(),
		Failed:         c.failed.Load(),
		FoldersCreated: c.foldersCreated.Load(),
		FilesTotal:     c.filesTotal.Load(),
		BytesTotal:     c.bytesTotal.Load(),
		BytesUploaded:  c.bytesUploaded.Load(),
		Elapsed:        c.Elapsed(),
	}
}

// Tick snapshots the upload byte delta into the ring buffer. Called 1/sec by
// the presenter.
func (c *Collector) Tick() {
	currentBytes := c.bytesUploaded.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.throughput[c.ringIdx] = currentBytes - c.lastBytes
	c.lastBytes = currentBytes
	c.ringIdx = (c.ringIdx + 1) % ringSize
	if c.ringCount < ringSize {
		c.ringCount++
	}
}

// RollingSpeed returns average upload bytes/sec over the last n seconds of samples.
func (c *Collector) RollingSpeed(seconds int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := seconds
	if count > c.ringCount {
		count = c.ringCount
	}
	if count == 0 {
		return 0
	}
	var sum int64
	for i := 0; i < count; i++ {
		idx := (c.ringIdx - 1 - i + ringSize) % ringSize
		sum += c.throughput[idx]
	}
	return float64(sum) / float64(count)
}

// ETA estimates time to upload the remaining bytes at the rolling speed.
// Returns 0 when the speed or the remainder is unknown.
func (c *Collector) ETA() time.Duration {
	remaining := c.bytesTotal.Load() - c.bytesUploaded.Load()
	if remaining <= 0 {
		return 0
	}
	speed := c.RollingSpeed(10)
	if speed <= 0 {
		return 0
	}
	return time.Duration(float64(remaining) / speed * float64(time.Second))
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

func (s Snapshot) String() string {
	return fmt.Sprintf("created=%d updated=%d skipped=%d failed=%d folders=%d",
		s.Created, s.Updated, s.Skipped, s.Failed, s.FoldersCreated)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
