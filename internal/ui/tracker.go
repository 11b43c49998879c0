package ui

import (
	"sync"
	"time"

	"github.com/vigilfs/vigil/internal/watch"
)

// FeedTracker accumulates feed state across batches.
// It is safe for concurrent use.
type FeedTracker struct {
	mu        sync.RWMutex
	startTime time.Time
	batches   int
	paths     int
	lastEvent time.Time
	byCat     map[watch.Category]*CategoryCount
	errors    []ErrorEvent
	warnings  []ErrorEvent

	// Throughput tracking, sampled so single bursts don't dominate
	lastPaths     int       // Path count at last speed calculation
	lastSpeedCalc time.Time // Last time we calculated speed
	currentSpeed  float64   // Current paths/sec
	avgSpeed      float64   // Rolling average speed
	peakSpeed     float64   // Maximum observed speed
	speedSamples  int       // Number of speed samples taken
	sparkline     *Sparkline
}

// SpeedStats contains throughput metrics for display.
type SpeedStats struct {
	Current float64 // Current paths/sec
	Avg     float64 // Rolling average
	Peak    float64 // Maximum observed
}

// FeedStats contains a snapshot of the current feed state.
type FeedStats struct {
	Batches    int
	Paths      int
	LastEvent  time.Time
	ErrorCount int
	WarnCount  int
	Speed      SpeedStats
}

// NewFeedTracker creates a new feed tracker.
func NewFeedTracker() *FeedTracker {
	now := time.Now()
	return &FeedTracker{
		startTime:     now,
		lastSpeedCalc: now,
		byCat:         make(map[watch.Category]*CategoryCount),
		sparkline:     NewSparkline(60),
	}
}

// AddBatch records a delivered batch.
func (f *FeedTracker) AddBatch(event BatchEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.batches++
	f.paths += len(event.Paths)

	when := event.Time
	if when.IsZero() {
		when = time.Now()
	}
	f.lastEvent = when

	cc, ok := f.byCat[event.Category]
	if !ok {
		cc = &CategoryCount{Category: event.Category}
		f.byCat[event.Category] = cc
	}
	cc.Batches++
	cc.Paths += len(event.Paths)

	// Sample speed every 500ms to avoid noise
	now := time.Now()
	elapsed := now.Sub(f.lastSpeedCalc)
	if elapsed >= 500*time.Millisecond {
		delta := f.paths - f.lastPaths
		if delta > 0 {
			speed := float64(delta) / elapsed.Seconds()
			f.currentSpeed = speed

			f.speedSamples++
			if f.speedSamples == 1 {
				f.avgSpeed = speed
			} else {
				// Smoothing factor 0.2 gives responsive but stable average
				f.avgSpeed = 0.2*speed + 0.8*f.avgSpeed
			}

			if speed > f.peakSpeed {
				f.peakSpeed = speed
			}

			f.sparkline.Add(speed)
		} else {
			f.currentSpeed = 0
			f.sparkline.Add(0)
		}

		f.lastPaths = f.paths
		f.lastSpeedCalc = now
	}
}

// AddError records an error or warning.
func (f *FeedTracker) AddError(event ErrorEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if event.IsWarn {
		f.warnings = append(f.warnings, event)
	} else {
		f.errors = append(f.errors, event)
	}
}

// Stats returns the current feed snapshot.
func (f *FeedTracker) Stats() FeedStats {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return FeedStats{
		Batches:    f.batches,
		Paths:      f.paths,
		LastEvent:  f.lastEvent,
		ErrorCount: len(f.errors),
		WarnCount:  len(f.warnings),
		Speed: SpeedStats{
			Current: f.currentSpeed,
			Avg:     f.avgSpeed,
			Peak:    f.peakSpeed,
		},
	}
}

// CategorySummary returns per-category counts in canonical category order,
// skipping categories that saw no events.
func (f *FeedTracker) CategorySummary() []CategoryCount {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var out []CategoryCount
	for _, cat := range watch.Categories() {
		if cc, ok := f.byCat[cat]; ok {
			out = append(out, *cc)
		}
	}
	return out
}

// CategoryCountFor returns the tally for one category.
func (f *FeedTracker) CategoryCountFor(cat watch.Category) CategoryCount {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if cc, ok := f.byCat[cat]; ok {
		return *cc
	}
	return CategoryCount{Category: cat}
}

// Elapsed returns time since tracker creation.
func (f *FeedTracker) Elapsed() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return time.Since(f.startTime)
}

// Errors returns the list of recorded errors.
func (f *FeedTracker) Errors() []ErrorEvent {
	f.mu.RLock()
	defer f.mu.RUnlock()

	result := make([]ErrorEvent, len(f.errors))
	copy(result, f.errors)
	return result
}

// Warnings returns the list of recorded warnings.
func (f *FeedTracker) Warnings() []ErrorEvent {
	f.mu.RLock()
	defer f.mu.RUnlock()

	result := make([]ErrorEvent, len(f.warnings))
	copy(result, f.warnings)
	return result
}

// RenderSparkline returns the throughput sparkline at the given width.
func (f *FeedTracker) RenderSparkline(width int) string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.sparkline == nil {
		return ""
	}
	return f.sparkline.Render(width)
}

// SpeedStats returns current throughput statistics.
func (f *FeedTracker) SpeedStats() SpeedStats {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return SpeedStats{
		Current: f.currentSpeed,
		Avg:     f.avgSpeed,
		Peak:    f.peakSpeed,
	}
}
