package ui

import (
	"strings"
)

// sparklineChars are the Unicode block characters for rendering, 8 levels
// from near-empty to full.
var sparklineChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline renders recent samples as a row of Unicode block characters.
// Samples live in a fixed ring buffer, oldest values fall off the left.
type Sparkline struct {
	samples  []float64
	capacity int
	head     int
	count    int
	max      float64
}

// NewSparkline creates a sparkline holding up to capacity samples.
func NewSparkline(capacity int) *Sparkline {
	if capacity <= 0 {
		capacity = 60
	}
	return &Sparkline{
		samples:  make([]float64, capacity),
		capacity: capacity,
	}
}

// Add appends a sample, evicting the oldest when the buffer is full.
func (s *Sparkline) Add(value float64) {
	s.samples[s.head] = value
	s.head = (s.head + 1) % s.capacity
	s.count++

	if value > s.max {
		s.max = value
	}

	// The evicted sample may have been the max, rescan once per lap.
	if s.count%s.capacity == 0 {
		s.rescanMax()
	}
}

func (s *Sparkline) rescanMax() {
	s.max = 0
	for _, v := range s.samples {
		if v > s.max {
			s.max = v
		}
	}
	if s.max < 1 {
		s.max = 1
	}
}

// Render returns the most recent samples as block characters, fitted to
// width. Positions without a sample yet render as spaces.
func (s *Sparkline) Render(width int) string {
	if width <= 0 || width > s.capacity {
		width = s.capacity
	}

	if s.count == 0 {
		return strings.Repeat(" ", width)
	}

	if s.max <= 0 {
		s.rescanMax()
	}

	held := s.count
	if held > s.capacity {
		held = s.capacity
	}

	shown := held
	if shown > width {
		shown = width
	}

	// Walk backwards from the newest sample.
	var sb strings.Builder
	sb.Grow(width * 3)

	for i := 0; i < width-shown; i++ {
		sb.WriteRune(' ')
	}

	start := s.head - shown
	for i := 0; i < shown; i++ {
		idx := (start + i + s.capacity) % s.capacity
		sb.WriteRune(s.charFor(s.samples[idx]))
	}

	return sb.String()
}

// charFor scales a value against the running max into a block character.
func (s *Sparkline) charFor(value float64) rune {
	if s.max <= 0 {
		return sparklineChars[0]
	}
	idx := int(value / s.max * float64(len(sparklineChars)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sparklineChars) {
		idx = len(sparklineChars) - 1
	}
	return sparklineChars[idx]
}

// Clear resets the sparkline.
func (s *Sparkline) Clear() {
	for i := range s.samples {
		s.samples[i] = 0
	}
	s.head = 0
	s.count = 0
	s.max = 0
}

// Count returns the number of samples added.
func (s *Sparkline) Count() int {
	return s.count
}

// Max returns the current maximum value.
func (s *Sparkline) Max() float64 {
	return s.max
}
