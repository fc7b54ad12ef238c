package ui

import "strings"

// Sparkline renders a text-based throughput chart using Unicode block
// characters. Samples live in a ring buffer; rendering shows the most
// recent ones scaled against the buffer maximum.
type Sparkline struct {
	samples []float64
	head    int
	count   int
	max     float64
}

// sparklineChars are the block characters used for rendering, 8 levels
// from near-empty to full.
var sparklineChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// NewSparkline creates a sparkline holding up to capacity samples.
func NewSparkline(capacity int) *Sparkline {
	if capacity <= 0 {
		capacity = 60
	}
	return &Sparkline{
		samples: make([]float64, capacity),
	}
}

// Add appends a sample, evicting the oldest when the buffer is full.
func (s *Sparkline) Add(value float64) {
	s.samples[s.head] = value
	s.head = (s.head + 1) % len(s.samples)
	s.count++

	if value > s.max {
		s.max = value
	}

	// Recompute max once per full rotation so it can shrink again
	if s.count%len(s.samples) == 0 {
		s.recalculateMax()
	}
}

func (s *Sparkline) recalculateMax() {
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

// Render returns the most recent samples as a string of block characters,
// padded with spaces to exactly width runes.
func (s *Sparkline) Render(width int) string {
	if width <= 0 {
		width = len(s.samples)
	}

	have := s.count
	if have > len(s.samples) {
		have = len(s.samples)
	}
	if have == 0 {
		return strings.Repeat(" ", width)
	}

	if s.max <= 0 {
		s.recalculateMax()
	}

	show := have
	if show > width {
		show = width
	}

	// Walk back from the newest sample
	start := s.head - show
	if start < 0 {
		start += len(s.samples)
	}

	var sb strings.Builder
	sb.Grow(width * 3) // UTF-8 block chars are 3 bytes

	for i := 0; i < show; i++ {
		value := s.samples[(start+i)%len(s.samples)]

		idx := int(value / s.max * float64(len(sparklineChars)-1))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparklineChars) {
			idx = len(sparklineChars) - 1
		}
		sb.WriteRune(sparklineChars[idx])
	}

	for i := show; i < width; i++ {
		sb.WriteRune(' ')
	}

	return sb.String()
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
