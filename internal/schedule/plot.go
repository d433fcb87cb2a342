package schedule

import (
	"fmt"
	"time"

	"github.com/guptarohit/asciigraph"
)

// Progress samples the cumulative number of words whose chunk window has
// fully elapsed at n evenly spaced points of total.
func Progress(slices []Slice, counts []int, total time.Duration, n int) []float64 {
	if n < 2 {
		n = 2
	}
	out := make([]float64, n)
	for k := 0; k < n; k++ {
		t := time.Duration(float64(total) * float64(k) / float64(n-1))
		words := 0.0
		for i, s := range slices {
			if i >= len(counts) || t < s.Start {
				continue
			}
			frac := 1.0
			if s.Duration > 0 && t < s.End() {
				frac = float64(t-s.Start) / float64(s.Duration)
			}
			words += frac * float64(counts[i])
		}
		out[k] = words
	}
	return out
}

// Plot renders the reveal curve (words shown over time) as an ASCII chart.
func Plot(slices []Slice, counts []int, total time.Duration, width int) string {
	if len(slices) == 0 {
		return "(no chunks)"
	}
	data := Progress(slices, counts, total, width)
	return asciigraph.Plot(data,
		asciigraph.Height(10),
		asciigraph.Width(width),
		asciigraph.Caption(fmt.Sprintf("words revealed over %s", total)),
	)
}
