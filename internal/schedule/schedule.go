package schedule

import (
	"fmt"
	"math"
	"time"
)

// Slice is the time window of one chunk, relative to the start of a run.
type Slice struct {
	Index    int
	Start    time.Duration
	Duration time.Duration
}

// End is the exclusive end of the window.
func (s Slice) End() time.Duration { return s.Start + s.Duration }

// Compute splits total across chunks proportionally to their word counts so
// that reveal speed is uniform in words per second. Slice boundaries are
// rounded from the running word count, so durations never go negative and
// always sum to total exactly.
func Compute(counts []int, total time.Duration) ([]Slice, error) {
	if total < 0 {
		return nil, fmt.Errorf("negative total duration %s", total)
	}
	sum := 0
	for i, w := range counts {
		if w <= 0 {
			return nil, fmt.Errorf("chunk %d has %d words", i, w)
		}
		sum += w
	}
	if len(counts) == 0 {
		return nil, nil
	}

	slices := make([]Slice, len(counts))
	var start time.Duration
	cum := 0
	for i, w := range counts {
		cum += w
		end := total
		if i < len(counts)-1 {
			end = time.Duration(math.Round(float64(total) * float64(cum) / float64(sum)))
		}
		slices[i] = Slice{Index: i, Start: start, Duration: end - start}
		start = end
	}
	return slices, nil
}

// Total returns the sum of the slice durations.
func Total(slices []Slice) time.Duration {
	var t time.Duration
	for _, s := range slices {
		t += s.Duration
	}
	return t
}

// At returns the index of the slice containing offset, -1 before the first
// slice and len-1 at or after the end.
func At(slices []Slice, offset time.Duration) int {
	if len(slices) == 0 || offset < 0 {
		return -1
	}
	for i, s := range slices {
		if offset < s.End() {
			return i
		}
	}
	return len(slices) - 1
}
