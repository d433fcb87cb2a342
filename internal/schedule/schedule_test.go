package schedule

import (
	"math/rand"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestComputeEqualChunks(t *testing.T) {
	slices, err := Compute([]int{5, 5}, 1000*time.Millisecond)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	want := []Slice{
		{Index: 0, Start: 0, Duration: 500 * time.Millisecond},
		{Index: 1, Start: 500 * time.Millisecond, Duration: 500 * time.Millisecond},
	}
	for i := range want {
		if slices[i] != want[i] {
			t.Errorf("slice %d: expected %+v, got %+v", i, want[i], slices[i])
		}
	}
}

func TestComputeIsProportional(t *testing.T) {
	slices, err := Compute([]int{5, 5, 2}, 1200*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if slices[0].Duration != 500*time.Millisecond || slices[2].Duration != 200*time.Millisecond {
		t.Errorf("durations not proportional to words: %+v", slices)
	}
}

func TestComputeSumsExactly(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for n := 1; n < 40; n++ {
		counts := make([]int, n)
		for i := range counts {
			counts[i] = 1 + r.Intn(7)
		}
		total := time.Duration(1+r.Intn(30000)) * time.Millisecond / 3

		slices, err := Compute(counts, total)
		if err != nil {
			t.Fatal(err)
		}
		if got := Total(slices); got != total {
			t.Fatalf("n=%d: durations sum to %s, expected %s", n, got, total)
		}
		for i := 1; i < len(slices); i++ {
			if slices[i].Start <= slices[i-1].Start {
				t.Fatalf("n=%d: start offsets not increasing at %d: %+v", n, i, slices)
			}
			if slices[i].Start != slices[i-1].End() {
				t.Fatalf("n=%d: gap between slices %d and %d", n, i-1, i)
			}
		}
	}
}

func TestComputeTinyTotal(t *testing.T) {
	slices, err := Compute([]int{1, 1, 1, 1, 1, 1}, 3*time.Nanosecond)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range slices {
		if s.Duration < 0 {
			t.Fatalf("negative slice: %+v", slices)
		}
	}
	if got := Total(slices); got != 3*time.Nanosecond {
		t.Errorf("durations sum to %s", got)
	}
	if last := slices[len(slices)-1]; last.End() != 3*time.Nanosecond {
		t.Errorf("last slice ends at %s", last.End())
	}
}

func TestComputeRejectsBadInput(t *testing.T) {
	if _, err := Compute([]int{3, 0}, time.Second); err == nil {
		t.Error("expected error for empty chunk")
	}
	if _, err := Compute([]int{3}, -time.Second); err == nil {
		t.Error("expected error for negative duration")
	}
	slices, err := Compute(nil, time.Second)
	if err != nil || len(slices) != 0 {
		t.Errorf("expected empty schedule, got %v / %v", slices, err)
	}
}

func TestAt(t *testing.T) {
	slices, _ := Compute([]int{1, 1, 1}, 300*time.Millisecond)
	tests := []struct {
		offset time.Duration
		want   int
	}{
		{-time.Millisecond, -1},
		{0, 0},
		{99 * time.Millisecond, 0},
		{100 * time.Millisecond, 1},
		{299 * time.Millisecond, 2},
		{time.Second, 2},
	}
	for _, tt := range tests {
		if got := At(slices, tt.offset); got != tt.want {
			t.Errorf("At(%s): expected %d, got %d", tt.offset, tt.want, got)
		}
	}
}

func TestTimelineWriteRead(t *testing.T) {
	slices, _ := Compute([]int{5, 5}, time.Second)
	tl := NewTimeline(slices, []string{"a b c d e", "f g h i j"}, []int{5, 5}, []int{0, 0}, time.Second, "full")

	path := filepath.Join(t.TempDir(), "timeline.yaml")
	if err := WriteTimeline(tl, path); err != nil {
		t.Fatalf("WriteTimeline failed: %v", err)
	}
	read, err := ReadTimeline(path)
	if err != nil {
		t.Fatalf("ReadTimeline failed: %v", err)
	}
	if len(read.Entries) != 2 || read.Entries[1].StartMs != 500 || read.Entries[1].Text != "f g h i j" {
		t.Errorf("timeline mismatch: %+v", read.Entries)
	}
}

func TestProgressAndPlot(t *testing.T) {
	counts := []int{5, 5}
	slices, _ := Compute(counts, time.Second)
	p := Progress(slices, counts, time.Second, 3)
	if p[0] != 0 || p[1] != 5 || p[2] != 10 {
		t.Errorf("unexpected progress samples %v", p)
	}
	if out := Plot(slices, counts, time.Second, 40); !strings.Contains(out, "words revealed") {
		t.Errorf("plot missing caption:\n%s", out)
	}
}
