// Package clock provides the tick sources that drive a reveal run.
//
// Both implementations follow the same contract: callbacks run one at a time
// on the goroutine that called Run, never concurrently, and a stopped Timer
// never fires. Virtual advances time instantly from one due callback to the
// next and is used for offline rendering and tests; Realtime follows the wall
// clock.
package clock

import (
	"context"
	"sync/atomic"
	"time"
)

// Func is a scheduled callback. It receives the clock time at which it fires.
type Func func(now time.Time)

// Timer cancels a pending callback.
type Timer interface {
	// Stop prevents the callback from firing. It reports whether the call
	// stopped it (false if it already fired or was stopped).
	Stop() bool
}

// Clock is what the reveal engine schedules against.
type Clock interface {
	Now() time.Time
	// OnNextTick fires fn at the next display frame boundary.
	OnNextTick(fn Func) Timer
	// ScheduleAfter fires fn once d has elapsed.
	ScheduleAfter(d time.Duration, fn Func) Timer
}

// Driver is a Clock that owns its event loop.
type Driver interface {
	Clock
	// Run executes callbacks until Halt, context cancellation, or (for
	// clocks that can tell) until nothing is left to run.
	Run(ctx context.Context) error
	// Halt makes Run return after the current callback.
	Halt()
	FPS() int
}

type timer struct {
	done atomic.Bool
	fn   Func
	due  time.Time
	seq  uint64
	wall *time.Timer
}

func (t *timer) Stop() bool {
	if !t.done.CompareAndSwap(false, true) {
		return false
	}
	if t.wall != nil {
		t.wall.Stop()
	}
	return true
}

// fire runs the callback unless it was stopped first.
func (t *timer) fire(now time.Time) {
	if t.done.CompareAndSwap(false, true) {
		t.fn(now)
	}
}

// frameAfter returns the first frame boundary strictly after now, with frames
// at origin + k/fps seconds. Computing each boundary from k avoids drift at
// rates that do not divide a second evenly.
func frameAfter(origin, now time.Time, fps int) time.Time {
	elapsed := now.Sub(origin)
	if elapsed < 0 {
		return origin
	}
	k := int64(elapsed)*int64(fps)/int64(time.Second) + 1
	next := origin.Add(frameOffset(k, fps))
	for !next.After(now) {
		k++
		next = origin.Add(frameOffset(k, fps))
	}
	return next
}

func frameOffset(k int64, fps int) time.Duration {
	return time.Duration(k * int64(time.Second) / int64(fps))
}
