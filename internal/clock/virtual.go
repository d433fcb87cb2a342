package clock

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// Epoch is the start time of every Virtual clock, so that frame timestamps
// are reproducible between runs.
var Epoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Virtual is a deterministic clock. Time moves only when callbacks are
// dispatched: to the due time of the next pending callback. Callbacks with
// the same due time fire in the order they were scheduled.
type Virtual struct {
	mu     sync.Mutex
	fps    int
	now    time.Time
	seq    uint64
	queue  timerQueue
	halted bool
}

func NewVirtual(fps int) *Virtual {
	if fps <= 0 {
		fps = 60
	}
	return &Virtual{fps: fps, now: Epoch}
}

func (v *Virtual) FPS() int { return v.fps }

func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

func (v *Virtual) OnNextTick(fn Func) Timer {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.push(frameAfter(Epoch, v.now, v.fps), fn)
}

func (v *Virtual) ScheduleAfter(d time.Duration, fn Func) Timer {
	if d < 0 {
		d = 0
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.push(v.now.Add(d), fn)
}

func (v *Virtual) push(due time.Time, fn Func) *timer {
	v.seq++
	t := &timer{fn: fn, due: due, seq: v.seq}
	heap.Push(&v.queue, t)
	return t
}

// next pops the earliest live timer, skipping stopped ones.
func (v *Virtual) next(limit *time.Time) *timer {
	v.mu.Lock()
	defer v.mu.Unlock()
	for v.queue.Len() > 0 {
		t := v.queue[0]
		if t.done.Load() {
			heap.Pop(&v.queue)
			continue
		}
		if limit != nil && t.due.After(*limit) {
			return nil
		}
		heap.Pop(&v.queue)
		if t.due.After(v.now) {
			v.now = t.due
		}
		return t
	}
	return nil
}

// Step fires the next pending callback. It reports false when nothing is
// pending.
func (v *Virtual) Step() bool {
	t := v.next(nil)
	if t == nil {
		return false
	}
	t.fire(t.due)
	return true
}

// Advance fires every callback due within d, including ones scheduled by
// those callbacks, then moves the clock to now+d.
func (v *Virtual) Advance(d time.Duration) {
	limit := v.Now().Add(d)
	for {
		t := v.next(&limit)
		if t == nil {
			break
		}
		t.fire(t.due)
	}
	v.mu.Lock()
	if limit.After(v.now) {
		v.now = limit
	}
	v.mu.Unlock()
}

// Pending reports how many live callbacks are queued.
func (v *Virtual) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, t := range v.queue {
		if !t.done.Load() {
			n++
		}
	}
	return n
}

// Run dispatches callbacks until the queue drains, Halt is called or ctx is
// cancelled.
func (v *Virtual) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		v.mu.Lock()
		halted := v.halted
		v.mu.Unlock()
		if halted {
			return nil
		}
		if !v.Step() {
			return nil
		}
	}
}

func (v *Virtual) Halt() {
	v.mu.Lock()
	v.halted = true
	v.mu.Unlock()
}

// timerQueue orders timers by due time, then by scheduling order.
type timerQueue []*timer

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].due.Equal(q[j].due) {
		return q[i].seq < q[j].seq
	}
	return q[i].due.Before(q[j].due)
}

func (q timerQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *timerQueue) Push(x interface{}) { *q = append(*q, x.(*timer)) }

func (q *timerQueue) Pop() interface{} {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return t
}
