package clock

import (
	"context"
	"sync"
	"time"
)

// Realtime follows the wall clock. Display ticks come from a ticker at the
// configured rate; deferred callbacks are timed by time.AfterFunc and handed
// back to the Run goroutine, so every callback still runs on one goroutine.
type Realtime struct {
	fps int

	mu    sync.Mutex
	ticks []*timer

	posts    chan *timer
	halt     chan struct{}
	haltOnce sync.Once
}

func NewRealtime(fps int) *Realtime {
	if fps <= 0 {
		fps = 60
	}
	return &Realtime{
		fps:   fps,
		posts: make(chan *timer, 64),
		halt:  make(chan struct{}),
	}
}

func (r *Realtime) FPS() int { return r.fps }

func (r *Realtime) Now() time.Time { return time.Now() }

func (r *Realtime) OnNextTick(fn Func) Timer {
	t := &timer{fn: fn}
	r.mu.Lock()
	r.ticks = append(r.ticks, t)
	r.mu.Unlock()
	return t
}

func (r *Realtime) ScheduleAfter(d time.Duration, fn Func) Timer {
	t := &timer{fn: fn}
	t.wall = time.AfterFunc(d, func() {
		select {
		case r.posts <- t:
		case <-r.halt:
		}
	})
	return t
}

// Run blocks until Halt or ctx cancellation. It never returns on its own
// because wall-clock timers may still be in flight. Cancellation halts the
// clock, which releases timers waiting to post.
func (r *Realtime) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(r.fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Halt()
			return ctx.Err()
		case <-r.halt:
			return nil
		case now := <-ticker.C:
			r.mu.Lock()
			due := r.ticks
			r.ticks = nil
			r.mu.Unlock()
			for _, t := range due {
				if r.halted() {
					return nil
				}
				t.fire(now)
			}
		case t := <-r.posts:
			t.fire(time.Now())
		}
	}
}

func (r *Realtime) halted() bool {
	select {
	case <-r.halt:
		return true
	default:
		return false
	}
}

func (r *Realtime) Halt() {
	r.haltOnce.Do(func() { close(r.halt) })
}
