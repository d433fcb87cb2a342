package clock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestVirtualTicksAtFrameBoundaries(t *testing.T) {
	v := NewVirtual(30)
	var stamps []time.Duration

	var tick Func
	tick = func(now time.Time) {
		stamps = append(stamps, now.Sub(Epoch))
		if len(stamps) < 31 {
			v.OnNextTick(tick)
		}
	}
	v.OnNextTick(tick)

	if err := v.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(stamps) != 31 {
		t.Fatalf("expected 31 ticks, got %d", len(stamps))
	}
	if stamps[0] != time.Second/30 {
		t.Errorf("first tick at %s, expected one frame", stamps[0])
	}
	// the 30th frame after the first lands on exactly one second later
	if stamps[30]-stamps[0] != time.Second {
		t.Errorf("expected 1s between tick 0 and 30, got %s", stamps[30]-stamps[0])
	}
	for i := 1; i < len(stamps); i++ {
		if stamps[i] <= stamps[i-1] {
			t.Fatalf("ticks not increasing at %d: %v", i, stamps)
		}
	}
}

func TestVirtualDeferredOrder(t *testing.T) {
	v := NewVirtual(60)
	var order []int
	v.ScheduleAfter(200*time.Millisecond, func(time.Time) { order = append(order, 3) })
	v.ScheduleAfter(100*time.Millisecond, func(time.Time) { order = append(order, 1) })
	v.ScheduleAfter(100*time.Millisecond, func(time.Time) { order = append(order, 2) })

	v.Advance(150 * time.Millisecond)
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("expected [1 2] after 150ms, got %v", order)
	}
	if got := v.Now().Sub(Epoch); got != 150*time.Millisecond {
		t.Errorf("expected clock at 150ms, got %s", got)
	}
	v.Advance(time.Second)
	if len(order) != 3 || order[2] != 3 {
		t.Errorf("expected [1 2 3], got %v", order)
	}
}

func TestVirtualStopPreventsFiring(t *testing.T) {
	v := NewVirtual(60)
	fired := false
	timer := v.ScheduleAfter(time.Millisecond, func(time.Time) { fired = true })
	if !timer.Stop() {
		t.Error("first Stop should report true")
	}
	if timer.Stop() {
		t.Error("second Stop should report false")
	}
	if v.Pending() != 0 {
		t.Errorf("expected no pending timers, got %d", v.Pending())
	}
	v.Run(context.Background())
	if fired {
		t.Error("stopped timer fired")
	}
}

func TestVirtualHaltAndContext(t *testing.T) {
	v := NewVirtual(60)
	count := 0
	var tick Func
	tick = func(time.Time) {
		count++
		if count == 5 {
			v.Halt()
		}
		v.OnNextTick(tick)
	}
	v.OnNextTick(tick)
	if err := v.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if count != 5 {
		t.Errorf("expected 5 ticks before halt, got %d", count)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := NewVirtual(60)
	w.OnNextTick(func(time.Time) {})
	if err := w.Run(ctx); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestFrameAfterIsStrictlyLater(t *testing.T) {
	for _, fps := range []int{24, 30, 60, 144} {
		now := Epoch
		for i := 0; i < 500; i++ {
			next := frameAfter(Epoch, now, fps)
			if !next.After(now) {
				t.Fatalf("fps %d: frame %s not after %s", fps, next, now)
			}
			now = next
		}
		if got := now.Sub(Epoch); got < time.Duration(500)*time.Second/time.Duration(fps)-time.Microsecond {
			t.Errorf("fps %d: 500 frames ended at %s", fps, got)
		}
	}
}

func TestRealtimeRunsCallbacksAndHalts(t *testing.T) {
	r := NewRealtime(120)
	ticks := 0
	deferred := false

	var tick Func
	tick = func(time.Time) {
		ticks++
		if ticks < 3 {
			r.OnNextTick(tick)
		}
	}
	r.OnNextTick(tick)
	r.ScheduleAfter(30*time.Millisecond, func(time.Time) {
		deferred = true
		r.Halt()
	})
	stopped := r.ScheduleAfter(5*time.Millisecond, func(time.Time) {
		t.Error("stopped realtime timer fired")
	})
	stopped.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !deferred {
		t.Error("deferred callback did not run")
	}
	if ticks != 3 {
		t.Errorf("expected 3 ticks, got %d", ticks)
	}
}

func TestRealtimeCancelHalts(t *testing.T) {
	r := NewRealtime(60)
	// more than the post buffer holds
	for i := 0; i < 100; i++ {
		r.ScheduleAfter(0, func(time.Time) {})
	}
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !r.halted() {
		t.Error("cancelled clock should be halted")
	}
}
