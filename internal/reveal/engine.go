// Package reveal drives the per-chunk visibility of a scheduled text reveal.
//
// An Engine moves Idle -> Running -> Completed. In frame timing it ticks on
// every display frame and ramps each chunk's opacity once its window opens;
// in deferred timing every word becomes visible from its own callback at a
// precomputed offset. Stop tears the engine down from any state: pending
// callbacks are cancelled and nothing is rendered afterwards.
package reveal

import (
	"fmt"
	"sync"
	"time"

	"github.com/ivlev/comment2video/internal/clock"
	"github.com/ivlev/comment2video/internal/config"
	"github.com/ivlev/comment2video/internal/schedule"
)

type State int

const (
	Idle State = iota
	Running
	Completed
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Frame is the visibility snapshot handed to the renderer on every tick.
type Frame struct {
	Elapsed time.Duration
	// Section is the section of the most recently opened chunk.
	Section int
	// Opacity holds one value in [0,1] per chunk.
	Opacity []float64
	// Shown is the number of visible words per chunk in deferred timing,
	// nil in frame timing.
	Shown []int
	Done  bool
}

// WordOpacity returns the opacity of one word of a chunk.
func (f Frame) WordOpacity(chunk, word int) float64 {
	if chunk < 0 || chunk >= len(f.Opacity) {
		return 0
	}
	if f.Shown != nil {
		if word < f.Shown[chunk] {
			return 1
		}
		return 0
	}
	return f.Opacity[chunk]
}

type Options struct {
	Slices []schedule.Slice
	// Counts is the word count of every chunk. Required in deferred timing.
	Counts []int
	// Sections maps every chunk to its section. Nil means one section.
	Sections []int
	// Total is the run length; zero means the sum of the slices.
	Total  time.Duration
	Fade   config.FadeStyle
	Easing config.Easing
	Timing config.Timing

	Render            func(Frame) error
	OnSectionComplete func(section int)
	OnComplete        func()
	// OnError receives the first render error; the engine stops after it.
	OnError func(error)
}

type Engine struct {
	clk  clock.Clock
	opts Options

	mu       sync.Mutex
	state    State
	started  bool
	ref      time.Time
	opacity  []float64
	shown    []int
	reported []bool
	sections int
	timers   []clock.Timer
	renders  int
}

func New(clk clock.Clock, opts Options) *Engine {
	if opts.Total == 0 {
		opts.Total = schedule.Total(opts.Slices)
	}
	n := len(opts.Slices)
	e := &Engine{
		clk:     clk,
		opts:    opts,
		opacity: make([]float64, n),
	}
	if opts.Timing == config.TimingDeferred {
		e.shown = make([]int, n)
	}
	for i := 0; i < n; i++ {
		if s := e.section(i); s+1 > e.sections {
			e.sections = s + 1
		}
	}
	if n > 0 && e.sections == 0 {
		e.sections = 1
	}
	e.reported = make([]bool, e.sections)
	return e
}

func (e *Engine) section(chunk int) int {
	if chunk < 0 || chunk >= len(e.opts.Sections) {
		return 0
	}
	return e.opts.Sections[chunk]
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Renders reports how many frames were handed to Render.
func (e *Engine) Renders() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.renders
}

// Start leaves Idle. With no chunks the engine completes at once without
// rendering. Calling Start again is a no-op.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.state != Idle {
		e.mu.Unlock()
		return nil
	}
	if e.opts.Timing == config.TimingDeferred && len(e.opts.Counts) != len(e.opts.Slices) {
		e.mu.Unlock()
		return fmt.Errorf("deferred timing needs %d word counts, got %d", len(e.opts.Slices), len(e.opts.Counts))
	}
	e.state = Running
	if len(e.opts.Slices) == 0 {
		e.state = Completed
		e.mu.Unlock()
		if e.opts.OnComplete != nil {
			e.opts.OnComplete()
		}
		return nil
	}

	if e.opts.Timing == config.TimingDeferred {
		e.startDeferred()
	} else {
		e.timers = []clock.Timer{e.clk.OnNextTick(e.Tick)}
	}
	e.mu.Unlock()
	return nil
}

// Stop cancels every pending callback. It reports whether the engine was
// still running.
func (e *Engine) Stop() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	running := e.state == Running || e.state == Idle
	if running {
		e.state = Stopped
	}
	for _, t := range e.timers {
		t.Stop()
	}
	e.timers = nil
	return running
}

// Tick is the display-frame handler. The first tick fixes the reference
// time. Ticks outside Running change nothing.
func (e *Engine) Tick(now time.Time) {
	e.mu.Lock()
	if e.state != Running {
		e.mu.Unlock()
		return
	}
	if !e.started {
		e.started = true
		e.ref = now
	}
	elapsed := now.Sub(e.ref)
	for i, s := range e.opts.Slices {
		if elapsed < s.Start {
			continue
		}
		o := ease(e.opts.Easing, ramp(elapsed-s.Start, rampDuration(e.opts.Fade, s.Duration)))
		if o > e.opacity[i] {
			e.opacity[i] = o
		}
	}
	done := elapsed >= e.opts.Total
	if done {
		for i := range e.opacity {
			e.opacity[i] = 1
		}
		e.state = Completed
	}
	frame := e.frame(elapsed, done)
	finished := e.sectionsFinished(elapsed, done)
	e.mu.Unlock()

	if !e.render(frame) {
		return
	}
	e.notify(finished)
	if done {
		if e.opts.OnComplete != nil {
			e.opts.OnComplete()
		}
		return
	}

	e.mu.Lock()
	if e.state == Running {
		e.timers = []clock.Timer{e.clk.OnNextTick(e.Tick)}
	}
	e.mu.Unlock()
}

// startDeferred schedules one callback per word plus a completion callback
// at Total. Offsets are clamped to be non-decreasing so word order never
// depends on timer firing order. Called with mu held.
func (e *Engine) startDeferred() {
	e.ref = e.clk.Now()
	e.started = true

	var prev time.Duration
	for i, s := range e.opts.Slices {
		n := e.opts.Counts[i]
		for k := 0; k < n; k++ {
			at := s.Start + time.Duration(int64(s.Duration)*int64(k)/int64(n))
			if at < prev {
				at = prev
			}
			prev = at
			chunk, shown := i, k+1
			e.timers = append(e.timers, e.clk.ScheduleAfter(at, func(now time.Time) {
				e.reveal(now, chunk, shown)
			}))
		}
	}
	e.timers = append(e.timers, e.clk.ScheduleAfter(e.opts.Total, e.finish))
}

// reveal makes the first shown words of chunk visible, along with every
// word of the chunks before it.
func (e *Engine) reveal(now time.Time, chunk, shown int) {
	e.mu.Lock()
	if e.state != Running {
		e.mu.Unlock()
		return
	}
	for i := 0; i < chunk; i++ {
		e.showAll(i)
	}
	if shown > e.shown[chunk] {
		e.shown[chunk] = shown
		e.opacity[chunk] = float64(shown) / float64(e.opts.Counts[chunk])
	}
	elapsed := now.Sub(e.ref)
	frame := e.frame(elapsed, false)
	finished := e.sectionsFinished(elapsed, false)
	e.mu.Unlock()

	if e.render(frame) {
		e.notify(finished)
	}
}

func (e *Engine) finish(now time.Time) {
	e.mu.Lock()
	if e.state != Running {
		e.mu.Unlock()
		return
	}
	for i := range e.shown {
		e.showAll(i)
	}
	e.state = Completed
	e.timers = nil
	elapsed := now.Sub(e.ref)
	frame := e.frame(elapsed, true)
	finished := e.sectionsFinished(elapsed, true)
	e.mu.Unlock()

	if !e.render(frame) {
		return
	}
	e.notify(finished)
	if e.opts.OnComplete != nil {
		e.opts.OnComplete()
	}
}

func (e *Engine) showAll(chunk int) {
	e.shown[chunk] = e.opts.Counts[chunk]
	e.opacity[chunk] = 1
}

// frame copies the current state. Called with mu held.
func (e *Engine) frame(elapsed time.Duration, done bool) Frame {
	f := Frame{
		Elapsed: elapsed,
		Opacity: append([]float64(nil), e.opacity...),
		Done:    done,
	}
	if e.shown != nil {
		f.Shown = append([]int(nil), e.shown...)
	}
	if i := schedule.At(e.opts.Slices, elapsed); i >= 0 {
		f.Section = e.section(i)
	}
	return f
}

// sectionsFinished marks and returns the sections whose last chunk window
// has closed since the previous call. Called with mu held.
func (e *Engine) sectionsFinished(elapsed time.Duration, done bool) []int {
	var out []int
	for s := 0; s < e.sections; s++ {
		if e.reported[s] {
			continue
		}
		end, ok := e.sectionEnd(s)
		if !ok || (!done && elapsed < end) {
			continue
		}
		e.reported[s] = true
		out = append(out, s)
	}
	return out
}

func (e *Engine) sectionEnd(section int) (time.Duration, bool) {
	var end time.Duration
	found := false
	for i, s := range e.opts.Slices {
		if e.section(i) == section {
			end = s.End()
			found = true
		}
	}
	return end, found
}

// render hands the frame to the renderer. A render error stops the engine
// and is reported once through OnError.
func (e *Engine) render(f Frame) bool {
	if e.opts.Render == nil {
		e.count()
		return true
	}
	if err := e.opts.Render(f); err != nil {
		e.Stop()
		if e.opts.OnError != nil {
			e.opts.OnError(fmt.Errorf("render at %s: %w", f.Elapsed, err))
		}
		return false
	}
	e.count()
	return true
}

func (e *Engine) count() {
	e.mu.Lock()
	e.renders++
	e.mu.Unlock()
}

func (e *Engine) notify(sections []int) {
	if e.opts.OnSectionComplete == nil {
		return
	}
	for _, s := range sections {
		e.opts.OnSectionComplete(s)
	}
}

func rampDuration(fade config.FadeStyle, window time.Duration) time.Duration {
	if fade == config.FadeHalf {
		return window / 2
	}
	return window
}

// ramp is the linear fade fraction after since of a ramp lasting d.
func ramp(since, d time.Duration) float64 {
	if d <= 0 {
		return 1
	}
	return clamp01(float64(since) / float64(d))
}
