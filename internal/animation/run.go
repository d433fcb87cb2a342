// Package animation runs one timed text reveal on a card and records it.
//
// A run paints the idle card, begins capture, waits out the settle delay,
// then lets the reveal engine drive the card until the last chunk has
// opened. Capture ends on that transition only. Capture problems never stop
// the animation: the run finishes visual-only and is reported as degraded.
package animation

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/ivlev/comment2video/internal/capture"
	"github.com/ivlev/comment2video/internal/card"
	"github.com/ivlev/comment2video/internal/clock"
	"github.com/ivlev/comment2video/internal/config"
	"github.com/ivlev/comment2video/internal/logging"
	"github.com/ivlev/comment2video/internal/reveal"
)

// Target is the render surface a run paints into.
type Target interface {
	Pager
	Bounds() image.Rectangle
	MeasureTextWidth(text string) float64
	Paint(content card.Content) error
	Image() *image.RGBA
}

type Request struct {
	Text   string
	Config *config.Config
	Target Target
	// Clock drives the run. Nil picks one from Config.Clock.
	Clock clock.Driver
	// Capture records the run. Nil renders without recording.
	Capture *capture.Coordinator
	Log     *logging.Logger
}

type Result struct {
	Plan *Plan
	// Artifact is nil when the run was not recorded.
	Artifact *capture.Artifact
	// Degraded is set when capture was requested but failed.
	Degraded   bool
	CaptureErr error
	// Frames is the number of reveal frames painted.
	Frames int
	// SectionsDone lists section completion events in order.
	SectionsDone []int
	Elapsed      time.Duration
}

// NewClock returns the clock cfg asks for.
func NewClock(cfg *config.Config) clock.Driver {
	if cfg.Clock == config.ClockRealtime {
		return clock.NewRealtime(cfg.FPS)
	}
	return clock.NewVirtual(cfg.FPS)
}

type run struct {
	req  Request
	cfg  *config.Config
	plan *Plan
	clk  clock.Driver
	log  *logging.Logger
	eng  *reveal.Engine

	mu        sync.Mutex
	pumping   bool
	pumpTimer clock.Timer
	completed bool
	renderErr error
	res       Result
}

// Run performs the whole animation. It returns an error only when nothing
// usable was rendered: bad configuration, a paint failure or cancellation.
func Run(ctx context.Context, req Request) (*Result, error) {
	if req.Target == nil {
		return nil, &ConfigurationError{Field: "target", Reason: "no render target"}
	}
	if req.Config == nil {
		return nil, &ConfigurationError{Field: "config", Reason: "missing"}
	}
	if err := req.Config.Validate(); err != nil {
		return nil, &ConfigurationError{Field: "config", Reason: err.Error()}
	}
	plan, err := NewPlan(req.Text, req.Config, req.Target)
	if err != nil {
		return nil, err
	}

	r := &run{req: req, cfg: req.Config, plan: plan, clk: req.Clock, log: req.Log}
	if r.clk == nil {
		r.clk = NewClock(r.cfg)
	}
	if r.log == nil {
		r.log = logging.Nop()
	}
	r.res.Plan = plan
	return r.exec(ctx)
}

func (r *run) exec(ctx context.Context) (*Result, error) {
	if err := r.req.Target.Paint(card.Content{}); err != nil {
		return nil, fmt.Errorf("paint idle card: %w", err)
	}

	if c := r.req.Capture; c != nil {
		if err := c.Begin(ctx, r.req.Target, r.clk.FPS()); err != nil {
			r.degrade(err)
		} else {
			c.OnFinalize(func(a capture.Artifact) {
				r.log.Success("Recorded %d frames (%s) to %s", a.Frames, a.Duration, a.Path)
			})
		}
	}

	r.eng = reveal.New(r.clk, reveal.Options{
		Slices:            r.plan.Slices,
		Counts:            r.plan.Counts,
		Sections:          r.plan.Sections,
		Total:             r.plan.Total,
		Fade:              r.cfg.Fade,
		Easing:            r.cfg.Easing,
		Timing:            r.cfg.Timing,
		Render:            r.render,
		OnSectionComplete: r.sectionDone,
		OnComplete:        r.complete,
		OnError:           r.fail,
	})

	r.log.Progress("Revealing %d words in %d chunks over %s (%d sections)",
		len(r.plan.Words), len(r.plan.Chunks), r.plan.Total, r.plan.SectionCount())

	r.captureFrame()
	r.startPump()
	settle := r.clk.ScheduleAfter(r.cfg.SettleDelay.Std(), r.begin)

	start := r.clk.Now()
	err := r.clk.Run(ctx)
	r.res.Elapsed = r.clk.Now().Sub(start)

	r.mu.Lock()
	completed, renderErr := r.completed, r.renderErr
	r.mu.Unlock()

	switch {
	case renderErr != nil:
		return nil, renderErr
	case completed:
		r.res.Frames = r.eng.Renders()
		return &r.res, nil
	}

	settle.Stop()
	r.stopPump()
	r.eng.Stop()
	if r.req.Capture != nil {
		r.req.Capture.Abort()
	}
	if err == nil {
		err = errors.New("clock stopped before the reveal completed")
	}
	return nil, fmt.Errorf("animation interrupted: %w", err)
}

// begin starts the reveal once the card has settled. In frame timing the
// engine captures its own frames, so idle capture stops here.
func (r *run) begin(time.Time) {
	if r.cfg.Timing == config.TimingFrame {
		r.stopPump()
	}
	if err := r.eng.Start(); err != nil {
		r.fail(err)
	}
}

func (r *run) render(f reveal.Frame) error {
	content := card.Content{
		Chunks: r.plan.SectionChunks(f.Section),
		Alpha:  f.WordOpacity,
	}
	if err := r.req.Target.Paint(content); err != nil {
		return err
	}
	if r.cfg.Timing == config.TimingFrame {
		r.captureFrame()
	}
	return nil
}

func (r *run) sectionDone(s int) {
	r.log.Debug(r.cfg.Verbose, "Section %d/%d revealed", s+1, r.plan.SectionCount())
	r.mu.Lock()
	r.res.SectionsDone = append(r.res.SectionsDone, s)
	r.mu.Unlock()
}

// complete ends the capture. The engine calls it once, when the last chunk
// window has elapsed.
func (r *run) complete() {
	if r.cfg.Timing == config.TimingDeferred {
		r.captureFrame()
	}
	r.stopPump()

	if c := r.req.Capture; c != nil {
		a, err := c.End()
		if err != nil {
			r.degrade(err)
		}
		r.res.Artifact = a
	}
	r.mu.Lock()
	r.completed = true
	r.mu.Unlock()
	r.clk.Halt()
}

func (r *run) fail(err error) {
	r.log.Error("Reveal failed: %v", err)
	r.mu.Lock()
	if r.renderErr == nil {
		r.renderErr = err
	}
	r.mu.Unlock()
	r.stopPump()
	if r.req.Capture != nil {
		r.req.Capture.Abort()
	}
	r.clk.Halt()
}

// degrade turns the run into a visual-only one.
func (r *run) degrade(err error) {
	r.log.Warn("Capture unavailable, continuing without recording: %v", err)
	r.mu.Lock()
	r.res.Degraded = true
	if r.res.CaptureErr == nil {
		r.res.CaptureErr = err
	}
	r.mu.Unlock()
}

func (r *run) captureFrame() {
	c := r.req.Capture
	if c == nil || !c.Active() {
		return
	}
	if err := c.Capture(r.req.Target.Image()); err != nil {
		c.Abort()
		r.degrade(err)
	}
}

// startPump records the card on every display tick until stopPump.
func (r *run) startPump() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.req.Capture == nil || r.pumping {
		return
	}
	r.pumping = true
	r.pumpTimer = r.clk.OnNextTick(r.pump)
}

func (r *run) pump(time.Time) {
	r.mu.Lock()
	if !r.pumping {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	r.captureFrame()

	r.mu.Lock()
	if r.pumping {
		r.pumpTimer = r.clk.OnNextTick(r.pump)
	}
	r.mu.Unlock()
}

func (r *run) stopPump() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pumping = false
	if r.pumpTimer != nil {
		r.pumpTimer.Stop()
		r.pumpTimer = nil
	}
}
