package reveal_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ivlev/comment2video/internal/clock"
	"github.com/ivlev/comment2video/internal/config"
	"github.com/ivlev/comment2video/internal/reveal"
	"github.com/ivlev/comment2video/internal/schedule"
)

var _ = Describe("Engine", func() {
	var (
		clk       *clock.Virtual
		frames    []reveal.Frame
		completed int
		opts      reveal.Options
	)

	build := func(counts []int, total time.Duration) reveal.Options {
		slices, err := schedule.Compute(counts, total)
		Expect(err).NotTo(HaveOccurred())
		return reveal.Options{
			Slices: slices,
			Counts: counts,
			Total:  total,
			Fade:   config.FadeFull,
			Easing: config.EaseLinear,
			Timing: config.TimingFrame,
			Render: func(f reveal.Frame) error {
				frames = append(frames, f)
				return nil
			},
			OnComplete: func() { completed++ },
		}
	}

	run := func(e *reveal.Engine) {
		Expect(e.Start()).To(Succeed())
		Expect(clk.Run(context.Background())).To(Succeed())
	}

	BeforeEach(func() {
		clk = clock.NewVirtual(60)
		frames = nil
		completed = 0
		opts = build([]int{5, 5}, time.Second)
	})

	Context("with two chunks over one second", func() {
		It("opens the second window at 500ms and completes once", func() {
			e := reveal.New(clk, opts)
			run(e)

			Expect(e.State()).To(Equal(reveal.Completed))
			Expect(completed).To(Equal(1))
			Expect(frames).NotTo(BeEmpty())
			Expect(frames[0].Elapsed).To(BeZero())
			last := frames[len(frames)-1]
			Expect(last.Done).To(BeTrue())
			Expect(last.Elapsed).To(BeNumerically(">=", time.Second))

			for _, f := range frames {
				if f.Elapsed < 500*time.Millisecond {
					Expect(f.Opacity[1]).To(BeZero())
				} else {
					Expect(f.Opacity[0]).To(Equal(1.0))
				}
			}
		})

		It("keeps opacity monotone and within [0,1]", func() {
			opts.Easing = config.EaseCubic
			run(reveal.New(clk, opts))

			prev := []float64{0, 0}
			for _, f := range frames {
				for i, o := range f.Opacity {
					Expect(o).To(BeNumerically(">=", 0))
					Expect(o).To(BeNumerically("<=", 1))
					Expect(o).To(BeNumerically(">=", prev[i]))
					prev[i] = o
				}
			}
		})

		It("ignores ticks after completion", func() {
			e := reveal.New(clk, opts)
			run(e)
			n := len(frames)

			e.Tick(clk.Now().Add(time.Second))
			e.Tick(clk.Now().Add(2 * time.Second))

			Expect(frames).To(HaveLen(n))
			Expect(completed).To(Equal(1))
			Expect(e.Renders()).To(Equal(n))
		})
	})

	Context("fade style", func() {
		opacityAround := func(fade config.FadeStyle, at time.Duration) float64 {
			opts.Fade = fade
			run(reveal.New(clk, opts))
			for _, f := range frames {
				if f.Elapsed >= at {
					return f.Opacity[0]
				}
			}
			Fail("no frame after offset")
			return 0
		}

		It("reaches full opacity at half the window with the half ramp", func() {
			Expect(opacityAround(config.FadeHalf, 250*time.Millisecond)).To(Equal(1.0))
		})

		It("is still ramping at half the window with the full ramp", func() {
			o := opacityAround(config.FadeFull, 250*time.Millisecond)
			Expect(o).To(BeNumerically("~", 0.5, 0.05))
		})
	})

	Context("when torn down mid-run", func() {
		It("stops rendering and never completes", func() {
			e := reveal.New(clk, opts)
			Expect(e.Start()).To(Succeed())
			clk.Advance(300 * time.Millisecond)
			n := len(frames)
			Expect(n).To(BeNumerically(">", 0))

			Expect(e.Stop()).To(BeTrue())
			Expect(clk.Pending()).To(BeZero())
			Expect(clk.Run(context.Background())).To(Succeed())

			Expect(frames).To(HaveLen(n))
			Expect(completed).To(BeZero())
			Expect(e.State()).To(Equal(reveal.Stopped))
			Expect(e.Stop()).To(BeFalse())
		})
	})

	Context("with no chunks", func() {
		It("completes immediately without rendering", func() {
			opts = build(nil, time.Second)
			e := reveal.New(clk, opts)
			Expect(e.Start()).To(Succeed())

			Expect(e.State()).To(Equal(reveal.Completed))
			Expect(completed).To(Equal(1))
			Expect(frames).To(BeEmpty())
			Expect(clk.Pending()).To(BeZero())
		})
	})

	Context("with sections", func() {
		It("reports each section once, in order, without extra completions", func() {
			opts = build([]int{5, 5, 3}, 1300*time.Millisecond)
			opts.Sections = []int{0, 0, 1}
			var sections []int
			opts.OnSectionComplete = func(s int) { sections = append(sections, s) }

			run(reveal.New(clk, opts))

			Expect(sections).To(Equal([]int{0, 1}))
			Expect(completed).To(Equal(1))
			Expect(frames[0].Section).To(Equal(0))
			Expect(frames[len(frames)-1].Section).To(Equal(1))
		})
	})

	Context("when rendering fails", func() {
		It("stops and reports the error once", func() {
			boom := errors.New("no surface")
			var reported []error
			opts.Render = func(f reveal.Frame) error {
				if f.Elapsed > 100*time.Millisecond {
					return boom
				}
				return nil
			}
			opts.OnError = func(err error) { reported = append(reported, err) }
			e := reveal.New(clk, opts)
			run(e)

			Expect(reported).To(HaveLen(1))
			Expect(reported[0]).To(MatchError(boom))
			Expect(e.State()).To(Equal(reveal.Stopped))
			Expect(completed).To(BeZero())
		})
	})

	Context("in deferred timing", func() {
		BeforeEach(func() {
			opts.Timing = config.TimingDeferred
		})

		It("reveals words in order and completes at the total", func() {
			e := reveal.New(clk, opts)
			run(e)

			// one frame per word plus the completion frame
			Expect(frames).To(HaveLen(11))
			Expect(completed).To(Equal(1))

			visible := func(f reveal.Frame) int { return f.Shown[0] + f.Shown[1] }
			for i := 1; i < len(frames); i++ {
				Expect(visible(frames[i])).To(BeNumerically(">=", visible(frames[i-1])))
				Expect(frames[i].Elapsed).To(BeNumerically(">=", frames[i-1].Elapsed))
			}
			Expect(visible(frames[0])).To(Equal(1))
			Expect(frames[5].Elapsed).To(Equal(500 * time.Millisecond))
			Expect(frames[5].WordOpacity(1, 0)).To(Equal(1.0))
			Expect(frames[5].WordOpacity(1, 1)).To(BeZero())

			last := frames[len(frames)-1]
			Expect(last.Done).To(BeTrue())
			Expect(last.Elapsed).To(Equal(time.Second))
			Expect(last.Opacity).To(Equal([]float64{1, 1}))
		})

		It("cancels every word callback on Stop", func() {
			e := reveal.New(clk, opts)
			Expect(e.Start()).To(Succeed())
			clk.Advance(250 * time.Millisecond)
			n := len(frames)

			e.Stop()
			Expect(clk.Pending()).To(BeZero())
			clk.Advance(time.Second)
			Expect(frames).To(HaveLen(n))
			Expect(completed).To(BeZero())
		})

		It("requires a word count per chunk", func() {
			opts.Counts = []int{5}
			Expect(reveal.New(clk, opts).Start()).To(HaveOccurred())
		})
	})
})
