package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ivlev/comment2video/internal/animation"
	"github.com/ivlev/comment2video/internal/card"
	"github.com/ivlev/comment2video/internal/schedule"
)

func planComment(cmd *cobra.Command, args []string) error {
	c, err := pickComment(args)
	if err != nil {
		return err
	}

	// the card pages text that would overflow it, as in a render
	target, err := card.New(card.OptionsFromConfig(cfg))
	if err != nil {
		return err
	}
	defer target.Close()
	plan, err := animation.NewPlan(c.Text, cfg, target)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	writePlan(out, plan)
	fmt.Fprintln(out)
	fmt.Fprintln(out, schedule.Plot(plan.Slices, plan.Counts, plan.Total, plotWidth))

	if exportPath != "" {
		if err := schedule.WriteTimeline(plan.Timeline(cfg.Fade), exportPath); err != nil {
			return err
		}
		log.Success("Timeline written to %s", exportPath)
	}
	return nil
}

// writePlan prints one row per chunk.
func writePlan(out io.Writer, p *animation.Plan) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHUNK\tSECTION\tWORDS\tSTART\tDURATION\tTEXT")
	for i, c := range p.Chunks {
		s := p.Slices[i]
		fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%s\t%s\n",
			i, p.Sections[i], c.Len(), s.Start.Round(time.Millisecond), s.Duration.Round(time.Millisecond), truncate(c.Text(), 48))
	}
	w.Flush()
	fmt.Fprintf(out, "%d words, %d chunk(s), %d section(s) over %s\n",
		len(p.Words), len(p.Chunks), p.SectionCount(), p.Total)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

