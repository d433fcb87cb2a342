package animation

import (
	"time"

	"github.com/ivlev/comment2video/internal/chunker"
	"github.com/ivlev/comment2video/internal/config"
	"github.com/ivlev/comment2video/internal/schedule"
)

// Pager splits words into pages that fit one screen of the card.
type Pager interface {
	Paginate(words []chunker.Word) [][]chunker.Word
}

// Plan is the precomputed reveal: chunks with global indices, the section of
// every chunk and the time slice of every chunk.
type Plan struct {
	Words    []chunker.Word
	Chunks   []chunker.Chunk
	Sections []int
	Counts   []int
	Slices   []schedule.Slice
	Total    time.Duration
}

// SectionCount is the number of distinct sections.
func (p *Plan) SectionCount() int {
	if len(p.Sections) == 0 {
		return 0
	}
	return p.Sections[len(p.Sections)-1] + 1
}

// SectionChunks returns the chunks shown while section s is on screen.
func (p *Plan) SectionChunks(s int) []chunker.Chunk {
	var out []chunker.Chunk
	for i, c := range p.Chunks {
		if p.Sections[i] == s {
			out = append(out, c)
		}
	}
	return out
}

// Texts returns the text of every chunk.
func (p *Plan) Texts() []string {
	out := make([]string, len(p.Chunks))
	for i, c := range p.Chunks {
		out[i] = c.Text()
	}
	return out
}

// Timeline is the exportable form of the plan.
func (p *Plan) Timeline(fade config.FadeStyle) *schedule.Timeline {
	return schedule.NewTimeline(p.Slices, p.Texts(), p.Counts, p.Sections, p.Total, string(fade))
}

// NewPlan chunks text and schedules the chunks over cfg.Duration. The pager
// is needed only for page sections.
func NewPlan(text string, cfg *config.Config, pager Pager) (*Plan, error) {
	if cfg == nil {
		return nil, &ConfigurationError{Field: "config", Reason: "missing"}
	}
	words := chunker.Words(chunker.SplitParagraphs(text))
	groups, err := sections(words, cfg, pager)
	if err != nil {
		return nil, err
	}

	p := &Plan{Words: words, Total: cfg.Duration.Std()}
	for s, g := range groups {
		for _, c := range chunker.Split(g, cfg.ChunkWords, cfg.Chunking == config.ChunkParagraph) {
			c.Index = len(p.Chunks)
			p.Chunks = append(p.Chunks, c)
			p.Sections = append(p.Sections, s)
		}
	}
	p.Counts = chunker.Counts(p.Chunks)
	if p.Slices, err = schedule.Compute(p.Counts, p.Total); err != nil {
		return nil, err
	}
	return p, nil
}

// sections groups words into what is on screen at once. With a pager, a
// group that overflows the card is split into pages.
func sections(words []chunker.Word, cfg *config.Config, pager Pager) ([][]chunker.Word, error) {
	if len(words) == 0 {
		return nil, nil
	}
	var groups [][]chunker.Word
	switch cfg.Sections {
	case config.SectionsParagraph:
		for _, c := range chunker.ByParagraph(words, cfg.SectionWords) {
			groups = append(groups, c.Words)
		}
	case config.SectionsPage:
		if pager == nil {
			return nil, &ConfigurationError{Field: "sections", Reason: "page sections need a render target"}
		}
		return pager.Paginate(words), nil
	default:
		groups = [][]chunker.Word{words}
	}
	if pager == nil {
		return groups, nil
	}
	var out [][]chunker.Word
	for _, g := range groups {
		out = append(out, pager.Paginate(g)...)
	}
	return out, nil
}
