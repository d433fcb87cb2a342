package card

import "github.com/ivlev/comment2video/internal/chunker"

// wordGap is the horizontal space between words, in logical px.
const wordGap = 6

// Placed is one word positioned in the text box. X and Baseline are logical
// px relative to the card origin.
type Placed struct {
	Chunk    int // global chunk index
	Word     int // index within the chunk
	Text     string
	Line     int
	X        float64
	Baseline float64
}

// Layout is the wrapped text block.
type Layout struct {
	Words []Placed
	Lines int
}

// wrap fills lines greedily. A word that does not fit starts a new line
// unless the line is empty; a paragraph change always starts a new line.
func wrap(words []chunker.Word, width float64, measure func(string) float64) (lines []int, xs []float64) {
	lines = make([]int, len(words))
	xs = make([]float64, len(words))
	line, x := 0, 0.0
	for i, w := range words {
		ww := measure(w.Text)
		if i > 0 && x > 0 && (x+ww > width || w.Paragraph != words[i-1].Paragraph) {
			line++
			x = 0
		}
		lines[i], xs[i] = line, x
		x += ww + wordGap
	}
	return lines, xs
}

// Layout positions the words of chunks inside the text box.
func (c *Card) Layout(chunks []chunker.Chunk) Layout {
	words := chunker.Flatten(chunks)
	lines, xs := wrap(words, c.geo.textWidth, c.MeasureTextWidth)

	out := Layout{Words: make([]Placed, 0, len(words))}
	i := 0
	for _, ch := range chunks {
		for k, w := range ch.Words {
			out.Words = append(out.Words, Placed{
				Chunk:    ch.Index,
				Word:     k,
				Text:     w.Text,
				Line:     lines[i],
				X:        c.geo.textX + xs[i],
				Baseline: c.geo.textY + float64(lines[i])*c.opts.LineHeight + c.opts.LineHeight*0.75,
			})
			i++
		}
	}
	if len(words) > 0 {
		out.Lines = lines[len(lines)-1] + 1
	}
	return out
}

// MaxLines is how many text lines fit above the actions row.
func (c *Card) MaxLines() int {
	n := int(c.geo.textHeight / c.opts.LineHeight)
	if n < 1 {
		n = 1
	}
	return n
}

// Paginate splits words into pages that each fit the text box.
func (c *Card) Paginate(words []chunker.Word) [][]chunker.Word {
	if len(words) == 0 {
		return nil
	}
	lines, _ := wrap(words, c.geo.textWidth, c.MeasureTextWidth)
	max := c.MaxLines()

	var pages [][]chunker.Word
	for i, w := range words {
		p := lines[i] / max
		for len(pages) <= p {
			pages = append(pages, nil)
		}
		pages[p] = append(pages[p], w)
	}
	return pages
}
