package chunker

import (
	"regexp"
	"strings"
)

// Word is one whitespace-delimited token tagged with its paragraph.
type Word struct {
	Text      string
	Paragraph int
}

// Chunk is a contiguous run of words revealed (or shown) as one unit.
type Chunk struct {
	Index     int
	Words     []Word
	Paragraph int // paragraph of the first word
}

// Text joins the chunk's words with single spaces.
func (c Chunk) Text() string {
	parts := make([]string, len(c.Words))
	for i, w := range c.Words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}

func (c Chunk) Len() int { return len(c.Words) }

var newlines = regexp.MustCompile(`\n+`)

// SplitParagraphs splits text on runs of newlines. Blank paragraphs are
// dropped.
func SplitParagraphs(text string) []string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r", ""))
	if text == "" {
		return nil
	}
	var out []string
	for _, p := range newlines.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Words tokenises the paragraphs in order. Empty tokens never appear.
func Words(paragraphs []string) []Word {
	var words []Word
	for i, p := range paragraphs {
		for _, f := range strings.Fields(p) {
			words = append(words, Word{Text: f, Paragraph: i})
		}
	}
	return words
}

// Flat fills chunks greedily with up to budget words, ignoring paragraphs.
func Flat(words []Word, budget int) []Chunk {
	if budget <= 0 {
		budget = 1
	}
	var chunks []Chunk
	var cur []Word
	flush := func() {
		if len(cur) == 0 {
			return
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Words: cur, Paragraph: cur[0].Paragraph})
		cur = nil
	}
	for _, w := range words {
		if len(cur) == budget {
			flush()
		}
		cur = append(cur, w)
	}
	flush()
	return chunks
}

// ByParagraph fills chunks greedily but starts a new chunk at every
// paragraph boundary. A paragraph longer than budget spans several chunks.
func ByParagraph(words []Word, budget int) []Chunk {
	if budget <= 0 {
		budget = 1
	}
	var chunks []Chunk
	var cur []Word
	flush := func() {
		if len(cur) == 0 {
			return
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Words: cur, Paragraph: cur[0].Paragraph})
		cur = nil
	}
	for _, w := range words {
		if len(cur) == budget || (len(cur) > 0 && cur[len(cur)-1].Paragraph != w.Paragraph) {
			flush()
		}
		cur = append(cur, w)
	}
	flush()
	return chunks
}

// Split dispatches on the paragraph-aware flag.
func Split(words []Word, budget int, paragraphAware bool) []Chunk {
	if paragraphAware {
		return ByParagraph(words, budget)
	}
	return Flat(words, budget)
}

// Counts returns the word count of every chunk.
func Counts(chunks []Chunk) []int {
	counts := make([]int, len(chunks))
	for i, c := range chunks {
		counts[i] = len(c.Words)
	}
	return counts
}

// Flatten concatenates the words of all chunks in order.
func Flatten(chunks []Chunk) []Word {
	var words []Word
	for _, c := range chunks {
		words = append(words, c.Words...)
	}
	return words
}
