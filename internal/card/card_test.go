package card

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ivlev/comment2video/internal/chunker"
	"github.com/ivlev/comment2video/internal/config"
)

func newTestCard(t *testing.T) *Card {
	t.Helper()
	opts := OptionsFromConfig(config.DefaultConfig())
	opts.Author = "someone"
	opts.Votes = "42"
	c, err := New(opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func chunksOf(text string, budget int) []chunker.Chunk {
	return chunker.Flat(chunker.Words(chunker.SplitParagraphs(text)), budget)
}

func TestNewCanvasSize(t *testing.T) {
	c := newTestCard(t)
	if got := c.Bounds(); got != image.Rect(0, 0, 1512, 800) {
		t.Errorf("expected 1512x800 canvas, got %v", got)
	}
	if _, err := New(Options{Width: 50, Height: 50, Scale: 1}); err == nil {
		t.Error("expected error for a card too small to lay out")
	}
}

func TestMeasureTextWidth(t *testing.T) {
	c := newTestCard(t)
	a := c.MeasureTextWidth("comment")
	b := c.MeasureTextWidth("comment comment")
	if a <= 0 || b <= a {
		t.Errorf("widths not increasing: %f, %f", a, b)
	}
	// logical px do not depend on the canvas scale
	opts := OptionsFromConfig(config.DefaultConfig())
	opts.Scale = 1
	one, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	defer one.Close()
	if d := one.MeasureTextWidth("comment") - a; d > 2 || d < -2 {
		t.Errorf("width at scale 1 differs by %f px", d)
	}
}

func TestStyle(t *testing.T) {
	c := newTestCard(t)
	s := c.Style("font", "line-height", "color")
	if s["line-height"] != "24px" {
		t.Errorf("line-height = %q", s["line-height"])
	}
	if !strings.HasPrefix(s["font"], "16px ") {
		t.Errorf("font = %q", s["font"])
	}
	if _, ok := s["color"]; ok {
		t.Error("unknown property should be omitted")
	}
}

func TestLayoutWrapsAndBreaksParagraphs(t *testing.T) {
	c := newTestCard(t)
	long := strings.Repeat("wrapping words fill the line ", 12)
	l := c.Layout(chunksOf(long, 5))
	if l.Lines < 2 {
		t.Fatalf("expected wrapping, got %d line(s)", l.Lines)
	}
	for _, w := range l.Words {
		if w.X+c.MeasureTextWidth(w.Text) > c.geo.textX+c.geo.textWidth+0.001 && w.X != c.geo.textX {
			t.Errorf("word %q overflows the text box at x=%f", w.Text, w.X)
		}
	}

	l = c.Layout(chunksOf("first paragraph\nsecond", 5))
	if l.Lines != 2 {
		t.Fatalf("expected 2 lines, got %d", l.Lines)
	}
	last := l.Words[len(l.Words)-1]
	if last.Text != "second" || last.Line != 1 || last.X != c.geo.textX {
		t.Errorf("paragraph should start a new line: %+v", last)
	}
	if last.Chunk != 1 || last.Word != 0 {
		t.Errorf("expected chunk 1 word 0, got %d/%d", last.Chunk, last.Word)
	}
}

func TestPaginate(t *testing.T) {
	c := newTestCard(t)
	words := chunker.Words([]string{strings.Repeat("page sized text keeps going ", 120)})
	pages := c.Paginate(words)
	if len(pages) < 2 {
		t.Fatalf("expected several pages, got %d", len(pages))
	}
	var joined []chunker.Word
	for i, p := range pages {
		if len(p) == 0 {
			t.Fatalf("page %d empty", i)
		}
		lines, _ := wrap(p, c.geo.textWidth, c.MeasureTextWidth)
		if n := lines[len(lines)-1] + 1; n > c.MaxLines() {
			t.Errorf("page %d needs %d lines, max %d", i, n, c.MaxLines())
		}
		joined = append(joined, p...)
	}
	if len(joined) != len(words) {
		t.Fatalf("pages hold %d words, expected %d", len(joined), len(words))
	}
	for i := range words {
		if joined[i] != words[i] {
			t.Fatalf("word %d reordered", i)
		}
	}
	if c.Paginate(nil) != nil {
		t.Error("no words should give no pages")
	}
}

func TestPaintRespectsAlpha(t *testing.T) {
	c := newTestCard(t)
	chunks := chunksOf("hidden words stay invisible until revealed", 5)

	if err := c.Paint(Content{Chunks: chunks, Alpha: func(int, int) float64 { return 0 }}); err != nil {
		t.Fatal(err)
	}
	hidden := append([]byte(nil), c.Image().Pix...)

	if err := c.Paint(Content{Chunks: chunks}); err != nil {
		t.Fatal(err)
	}
	shown := c.Image().Pix
	if bytes.Equal(hidden, shown) {
		t.Error("fully visible text left the canvas unchanged")
	}

	if err := c.Paint(Content{Chunks: chunks, Alpha: func(int, int) float64 { return 0 }}); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(hidden, c.Image().Pix) {
		t.Error("repainting hidden text should restore the same frame")
	}

	// the box interior is white and the page around it is not
	if got := c.Image().RGBAAt(60, 400); got != (color.RGBA{0xff, 0xff, 0xff, 0xff}) {
		t.Errorf("box interior = %v", got)
	}
	if got := c.Image().RGBAAt(5, 5); got != colorPage {
		t.Errorf("page background = %v", got)
	}
}

func TestAvatarImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "avatar.png")
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := 0; i < len(src.Pix); i += 4 {
		src.Pix[i], src.Pix[i+3] = 0xff, 0xff
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, src); err != nil {
		t.Fatal(err)
	}
	f.Close()

	opts := OptionsFromConfig(config.DefaultConfig())
	opts.AvatarPath = path
	c, err := New(opts)
	if err != nil {
		t.Fatalf("New with avatar failed: %v", err)
	}
	defer c.Close()

	// centre of the avatar circle in pixels
	s := opts.Scale
	cx, cy := int((margin+padding+avatarSize/2)*s), int((margin+padding+avatarSize/2)*s)
	if got := c.Image().RGBAAt(cx, cy); got.R < 0xf0 || got.G > 0x10 {
		t.Errorf("avatar centre = %v, expected red", got)
	}

	opts.AvatarPath = filepath.Join(dir, "missing.png")
	if _, err := New(opts); err == nil {
		t.Error("expected error for missing avatar")
	}
}

func TestPaintAfterClose(t *testing.T) {
	opts := OptionsFromConfig(config.DefaultConfig())
	c, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	c.Close()
	if err := c.Paint(Content{}); err == nil {
		t.Error("expected error painting a closed card")
	}
}
