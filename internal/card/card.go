// Package card draws a comment card: a rounded box with avatar, author,
// date, the comment text and an actions row. It is the render surface the
// reveal animation paints into and the capture records from.
package card

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"strconv"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/ivlev/comment2video/internal/chunker"
	"github.com/ivlev/comment2video/internal/config"
	"github.com/ivlev/comment2video/internal/system"
)

var (
	colorPage    = color.RGBA{0xda, 0xe0, 0xe6, 0xff}
	colorBox     = color.RGBA{0xff, 0xff, 0xff, 0xff}
	colorBorder  = color.RGBA{0xcc, 0xcc, 0xcc, 0xff}
	colorAvatar  = color.RGBA{0xc4, 0xc4, 0xc4, 0xff}
	colorThread  = color.RGBA{0xed, 0xef, 0xf1, 0xff}
	colorText    = color.RGBA{0x1a, 0x1a, 0x1b, 0xff}
	colorMuted   = color.RGBA{0x78, 0x7c, 0x7e, 0xff}
	colorActions = color.RGBA{0x87, 0x8a, 0x8c, 0xff}
)

const (
	margin     = 25
	radius     = 10
	padding    = 16
	avatarSize = 40
	iconSize   = 16
	actionsH   = 24
)

// Options configure a card. Sizes are logical px; the canvas is Scale
// times larger.
type Options struct {
	Width      int
	Height     int
	Scale      float64
	FontPath   string
	FontSize   float64
	LineHeight float64

	Author string
	Votes  string
	Date   string
	// AvatarPath is an optional image drawn in the avatar circle.
	AvatarPath string
}

// OptionsFromConfig takes the card settings from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Width:      cfg.Width,
		Height:     cfg.Height,
		Scale:      cfg.Scale,
		FontPath:   cfg.FontPath,
		FontSize:   cfg.FontSize,
		LineHeight: cfg.LineHeight,
		Date:       cfg.Date,
	}
}

// Content is what one paint shows: the chunks of the current section and
// the opacity of every word.
type Content struct {
	Chunks []chunker.Chunk
	// Alpha returns the opacity of a word of a chunk (global index). Nil
	// shows every word fully.
	Alpha func(chunk, word int) float64
}

type geometry struct {
	boxX, boxY, boxW, boxH float64
	textX, textY           float64
	textWidth, textHeight  float64
}

type Card struct {
	opts Options
	geo  geometry

	body, bold font.Face
	family     string

	img  *image.RGBA
	base *image.RGBA
}

// New builds the card and renders its static parts.
func New(opts Options) (*Card, error) {
	if opts.Width <= 2*margin+2*padding+avatarSize || opts.Height <= 2*margin+2*padding+avatarSize {
		return nil, fmt.Errorf("card size %dx%d too small", opts.Width, opts.Height)
	}
	if opts.Scale <= 0 {
		opts.Scale = 1
	}
	if opts.FontSize <= 0 {
		opts.FontSize = 16
	}
	if opts.LineHeight <= 0 {
		opts.LineHeight = opts.FontSize * 1.5
	}

	bodyTF, boldTF, err := loadTypefaces(opts.FontPath)
	if err != nil {
		return nil, err
	}
	c := &Card{opts: opts, family: bodyTF.family}
	if c.body, err = bodyTF.newFace(opts.FontSize, opts.Scale); err != nil {
		return nil, err
	}
	if c.bold, err = boldTF.newFace(opts.FontSize, opts.Scale); err != nil {
		return nil, err
	}

	c.geo = layoutGeometry(opts)
	rect := image.Rect(0, 0, evenCeil(float64(opts.Width)*opts.Scale), evenCeil(float64(opts.Height)*opts.Scale))
	c.img = system.GetImage(rect)
	c.base = system.GetImage(rect)
	if err := c.drawBase(); err != nil {
		c.Close()
		return nil, err
	}
	copy(c.img.Pix, c.base.Pix)
	return c, nil
}

func layoutGeometry(o Options) geometry {
	g := geometry{
		boxX: margin,
		boxY: margin,
		boxW: float64(o.Width - 2*margin),
		boxH: float64(o.Height - 2*margin),
	}
	g.textX = g.boxX + padding + avatarSize + 12
	g.textY = g.boxY + padding + 24
	g.textWidth = g.boxX + g.boxW - padding - g.textX
	g.textHeight = g.boxY + g.boxH - padding - actionsH - 8 - g.textY
	return g
}

func evenCeil(v float64) int {
	n := int(math.Ceil(v))
	if n%2 != 0 {
		n++
	}
	return n
}

// Bounds is the pixel size of the canvas.
func (c *Card) Bounds() image.Rectangle { return c.img.Rect }

// Image is the canvas as of the last Paint.
func (c *Card) Image() *image.RGBA { return c.img }

// Close returns the canvases to the shared pool. The card is unusable
// afterwards.
func (c *Card) Close() {
	if c.img != nil {
		system.PutImage(c.img)
		c.img = nil
	}
	if c.base != nil {
		system.PutImage(c.base)
		c.base = nil
	}
}

// MeasureTextWidth returns the advance of text in logical px.
func (c *Card) MeasureTextWidth(text string) float64 {
	return toFloat(font.MeasureString(c.body, text)) / c.opts.Scale
}

// Style reports computed style values for the requested properties.
// Unknown properties are omitted.
func (c *Card) Style(props ...string) map[string]string {
	out := make(map[string]string, len(props))
	for _, p := range props {
		switch p {
		case "font":
			out[p] = fmt.Sprintf("%spx %s", formatPx(c.opts.FontSize), c.family)
		case "font-size":
			out[p] = formatPx(c.opts.FontSize) + "px"
		case "font-family":
			out[p] = c.family
		case "line-height":
			out[p] = formatPx(c.opts.LineHeight) + "px"
		case "width":
			out[p] = strconv.Itoa(c.opts.Width) + "px"
		case "height":
			out[p] = strconv.Itoa(c.opts.Height) + "px"
		}
	}
	return out
}

func formatPx(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func (c *Card) tr(x, y, unit float64) Transform {
	s := c.opts.Scale
	return Transform{X: x * s, Y: y * s, Scale: unit * s}
}

func (c *Card) drawBase() error {
	g := c.geo
	draw.Draw(c.base, c.base.Rect, image.NewUniform(colorPage), image.Point{}, draw.Src)

	outer, err := roundRect(g.boxX, g.boxY, g.boxW, g.boxH, radius)
	if err != nil {
		return err
	}
	inner, err := roundRect(g.boxX+1, g.boxY+1, g.boxW-2, g.boxH-2, radius-1)
	if err != nil {
		return err
	}
	outer.Fill(c.base, c.tr(0, 0, 1), colorBorder)
	inner.Fill(c.base, c.tr(0, 0, 1), colorBox)

	ax, ay := g.boxX+padding, g.boxY+padding
	if err := c.drawAvatar(ax, ay); err != nil {
		return err
	}

	threadX := ax + avatarSize/2 - 1
	thread, err := rect(threadX, ay+avatarSize+6, 2, g.boxY+g.boxH-padding-(ay+avatarSize+6))
	if err != nil {
		return err
	}
	thread.Fill(c.base, c.tr(0, 0, 1), colorThread)

	author := c.opts.Author
	if author == "" {
		author = "Unknown Author"
	}
	baseline := g.boxY + padding + 14
	end := c.drawString(c.base, c.bold, author, g.textX, baseline, colorText)
	if c.opts.Date != "" {
		c.drawString(c.base, c.body, "· "+c.opts.Date, end+8, baseline, colorMuted)
	}
	return nil
}

func (c *Card) drawAvatar(x, y float64) error {
	circle, err := circlePath(x+avatarSize/2, y+avatarSize/2, avatarSize/2)
	if err != nil {
		return err
	}
	if c.opts.AvatarPath == "" {
		circle.Fill(c.base, c.tr(0, 0, 1), colorAvatar)
		return nil
	}

	f, err := os.Open(c.opts.AvatarPath)
	if err != nil {
		return fmt.Errorf("open avatar: %w", err)
	}
	defer f.Close()
	src, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decode avatar %s: %w", c.opts.AvatarPath, err)
	}

	s := c.opts.Scale
	dst := image.Rect(int(x*s), int(y*s), int(math.Ceil((x+avatarSize)*s)), int(math.Ceil((y+avatarSize)*s)))
	scaled := image.NewRGBA(dst)
	xdraw.CatmullRom.Scale(scaled, dst, src, src.Bounds(), xdraw.Src, nil)
	mask := circle.Mask(dst, c.tr(0, 0, 1))
	draw.DrawMask(c.base, dst, scaled, dst.Min, mask, dst.Min, draw.Over)
	return nil
}

// drawString draws text with its baseline at (x, y) logical px and returns
// the logical x where it ends.
func (c *Card) drawString(dst *image.RGBA, face font.Face, text string, x, y float64, col color.Color) float64 {
	s := c.opts.Scale
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: toFixed(x * s), Y: toFixed(y * s)},
	}
	d.DrawString(text)
	return toFloat(d.Dot.X) / s
}

// Paint redraws the card with the given content.
func (c *Card) Paint(content Content) error {
	if c.img == nil {
		return fmt.Errorf("paint on closed card")
	}
	copy(c.img.Pix, c.base.Pix)

	l := c.Layout(content.Chunks)
	for _, w := range l.Words {
		a := 1.0
		if content.Alpha != nil {
			a = content.Alpha(w.Chunk, w.Word)
		}
		if a <= 0 {
			continue
		}
		if a > 1 {
			a = 1
		}
		col := color.NRGBA{colorText.R, colorText.G, colorText.B, uint8(math.Round(a * 255))}
		c.drawString(c.img, c.body, w.Text, w.X, w.Baseline, col)
	}

	lines := l.Lines
	if lines > c.MaxLines() {
		lines = c.MaxLines()
	}
	c.drawActions(c.geo.textY + float64(lines)*c.opts.LineHeight + 8)
	return nil
}

// drawActions draws the votes and reply/share row with its top at y.
func (c *Card) drawActions(y float64) {
	x := c.geo.textX
	unit := float64(iconSize) / iconGrid
	baseline := y + actionsH/2 + 5

	upvoteIcon.Fill(c.img, c.tr(x, y+(actionsH-iconSize)/2, unit), colorActions)
	x += iconSize + 6
	votes := c.opts.Votes
	if votes == "" {
		votes = "0"
	}
	x = c.drawString(c.img, c.bold, votes, x, baseline, colorActions) + 6
	downvoteIcon.Fill(c.img, c.tr(x, y+(actionsH-iconSize)/2, unit), colorActions)
	x += iconSize + 20
	x = c.drawString(c.img, c.bold, "Reply", x, baseline, colorActions) + 16
	c.drawString(c.img, c.bold, "Share", x, baseline, colorActions)
}
