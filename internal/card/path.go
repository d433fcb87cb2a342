package card

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"

	"golang.org/x/image/vector"
)

type point struct{ X, Y float64 }

// segment is one normalised path command: 'M', 'L', 'Q', 'C' or 'Z', with
// absolute coordinates.
type segment struct {
	Op  byte
	Pts [3]point
}

// Path is a parsed SVG path. Relative commands, shorthand curves and arcs
// are resolved at parse time so only absolute moves, lines, quadratic and
// cubic curves remain.
type Path struct {
	segs []segment
}

// ParsePath reads SVG path data (M L H V C S Q T A Z, upper and lower case).
func ParsePath(d string) (*Path, error) {
	p := &pathParser{s: d}
	if err := p.parse(); err != nil {
		return nil, fmt.Errorf("path %q: %w", d, err)
	}
	return &Path{segs: p.segs}, nil
}

// MustParsePath is ParsePath for package-level icon definitions.
func MustParsePath(d string) *Path {
	p, err := ParsePath(d)
	if err != nil {
		panic(err)
	}
	return p
}

// Transform maps path units to pixels: px = X + x*Scale.
type Transform struct {
	X, Y  float64
	Scale float64
}

func (t Transform) apply(p point) (float32, float32) {
	return float32(t.X + p.X*t.Scale), float32(t.Y + p.Y*t.Scale)
}

// Fill rasterises the path with the non-zero rule and composites c over dst.
func (p *Path) Fill(dst *image.RGBA, t Transform, c color.Color) {
	r := p.pixelBounds(t).Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	ras := vector.NewRasterizer(r.Dx(), r.Dy())
	p.trace(ras, Transform{X: t.X - float64(r.Min.X), Y: t.Y - float64(r.Min.Y), Scale: t.Scale})
	ras.Draw(dst, r, image.NewUniform(c), image.Point{})
}

// Mask rasterises the path into an alpha mask covering bounds.
func (p *Path) Mask(bounds image.Rectangle, t Transform) *image.Alpha {
	mask := image.NewAlpha(bounds)
	ras := vector.NewRasterizer(bounds.Dx(), bounds.Dy())
	p.trace(ras, Transform{X: t.X - float64(bounds.Min.X), Y: t.Y - float64(bounds.Min.Y), Scale: t.Scale})
	ras.Draw(mask, bounds, image.Opaque, image.Point{})
	return mask
}

// pixelBounds is the control-point box after t, which contains the curve.
func (p *Path) pixelBounds(t Transform) image.Rectangle {
	min, max := p.Bounds()
	return image.Rect(
		int(math.Floor(t.X+min.X*t.Scale)), int(math.Floor(t.Y+min.Y*t.Scale)),
		int(math.Ceil(t.X+max.X*t.Scale))+1, int(math.Ceil(t.Y+max.Y*t.Scale))+1,
	)
}

func (p *Path) trace(r *vector.Rasterizer, t Transform) {
	open := false
	for _, s := range p.segs {
		switch s.Op {
		case 'M':
			if open {
				r.ClosePath()
			}
			r.MoveTo(t.apply(s.Pts[0]))
			open = true
		case 'L':
			r.LineTo(t.apply(s.Pts[0]))
		case 'Q':
			cx, cy := t.apply(s.Pts[0])
			x, y := t.apply(s.Pts[1])
			r.QuadTo(cx, cy, x, y)
		case 'C':
			ax, ay := t.apply(s.Pts[0])
			bx, by := t.apply(s.Pts[1])
			x, y := t.apply(s.Pts[2])
			r.CubeTo(ax, ay, bx, by, x, y)
		case 'Z':
			r.ClosePath()
			open = false
		}
	}
	if open {
		r.ClosePath()
	}
}

// Bounds returns the control-point bounding box in path units.
func (p *Path) Bounds() (min, max point) {
	first := true
	for _, s := range p.segs {
		n := map[byte]int{'M': 1, 'L': 1, 'Q': 2, 'C': 3}[s.Op]
		for i := 0; i < n; i++ {
			q := s.Pts[i]
			if first {
				min, max, first = q, q, false
				continue
			}
			min.X, min.Y = math.Min(min.X, q.X), math.Min(min.Y, q.Y)
			max.X, max.Y = math.Max(max.X, q.X), math.Max(max.Y, q.Y)
		}
	}
	return min, max
}

type pathParser struct {
	s    string
	i    int
	segs []segment

	cur, start point
	// last control point of the previous C/S or Q/T, for reflection
	lastCubic, lastQuad *point
}

func (p *pathParser) parse() error {
	var cmd byte
	for {
		p.skipSep()
		if p.i >= len(p.s) {
			return nil
		}
		ch := p.s[p.i]
		if isCommand(ch) {
			cmd = ch
			p.i++
		} else if cmd == 0 {
			return fmt.Errorf("expected command at offset %d", p.i)
		} else if cmd == 'Z' || cmd == 'z' {
			return fmt.Errorf("unexpected number after Z at offset %d", p.i)
		}
		if err := p.command(cmd); err != nil {
			return err
		}
		// implicit repetition: M continues as L
		switch cmd {
		case 'M':
			cmd = 'L'
		case 'm':
			cmd = 'l'
		}
	}
}

func isCommand(ch byte) bool {
	switch ch {
	case 'M', 'm', 'L', 'l', 'H', 'h', 'V', 'v', 'C', 'c', 'S', 's', 'Q', 'q', 'T', 't', 'A', 'a', 'Z', 'z':
		return true
	}
	return false
}

func (p *pathParser) command(cmd byte) error {
	rel := cmd >= 'a'
	base := point{}
	if rel {
		base = p.cur
	}
	off := func(q point) point { return point{base.X + q.X, base.Y + q.Y} }

	switch cmd {
	case 'Z', 'z':
		p.emit(segment{Op: 'Z'})
		p.cur = p.start
		p.lastCubic, p.lastQuad = nil, nil
		return nil
	case 'M', 'm':
		q, err := p.point()
		if err != nil {
			return err
		}
		q = off(q)
		p.emit(segment{Op: 'M', Pts: [3]point{q}})
		p.cur, p.start = q, q
		p.lastCubic, p.lastQuad = nil, nil
	case 'L', 'l':
		q, err := p.point()
		if err != nil {
			return err
		}
		p.lineTo(off(q))
	case 'H', 'h':
		x, err := p.number()
		if err != nil {
			return err
		}
		if rel {
			x += p.cur.X
		}
		p.lineTo(point{x, p.cur.Y})
	case 'V', 'v':
		y, err := p.number()
		if err != nil {
			return err
		}
		if rel {
			y += p.cur.Y
		}
		p.lineTo(point{p.cur.X, y})
	case 'C', 'c':
		pts, err := p.points(3)
		if err != nil {
			return err
		}
		p.cubeTo(off(pts[0]), off(pts[1]), off(pts[2]))
	case 'S', 's':
		pts, err := p.points(2)
		if err != nil {
			return err
		}
		c1 := p.cur
		if p.lastCubic != nil {
			c1 = reflect(*p.lastCubic, p.cur)
		}
		p.cubeTo(c1, off(pts[0]), off(pts[1]))
	case 'Q', 'q':
		pts, err := p.points(2)
		if err != nil {
			return err
		}
		p.quadTo(off(pts[0]), off(pts[1]))
	case 'T', 't':
		q, err := p.point()
		if err != nil {
			return err
		}
		c := p.cur
		if p.lastQuad != nil {
			c = reflect(*p.lastQuad, p.cur)
		}
		p.quadTo(c, off(q))
	case 'A', 'a':
		rx, err := p.number()
		if err != nil {
			return err
		}
		ry, err := p.number()
		if err != nil {
			return err
		}
		rot, err := p.number()
		if err != nil {
			return err
		}
		large, err := p.flag()
		if err != nil {
			return err
		}
		sweep, err := p.flag()
		if err != nil {
			return err
		}
		q, err := p.point()
		if err != nil {
			return err
		}
		p.arcTo(rx, ry, rot, large, sweep, off(q))
	}
	return nil
}

func (p *pathParser) emit(s segment) { p.segs = append(p.segs, s) }

func (p *pathParser) lineTo(q point) {
	p.emit(segment{Op: 'L', Pts: [3]point{q}})
	p.cur = q
	p.lastCubic, p.lastQuad = nil, nil
}

func (p *pathParser) quadTo(c, q point) {
	p.emit(segment{Op: 'Q', Pts: [3]point{c, q}})
	p.cur = q
	p.lastCubic, p.lastQuad = nil, &c
}

func (p *pathParser) cubeTo(c1, c2, q point) {
	p.emit(segment{Op: 'C', Pts: [3]point{c1, c2, q}})
	p.cur = q
	p.lastCubic, p.lastQuad = &c2, nil
}

func reflect(c, about point) point {
	return point{2*about.X - c.X, 2*about.Y - c.Y}
}

// arcTo converts an elliptical arc to cubic curves, one per quarter turn at
// most, using the endpoint to centre parameterisation of SVG arcs.
func (p *pathParser) arcTo(rx, ry, rotDeg float64, large, sweep bool, to point) {
	from := p.cur
	if from == to {
		return
	}
	rx, ry = math.Abs(rx), math.Abs(ry)
	if rx == 0 || ry == 0 {
		p.lineTo(to)
		return
	}

	phi := rotDeg * math.Pi / 180
	sin, cos := math.Sincos(phi)
	dx2, dy2 := (from.X-to.X)/2, (from.Y-to.Y)/2
	x1p := cos*dx2 + sin*dy2
	y1p := -sin*dx2 + cos*dy2

	if lambda := x1p*x1p/(rx*rx) + y1p*y1p/(ry*ry); lambda > 1 {
		s := math.Sqrt(lambda)
		rx, ry = rx*s, ry*s
	}

	num := rx*rx*ry*ry - rx*rx*y1p*y1p - ry*ry*x1p*x1p
	den := rx*rx*y1p*y1p + ry*ry*x1p*x1p
	coef := 0.0
	if num > 0 && den > 0 {
		coef = math.Sqrt(num / den)
	}
	if large == sweep {
		coef = -coef
	}
	cxp := coef * rx * y1p / ry
	cyp := -coef * ry * x1p / rx
	cx := cos*cxp - sin*cyp + (from.X+to.X)/2
	cy := sin*cxp + cos*cyp + (from.Y+to.Y)/2

	theta := angle(1, 0, (x1p-cxp)/rx, (y1p-cyp)/ry)
	delta := angle((x1p-cxp)/rx, (y1p-cyp)/ry, (-x1p-cxp)/rx, (-y1p-cyp)/ry)
	if !sweep && delta > 0 {
		delta -= 2 * math.Pi
	} else if sweep && delta < 0 {
		delta += 2 * math.Pi
	}

	n := int(math.Ceil(math.Abs(delta)/(math.Pi/2) - 1e-9))
	if n < 1 {
		n = 1
	}
	step := delta / float64(n)
	k := 4.0 / 3.0 * math.Tan(step/4)
	mapPt := func(x, y float64) point {
		return point{cx + rx*cos*x - ry*sin*y, cy + rx*sin*x + ry*cos*y}
	}
	a1 := theta
	for i := 0; i < n; i++ {
		a2 := a1 + step
		s1, c1 := math.Sincos(a1)
		s2, c2 := math.Sincos(a2)
		end := mapPt(c2, s2)
		if i == n-1 {
			end = to
		}
		p.cubeTo(mapPt(c1-k*s1, s1+k*c1), mapPt(c2+k*s2, s2-k*c2), end)
		a1 = a2
	}
}

func angle(ux, uy, vx, vy float64) float64 {
	return math.Atan2(ux*vy-uy*vx, ux*vx+uy*vy)
}

func (p *pathParser) skipSep() {
	for p.i < len(p.s) {
		switch p.s[p.i] {
		case ' ', '\t', '\n', '\r', ',':
			p.i++
		default:
			return
		}
	}
}

func (p *pathParser) point() (point, error) {
	x, err := p.number()
	if err != nil {
		return point{}, err
	}
	y, err := p.number()
	if err != nil {
		return point{}, err
	}
	return point{x, y}, nil
}

func (p *pathParser) points(n int) ([]point, error) {
	pts := make([]point, n)
	for i := range pts {
		q, err := p.point()
		if err != nil {
			return nil, err
		}
		pts[i] = q
	}
	return pts, nil
}

// number scans one SVG number. "1.5.5" is two numbers and "1-2" is too.
func (p *pathParser) number() (float64, error) {
	p.skipSep()
	start := p.i
	if p.i < len(p.s) && (p.s[p.i] == '+' || p.s[p.i] == '-') {
		p.i++
	}
	digits, dot := false, false
scan:
	for p.i < len(p.s) {
		ch := p.s[p.i]
		switch {
		case ch >= '0' && ch <= '9':
			digits = true
		case ch == '.' && !dot:
			dot = true
		default:
			break scan
		}
		p.i++
	}
	if digits && p.i < len(p.s) && (p.s[p.i] == 'e' || p.s[p.i] == 'E') {
		j := p.i + 1
		if j < len(p.s) && (p.s[j] == '+' || p.s[j] == '-') {
			j++
		}
		if j < len(p.s) && p.s[j] >= '0' && p.s[j] <= '9' {
			for j < len(p.s) && p.s[j] >= '0' && p.s[j] <= '9' {
				j++
			}
			p.i = j
		}
	}
	if !digits {
		return 0, fmt.Errorf("expected number at offset %d", start)
	}
	return strconv.ParseFloat(p.s[start:p.i], 64)
}

// flag reads an arc flag, which may be written without a separator.
func (p *pathParser) flag() (bool, error) {
	p.skipSep()
	if p.i >= len(p.s) {
		return false, fmt.Errorf("expected arc flag at end of path")
	}
	switch p.s[p.i] {
	case '0':
		p.i++
		return false, nil
	case '1':
		p.i++
		return true, nil
	}
	return false, fmt.Errorf("bad arc flag %q at offset %d", p.s[p.i], p.i)
}
