// Package canvas implements the 2D mutable character grid that every
// diagram engine rasterises onto, plus its size-extending, junction-aware
// merge operation and a handful of drawing primitives.
package canvas

import (
	"strings"

	"github.com/julianshen/rubichan/internal/diagram/alphabet"
	runewidth "github.com/mattn/go-runewidth"
)

// DrawingCoord is a point in the fine character canvas. It is never
// mixed implicitly with a graph.GridCoord.
type DrawingCoord struct {
	X, Y int
}

// Canvas is a width x height grid of single display characters,
// zero-initialized to space. Indexing is (x, y) with x horizontal.
type Canvas struct {
	width, height int
	cells         [][]rune
}

// New returns a canvas with dimensions exactly (w+1) x (h+1) — Mermaid
// ASCII fixtures use inclusive coordinates, so a request for width w
// must be able to address column w.
func New(w, h int) *Canvas {
	return newExact(w+1, h+1)
}

func newExact(w, h int) *Canvas {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	cells := make([][]rune, h)
	for y := range cells {
		row := make([]rune, w)
		for x := range row {
			row[x] = ' '
		}
		cells[y] = row
	}
	return &Canvas{width: w, height: h, cells: cells}
}

// Size returns the canvas's exact stored dimensions.
func (d *Canvas) Size() (int, int) {
	return d.width, d.height
}

// CopyShape returns a blank canvas with the same dimensions as d, used
// to build an overlay that is later merged at a known z-order.
func (d *Canvas) CopyShape() *Canvas {
	return newExact(d.width, d.height)
}

// Extend returns a canvas whose dimensions cover both d and the point
// (x, y), preserving every existing cell.
func (d *Canvas) Extend(x, y int) *Canvas {
	w, h := d.width, d.height
	if x+1 > w {
		w = x + 1
	}
	if y+1 > h {
		h = y + 1
	}
	if w == d.width && h == d.height {
		return d
	}
	out := newExact(w, h)
	for y := 0; y < d.height; y++ {
		copy(out.cells[y], d.cells[y])
	}
	return out
}

// At returns the character at (x, y), or space if out of bounds.
func (d *Canvas) At(x, y int) rune {
	if x < 0 || y < 0 || y >= d.height || x >= d.width {
		return ' '
	}
	return d.cells[y][x]
}

// Set writes a single character at (x, y) if it is within bounds.
func (d *Canvas) Set(x, y int, c rune) {
	if x < 0 || y < 0 || y >= d.height || x >= d.width {
		return
	}
	d.cells[y][x] = c
}

// Overlay pairs a canvas with the offset at which it should be merged
// onto a base canvas.
type Overlay struct {
	Canvas *Canvas
	X, Y   int
}

// Merge returns a new canvas sized to fit base and every offset overlay.
// For each non-space cell in each overlay, in argument order, it writes
// that cell onto the result; when useAscii is false and both the
// destination and the incoming cell are junction glyphs, the write
// substitutes alphabet.Merge(dest, src) instead of a plain overwrite.
// Space cells in an overlay never write.
func Merge(base *Canvas, overlays []Overlay, useAscii bool) *Canvas {
	w, h := base.width, base.height
	for _, o := range overlays {
		if o.Canvas == nil {
			continue
		}
		ow, oh := o.Canvas.Size()
		if o.X+ow > w {
			w = o.X + ow
		}
		if o.Y+oh > h {
			h = o.Y + oh
		}
	}
	out := newExact(w, h)
	for y := 0; y < base.height; y++ {
		copy(out.cells[y], base.cells[y])
	}
	for _, o := range overlays {
		if o.Canvas == nil {
			continue
		}
		ow, oh := o.Canvas.Size()
		for y := 0; y < oh; y++ {
			for x := 0; x < ow; x++ {
				src := o.Canvas.cells[y][x]
				if src == ' ' {
					continue
				}
				dx, dy := o.X+x, o.Y+y
				if dx < 0 || dy < 0 || dx >= w || dy >= h {
					continue
				}
				dest := out.cells[dy][dx]
				if !useAscii && dest != ' ' && alphabet.IsJunction(dest) && alphabet.IsJunction(src) {
					out.cells[dy][dx] = alphabet.Merge(dest, src)
				} else {
					out.cells[dy][dx] = src
				}
			}
		}
	}
	return out
}

// String emits rows top-to-bottom, columns left-to-right, joined by
// '\n', with no trailing newline after the last row.
func (d *Canvas) String() string {
	var b strings.Builder
	for y := 0; y < d.height; y++ {
		b.WriteString(string(d.cells[y]))
		if y < d.height-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// DrawText writes the characters of s starting at start, advancing in
// +x. Wide runes (as measured by runewidth) still advance one cell per
// rune; callers that need exact terminal-column alignment for
// double-width glyphs measure with runewidth.StringWidth before
// choosing start.
func (d *Canvas) DrawText(start DrawingCoord, s string) {
	x := start.X
	for _, r := range s {
		d.Set(x, start.Y, r)
		x++
	}
}

// DrawBox returns an overlay containing a w x h rectangle with text
// centered horizontally at row h/2 and starting at column
// w/2 - ceil(displayWidth(text)/2) + 1, using runewidth so
// double-width labels still center correctly.
func DrawBox(w, h int, text string, a alphabet.Alphabet) *Canvas {
	box := New(w, h)
	if w < 1 || h < 1 {
		return box
	}
	for x := 0; x <= w; x++ {
		box.Set(x, 0, a.Horizontal)
		box.Set(x, h, a.Horizontal)
	}
	for y := 0; y <= h; y++ {
		box.Set(0, y, a.Vertical)
		box.Set(w, y, a.Vertical)
	}
	box.Set(0, 0, a.CornerTopLeft)
	box.Set(w, 0, a.CornerTopRight)
	box.Set(0, h, a.CornerBottomLeft)
	box.Set(w, h, a.CornerBottomRight)

	row := h / 2
	textWidth := runewidth.StringWidth(text)
	col := w/2 - (textWidth+1)/2 + 1
	box.DrawText(DrawingCoord{X: col, Y: row}, text)
	return box
}

// compass8 is one of the eight compass directions a straight or
// diagonal line can travel.
type compass8 int

const (
	cNone compass8 = iota
	cUp
	cDown
	cLeft
	cRight
	cUpperLeft
	cUpperRight
	cLowerLeft
	cLowerRight
)

func directionBetween(from, to DrawingCoord) compass8 {
	dx, dy := to.X-from.X, to.Y-from.Y
	switch {
	case dx == 0 && dy == 0:
		return cNone
	case dx == 0 && dy < 0:
		return cUp
	case dx == 0 && dy > 0:
		return cDown
	case dy == 0 && dx < 0:
		return cLeft
	case dy == 0 && dx > 0:
		return cRight
	case dx < 0 && dy < 0:
		return cUpperLeft
	case dx > 0 && dy < 0:
		return cUpperRight
	case dx < 0 && dy > 0:
		return cLowerLeft
	default:
		return cLowerRight
	}
}

func step(c compass8) (int, int) {
	switch c {
	case cUp:
		return 0, -1
	case cDown:
		return 0, 1
	case cLeft:
		return -1, 0
	case cRight:
		return 1, 0
	case cUpperLeft:
		return -1, -1
	case cUpperRight:
		return 1, -1
	case cLowerLeft:
		return -1, 1
	case cLowerRight:
		return 1, 1
	default:
		return 0, 0
	}
}

// DrawLine draws along one of the eight compass directions determined
// from from and to (offset by offsetFrom/offsetTo, both applied before
// direction is computed) onto d, and returns the cells written, in
// traversal order, for use by arrow-head placement. Horizontal and
// vertical runs use Horizontal/Vertical; diagonal runs use
// DiagonalDown ("╲", upper-left to lower-right travel) or DiagonalUp
// ("╱", lower-left to upper-right travel).
func (d *Canvas) DrawLine(from, to DrawingCoord, offsetFrom, offsetTo DrawingCoord, a alphabet.Alphabet) []DrawingCoord {
	start := DrawingCoord{X: from.X + offsetFrom.X, Y: from.Y + offsetFrom.Y}
	end := DrawingCoord{X: to.X + offsetTo.X, Y: to.Y + offsetTo.Y}

	dir := directionBetween(start, end)
	if dir == cNone {
		return nil
	}
	glyph := lineGlyph(dir, a)
	dx, dy := step(dir)

	var cells []DrawingCoord
	x, y := start.X, start.Y
	for {
		d.Set(x, y, glyph)
		cells = append(cells, DrawingCoord{X: x, Y: y})
		if x == end.X && y == end.Y {
			break
		}
		x += dx
		y += dy
	}
	return cells
}

func lineGlyph(dir compass8, a alphabet.Alphabet) rune {
	switch dir {
	case cUp, cDown:
		return a.Vertical
	case cLeft, cRight:
		return a.Horizontal
	case cUpperLeft, cLowerRight:
		return a.DiagonalDown
	default: // cUpperRight, cLowerLeft
		return a.DiagonalUp
	}
}
