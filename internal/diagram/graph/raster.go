package graph

import (
	runewidth "github.com/mattn/go-runewidth"

	"github.com/julianshen/rubichan/internal/diagram/alphabet"
	"github.com/julianshen/rubichan/internal/diagram/canvas"
)

// axis turns a sparse size map (column width or row height, keyed by
// coarse coordinate) into prefix sums so drawing coordinates can be
// computed for any grid coordinate, per the §4.6 mapping formula.
type axis struct {
	min, max int
	size     map[int]int
	prefix   map[int]int
}

func buildAxis(sizes map[int]int) *axis {
	a := &axis{size: sizes, prefix: map[int]int{}}
	if len(sizes) == 0 {
		return a
	}
	minK, maxK := 0, 0
	first := true
	for k := range sizes {
		if first || k < minK {
			minK = k
		}
		if first || k > maxK {
			maxK = k
		}
		first = false
	}
	a.min, a.max = minK, maxK
	sum := 0
	for k := minK; k <= maxK+1; k++ {
		a.prefix[k] = sum
		sum += sizes[k]
	}
	return a
}

func (a *axis) start(k int) int {
	if v, ok := a.prefix[k]; ok {
		return v
	}
	if k <= a.min {
		return 0
	}
	sum := a.prefix[a.max+1]
	for i := a.max + 1; i < k; i++ {
		sum += a.size[i]
	}
	return sum
}

func (a *axis) center(k int) int {
	return a.start(k) + a.size[k]/2
}

func (a *axis) extent() int {
	return a.start(a.max + 1)
}

type mapper struct {
	x, y           *axis
	offsetX, offsetY int
}

func (m *mapper) point(gx, gy int) canvas.DrawingCoord {
	return canvas.DrawingCoord{X: m.x.center(gx) + m.offsetX, Y: m.y.center(gy) + m.offsetY}
}

func (m *mapper) boxRect(gx, gy int) (left, top, w, h int) {
	left = m.x.start(gx+1) + m.offsetX
	top = m.y.start(gy+1) + m.offsetY
	w = m.x.size[gx+1]
	h = m.y.size[gy+1]
	return
}

// Rasterize converts a laid-out and routed GraphProperties into a
// final canvas, following the §4.6 draw order exactly: subgraph
// borders, node boxes, edges (line, corners, arrow head, box-start
// tee, then every label on a separate overlay), and finally subgraph
// labels.
func Rasterize(g *GraphProperties) *canvas.Canvas {
	a := pickAlphabet(g.UseASCII)
	axisX := buildAxis(g.ColWidth)
	axisY := buildAxis(g.RowHeight)
	m := &mapper{x: axisX, y: axisY}

	// Pass 1: unshifted node boxes, to compute subgraph bboxes.
	for _, n := range g.Nodes {
		if n.GridCoord == nil {
			continue
		}
		left, top, w, h := m.boxRect(n.GridCoord.X, n.GridCoord.Y)
		n.BoxWidth = w
		n.BoxHeight = h
		coord := canvas.DrawingCoord{X: left, Y: top}
		n.DrawingCoord = &coord
	}

	computeSubgraphBBoxes(g, m)
	applySubgraphSpacing(g)

	offsetX, offsetY := 0, 0
	for _, sg := range g.Subgraphs {
		if -sg.BBox.MinX > offsetX {
			offsetX = -sg.BBox.MinX
		}
		if -sg.BBox.MinY > offsetY {
			offsetY = -sg.BBox.MinY
		}
	}
	m.offsetX, m.offsetY = offsetX, offsetY

	for _, sg := range g.Subgraphs {
		sg.BBox.MinX += offsetX
		sg.BBox.MaxX += offsetX
		sg.BBox.MinY += offsetY
		sg.BBox.MaxY += offsetY
	}
	for _, n := range g.Nodes {
		if n.DrawingCoord == nil {
			continue
		}
		n.DrawingCoord.X += offsetX
		n.DrawingCoord.Y += offsetY
	}

	width, height := canvasExtent(g, m)
	base := canvas.New(width, height)

	base = canvas.Merge(base, []canvas.Overlay{{Canvas: subgraphBorderOverlay(g, width, height, a), X: 0, Y: 0}}, g.UseASCII)
	base = canvas.Merge(base, []canvas.Overlay{{Canvas: nodeBoxOverlay(g, width, height, a), X: 0, Y: 0}}, g.UseASCII)

	for _, e := range g.Edges {
		if len(e.Path) == 0 {
			continue
		}
		edgeCv := canvas.New(width, height)
		drawEdgeLine(edgeCv, e, m, a, g.UseASCII)
		base = canvas.Merge(base, []canvas.Overlay{{Canvas: edgeCv, X: 0, Y: 0}}, g.UseASCII)
	}

	labelsCv := canvas.New(width, height)
	for _, e := range g.Edges {
		drawEdgeLabel(labelsCv, e, m)
	}
	base = canvas.Merge(base, []canvas.Overlay{{Canvas: labelsCv, X: 0, Y: 0}}, g.UseASCII)

	subgraphLabelsCv := canvas.New(width, height)
	for _, sg := range g.Subgraphs {
		drawSubgraphLabel(subgraphLabelsCv, sg)
	}
	base = canvas.Merge(base, []canvas.Overlay{{Canvas: subgraphLabelsCv, X: 0, Y: 0}}, g.UseASCII)

	return base
}

func pickAlphabet(useASCII bool) alphabet.Alphabet {
	if useASCII {
		return alphabet.GraphASCII
	}
	return alphabet.Graph
}

func canvasExtent(g *GraphProperties, m *mapper) (int, int) {
	w := m.x.extent() + m.offsetX
	h := m.y.extent() + m.offsetY
	for _, sg := range g.Subgraphs {
		if sg.BBox.MaxX > w {
			w = sg.BBox.MaxX
		}
		if sg.BBox.MaxY > h {
			h = sg.BBox.MaxY
		}
	}
	for _, n := range g.Nodes {
		if n.DrawingCoord == nil {
			continue
		}
		right := n.DrawingCoord.X + n.BoxWidth
		bottom := n.DrawingCoord.Y + n.BoxHeight
		if right > w {
			w = right
		}
		if bottom > h {
			h = bottom
		}
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// computeSubgraphBBoxes computes every subgraph's bounding box,
// innermost outward, in unshifted drawing coordinates: the union of
// its direct nodes' box extents and its children's bboxes, expanded
// by 2 padding units on every side and an extra 2 at the top for the
// label.
func computeSubgraphBBoxes(g *GraphProperties, m *mapper) {
	depth := map[string]int{}
	var depthOf func(name string) int
	depthOf = func(name string) int {
		if d, ok := depth[name]; ok {
			return d
		}
		sg := g.SubgraphByName[name]
		d := 0
		if sg.Parent != "" {
			d = depthOf(sg.Parent) + 1
		}
		depth[name] = d
		return d
	}
	order := append([]*Subgraph(nil), g.Subgraphs...)
	for _, sg := range order {
		depthOf(sg.Name)
	}
	// Deepest first.
	for i := 0; i < len(order); i++ {
		for j := i + 1; j < len(order); j++ {
			if depth[order[j].Name] > depth[order[i].Name] {
				order[i], order[j] = order[j], order[i]
			}
		}
	}

	for _, sg := range order {
		first := true
		var bb BBox
		extend := func(x1, y1, x2, y2 int) {
			if first {
				bb = BBox{MinX: x1, MinY: y1, MaxX: x2, MaxY: y2}
				first = false
				return
			}
			if x1 < bb.MinX {
				bb.MinX = x1
			}
			if y1 < bb.MinY {
				bb.MinY = y1
			}
			if x2 > bb.MaxX {
				bb.MaxX = x2
			}
			if y2 > bb.MaxY {
				bb.MaxY = y2
			}
		}
		for _, nodeName := range sg.Nodes {
			n := g.NodeIndex[nodeName]
			if n == nil || n.DrawingCoord == nil {
				continue
			}
			extend(n.DrawingCoord.X, n.DrawingCoord.Y, n.DrawingCoord.X+n.BoxWidth, n.DrawingCoord.Y+n.BoxHeight)
		}
		for _, childName := range sg.Children {
			child := g.SubgraphByName[childName]
			if child == nil {
				continue
			}
			extend(child.BBox.MinX, child.BBox.MinY, child.BBox.MaxX, child.BBox.MaxY)
		}
		if first {
			continue
		}
		bb.MinX -= 2
		bb.MaxX += 2
		bb.MinY -= 4 // 2 padding + 2 for the label
		bb.MaxY += 2
		sg.BBox = bb
	}
}

// applySubgraphSpacing pushes apart root subgraphs (no parent) whose
// bboxes overlap, moving only the later one's own bbox — never its
// descendants' bboxes or its members' node coordinates. That
// asymmetry is intentional: spec.md §9 documents it as a known
// reference quirk where a pushed subgraph's border can end up
// enclosing less than its members occupy, and says to reproduce it
// rather than "fix" it with a fuller re-layout.
func applySubgraphSpacing(g *GraphProperties) {
	var roots []*Subgraph
	for _, sg := range g.Subgraphs {
		if sg.Parent == "" {
			roots = append(roots, sg)
		}
	}
	for i := 0; i < len(roots); i++ {
		for j := i + 1; j < len(roots); j++ {
			a, b := roots[i], roots[j]
			overlapX := rangeOverlap(a.BBox.MinX, a.BBox.MaxX, b.BBox.MinX, b.BBox.MaxX)
			overlapY := rangeOverlap(a.BBox.MinY, a.BBox.MaxY, b.BBox.MinY, b.BBox.MaxY)
			if overlapX <= 0 || overlapY <= 0 {
				continue
			}
			if overlapX <= overlapY {
				shift := overlapX + 1
				b.BBox.MinX += shift
				b.BBox.MaxX += shift
			} else {
				shift := overlapY + 1
				b.BBox.MinY += shift
				b.BBox.MaxY += shift
			}
		}
	}
}

func rangeOverlap(aMin, aMax, bMin, bMax int) int {
	lo := aMin
	if bMin > lo {
		lo = bMin
	}
	hi := aMax
	if bMax < hi {
		hi = bMax
	}
	return hi - lo
}

func subgraphBorderOverlay(g *GraphProperties, width, height int, a alphabet.Alphabet) *canvas.Canvas {
	cv := canvas.New(width, height)
	var overlays []canvas.Overlay
	for _, sg := range g.Subgraphs {
		w := sg.BBox.MaxX - sg.BBox.MinX
		h := sg.BBox.MaxY - sg.BBox.MinY
		if w < 1 || h < 1 {
			continue
		}
		box := canvas.DrawBox(w, h, "", a)
		overlays = append(overlays, canvas.Overlay{Canvas: box, X: sg.BBox.MinX, Y: sg.BBox.MinY})
	}
	return canvas.Merge(cv, overlays, g.UseASCII)
}

func nodeBoxOverlay(g *GraphProperties, width, height int, a alphabet.Alphabet) *canvas.Canvas {
	cv := canvas.New(width, height)
	var overlays []canvas.Overlay
	for _, n := range g.Nodes {
		if n.DrawingCoord == nil {
			continue
		}
		box := canvas.DrawBox(n.BoxWidth-1, n.BoxHeight-1, n.Name, a)
		overlays = append(overlays, canvas.Overlay{Canvas: box, X: n.DrawingCoord.X, Y: n.DrawingCoord.Y})
		n.Drawn = true
	}
	return canvas.Merge(cv, overlays, g.UseASCII)
}

func drawEdgeLine(cv *canvas.Canvas, e *Edge, m *mapper, a alphabet.Alphabet, useASCII bool) {
	points := make([]canvas.DrawingCoord, len(e.Path))
	for i, gc := range e.Path {
		points[i] = m.point(gc.X, gc.Y)
	}

	var lastCells []canvas.DrawingCoord
	for i := 0; i < len(points)-1; i++ {
		lastCells = cv.DrawLine(points[i], points[i+1], canvas.DrawingCoord{}, canvas.DrawingCoord{}, a)
		if i > 0 {
			prevDir := rawDirection(e.Path[i-1], e.Path[i])
			nextDir := rawDirection(e.Path[i], e.Path[i+1])
			cv.Set(points[i].X, points[i].Y, a.CornerGlyph(prevDir, nextDir))
		}
	}

	if len(points) > 0 {
		cv.Set(points[0].X, points[0].Y, boxStartOrLine(a, e.StartDir, useASCII, cv.At(points[0].X, points[0].Y)))
	}

	if len(lastCells) > 0 {
		travelDir := e.EndDir
		if len(e.Path) >= 2 {
			travelDir = rawDirection(e.Path[len(e.Path)-2], e.Path[len(e.Path)-1])
		}
		last := lastCells[len(lastCells)-1]
		cv.Set(last.X, last.Y, a.ArrowGlyph(travelDir, e.EndDir))
	}
}

// boxStartOrLine returns the tee glyph that fuses a path's anchor
// point into its source node's border. In ASCII mode there is no
// separate tee alphabet, so the line glyph already drawn there is
// kept.
func boxStartOrLine(a alphabet.Alphabet, dir alphabet.Direction, useASCII bool, existing rune) rune {
	if useASCII {
		return existing
	}
	return a.BoxStartGlyph(dir)
}

func drawEdgeLabel(cv *canvas.Canvas, e *Edge, m *mapper) {
	if e.Label == "" || !e.HasLabelSeg {
		return
	}
	a, b := e.LabelSegment[0], e.LabelSegment[1]
	pa, pb := m.point(a.X, a.Y), m.point(b.X, b.Y)
	midX := (pa.X + pb.X) / 2
	midY := (pa.Y + pb.Y) / 2
	width := runewidth.StringWidth(e.Label)
	startX := midX - width/2
	cv.DrawText(canvas.DrawingCoord{X: startX, Y: midY}, e.Label)
}

func drawSubgraphLabel(cv *canvas.Canvas, sg *Subgraph) {
	width := runewidth.StringWidth(sg.Name)
	centerX := (sg.BBox.MinX + sg.BBox.MaxX) / 2
	startX := centerX - width/2
	cv.DrawText(canvas.DrawingCoord{X: startX, Y: sg.BBox.MinY + 1}, sg.Name)
}
