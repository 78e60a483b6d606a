package graph

import (
	"container/heap"

	runewidth "github.com/mattn/go-runewidth"
)

// Route computes, for every edge in parse order, an orthogonal routed
// path over the coarse grid (§4.5), writes Path/LabelSegment/StartDir/EndDir
// onto each edge, and performs the per-edge column/row sizing
// adjustments the router is responsible for.
func Route(g *GraphProperties, reserved map[GridCoord]bool) {
	bounds := computeBounds(g)
	for _, e := range g.Edges {
		routeEdge(g, e, reserved, bounds)
		sizeAlongPath(g, e)
		chooseLabelSegment(g, e)
	}
}

type rect struct{ minX, minY, maxX, maxY int }

func computeBounds(g *GraphProperties) rect {
	r := rect{minX: -4, minY: -4, maxX: 8, maxY: 8}
	for _, n := range g.Nodes {
		if n.GridCoord == nil {
			continue
		}
		if n.GridCoord.X+6 > r.maxX {
			r.maxX = n.GridCoord.X + 6
		}
		if n.GridCoord.Y+6 > r.maxY {
			r.maxY = n.GridCoord.Y + 6
		}
	}
	return r
}

func apply(c GridCoord, d Direction) GridCoord {
	dx, dy := d.Offset()
	return GridCoord{X: c.X + dx, Y: c.Y + dy}
}

func routeEdge(g *GraphProperties, e *Edge, reserved map[GridCoord]bool, bounds rect) {
	from := g.NodeIndex[e.From]
	to := g.NodeIndex[e.To]
	if from == nil || to == nil || from.GridCoord == nil || to.GridCoord == nil {
		return
	}

	if e.From == e.To {
		var start, end Direction
		if g.Direction == LR {
			start, end = Right, Down
		} else {
			start, end = Down, Right
		}
		startFrom := apply(*from.GridCoord, start)
		endAt := apply(*to.GridCoord, end.Opposite())
		path, ok := search(startFrom, endAt, reserved, bounds)
		if !ok {
			return
		}
		e.Path = mergeCollinear(path)
		e.StartDir = start
		e.EndDir = end
		return
	}

	raw := rawDirection(*from.GridCoord, *to.GridCoord)
	prefStart, prefEnd := directionsFor(raw, g.Direction)
	altStart, altEnd := raw, raw.Opposite()

	prefPath, prefOK := tryRoute(from, to, prefStart, prefEnd, reserved, bounds)
	var altPath []GridCoord
	var altOK bool
	if altStart != prefStart || altEnd != prefEnd {
		altPath, altOK = tryRoute(from, to, altStart, altEnd, reserved, bounds)
	}

	switch {
	case prefOK && altOK:
		if len(altPath) < len(prefPath) {
			e.Path, e.StartDir, e.EndDir = altPath, altStart, altEnd
		} else {
			e.Path, e.StartDir, e.EndDir = prefPath, prefStart, prefEnd
		}
	case prefOK:
		e.Path, e.StartDir, e.EndDir = prefPath, prefStart, prefEnd
	case altOK:
		e.Path, e.StartDir, e.EndDir = altPath, altStart, altEnd
	default:
		// Router guard exhausted the search: record the edge without
		// a path (PathSearchExhausted, surfaced as "empty path" per
		// spec.md §7; not returned to the caller as an error).
	}
}

func tryRoute(from, to *Node, start, end Direction, reserved map[GridCoord]bool, bounds rect) ([]GridCoord, bool) {
	startFrom := apply(*from.GridCoord, start)
	endAt := apply(*to.GridCoord, end.Opposite())
	path, ok := search(startFrom, endAt, reserved, bounds)
	if !ok {
		return nil, false
	}
	return mergeCollinear(path), true
}

func rawDirection(from, to GridCoord) Direction {
	dx, dy := to.X-from.X, to.Y-from.Y
	switch {
	case dx == 0 && dy == 0:
		return Middle
	case dy == 0 && dx > 0:
		return Right
	case dy == 0 && dx < 0:
		return Left
	case dx == 0 && dy > 0:
		return Down
	case dx == 0 && dy < 0:
		return Up
	case dx > 0 && dy > 0:
		return LowerRight
	case dx > 0 && dy < 0:
		return UpperRight
	case dx < 0 && dy > 0:
		return LowerLeft
	default:
		return UpperLeft
	}
}

// directionsFor implements the preferred-direction table of spec.md
// §4.5: axis-aligned raw directions pass through unchanged except for
// the two named "backwards" cases; diagonal raw directions resolve by
// graph direction per the explicit table.
func directionsFor(raw Direction, gdir GraphDirection) (start, end Direction) {
	switch raw {
	case Up:
		if gdir == TD {
			return Right, Right
		}
		return Up, Down
	case Down, Right:
		return raw, raw.Opposite()
	case Left:
		if gdir == LR {
			return Down, Down
		}
		return Left, Right
	case LowerRight:
		if gdir == LR {
			return Down, Left
		}
		return Right, Up
	case UpperRight:
		if gdir == LR {
			return Up, Left
		}
		return Right, Down
	case LowerLeft:
		if gdir == LR {
			return Down, Down
		}
		return Left, Up
	case UpperLeft:
		if gdir == LR {
			return Down, Down
		}
		return Right, Right
	default:
		return raw, raw.Opposite()
	}
}

// --- best-first search over the coarse grid ---

type axisDir int

const (
	axisNone axisDir = iota
	axisUp
	axisDown
	axisLeft
	axisRight
)

type searchState struct {
	cell GridCoord
	dir  axisDir
}

type pqItem struct {
	state    searchState
	g        int
	priority int
	index    int
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].priority < pq[j].priority }
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i]; pq[i].index, pq[j].index = i, j }
func (pq *priorityQueue) Push(x any) {
	item := x.(*pqItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

func manhattan(a, b GridCoord) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// search performs a best-first search (A* with a Manhattan heuristic
// plus a +1 penalty for any step that turns relative to the previous
// step) from start to target over the coarse grid, treating reserved
// cells as impassable except the target itself.
func search(start, target GridCoord, reserved map[GridCoord]bool, bounds rect) ([]GridCoord, bool) {
	if start == target {
		return []GridCoord{start}, true
	}

	cameFrom := map[searchState]searchState{}
	bestG := map[searchState]int{}

	startState := searchState{cell: start, dir: axisNone}
	bestG[startState] = 0

	pq := &priorityQueue{}
	heap.Init(pq)
	heap.Push(pq, &pqItem{state: startState, g: 0, priority: manhattan(start, target)})

	var goalState searchState
	found := false

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*pqItem)
		cur := item.state
		if g, ok := bestG[cur]; ok && item.g > g {
			continue
		}
		if cur.cell == target {
			goalState = cur
			found = true
			break
		}
		for _, nd := range []axisDir{axisUp, axisDown, axisLeft, axisRight} {
			next := stepCell(cur.cell, nd)
			if !inBounds(next, bounds) {
				continue
			}
			if next != target && reserved[next] {
				continue
			}
			turnPenalty := 0
			if cur.dir != axisNone && cur.dir != nd {
				turnPenalty = 1
			}
			ng := item.g + 1 + turnPenalty
			nextState := searchState{cell: next, dir: nd}
			if existing, ok := bestG[nextState]; ok && existing <= ng {
				continue
			}
			bestG[nextState] = ng
			cameFrom[nextState] = cur
			heap.Push(pq, &pqItem{state: nextState, g: ng, priority: ng + manhattan(next, target)})
		}
	}

	if !found {
		return nil, false
	}

	var cells []GridCoord
	s := goalState
	for {
		cells = append([]GridCoord{s.cell}, cells...)
		prev, ok := cameFrom[s]
		if !ok {
			break
		}
		s = prev
	}
	return cells, true
}

func stepCell(c GridCoord, d axisDir) GridCoord {
	switch d {
	case axisUp:
		return GridCoord{X: c.X, Y: c.Y - 1}
	case axisDown:
		return GridCoord{X: c.X, Y: c.Y + 1}
	case axisLeft:
		return GridCoord{X: c.X - 1, Y: c.Y}
	case axisRight:
		return GridCoord{X: c.X + 1, Y: c.Y}
	default:
		return c
	}
}

func inBounds(c GridCoord, b rect) bool {
	return c.X >= b.minX && c.X <= b.maxX && c.Y >= b.minY && c.Y <= b.maxY
}

// mergeCollinear drops every interior point whose two neighbours yield
// the same travel direction, leaving only turn points — so
// len(result) == corners + 1.
func mergeCollinear(path []GridCoord) []GridCoord {
	if len(path) <= 2 {
		return path
	}
	out := []GridCoord{path[0]}
	for i := 1; i < len(path)-1; i++ {
		d1 := rawDirection(path[i-1], path[i])
		d2 := rawDirection(path[i], path[i+1])
		if d1 != d2 {
			out = append(out, path[i])
		}
	}
	out = append(out, path[len(path)-1])
	return out
}

func sizeAlongPath(g *GraphProperties, e *Edge) {
	if len(e.Path) == 0 {
		return
	}
	halfX := g.PaddingX / 2
	halfY := g.PaddingY / 2
	visited := map[GridCoord]bool{}
	for i := 0; i < len(e.Path)-1; i++ {
		for _, c := range lineCells(e.Path[i], e.Path[i+1]) {
			if visited[c] {
				continue
			}
			visited[c] = true
			maxSet(g.ColWidth, c.X, halfX)
			maxSet(g.RowHeight, c.Y, halfY)
		}
	}
}

func lineCells(a, b GridCoord) []GridCoord {
	var cells []GridCoord
	dx, dy := sign(b.X-a.X), sign(b.Y-a.Y)
	x, y := a.X, a.Y
	for {
		cells = append(cells, GridCoord{X: x, Y: y})
		if x == b.X && y == b.Y {
			break
		}
		x += dx
		y += dy
	}
	return cells
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// chooseLabelSegment walks consecutive path pairs and keeps the first
// segment whose column-width drawing-space sum is at least the label's
// display width; if none qualifies it keeps the widest seen. It then
// bumps that segment's middle column to fit the label.
func chooseLabelSegment(g *GraphProperties, e *Edge) {
	if e.Label == "" || len(e.Path) < 2 {
		return
	}
	labelWidth := runewidth.StringWidth(e.Label)

	var bestSeg [2]GridCoord
	bestWidth := -1
	found := false
	for i := 0; i < len(e.Path)-1; i++ {
		a, b := e.Path[i], e.Path[i+1]
		w := segmentWidth(g, a, b)
		if w >= labelWidth {
			bestSeg = [2]GridCoord{a, b}
			bestWidth = w
			found = true
			break
		}
		if w > bestWidth {
			bestSeg = [2]GridCoord{a, b}
			bestWidth = w
			found = true
		}
	}
	if !found {
		return
	}
	e.LabelSegment = bestSeg
	e.HasLabelSeg = true

	midX := (bestSeg[0].X + bestSeg[1].X) / 2
	maxSet(g.ColWidth, midX, labelWidth+2)
}

func segmentWidth(g *GraphProperties, a, b GridCoord) int {
	if a.Y == b.Y {
		lo, hi := a.X, b.X
		if lo > hi {
			lo, hi = hi, lo
		}
		w := 0
		for x := lo; x <= hi; x++ {
			w += g.ColWidth[x]
		}
		return w
	}
	return g.ColWidth[a.X]
}
