package graph

import (
	runewidth "github.com/mattn/go-runewidth"
)

// Layout assigns grid coordinates to every node (§4.4 phase A) and
// computes per-column widths and per-row heights (§4.4 phase B). It
// also returns the set of coarse cells reserved by node 3x3 blocks,
// which the router treats as impassable.
func Layout(g *GraphProperties) map[GridCoord]bool {
	reserved := make(map[GridCoord]bool)

	placeRoots(g, reserved)
	placeChildren(g, reserved)

	g.ColWidth = make(map[int]int)
	g.RowHeight = make(map[int]int)
	for _, n := range g.Nodes {
		if n.GridCoord != nil {
			sizeNode(g, n)
		}
	}
	return reserved
}

func reserveBlock(reserved map[GridCoord]bool, x, y int) bool {
	for dy := 0; dy < 3; dy++ {
		for dx := 0; dx < 3; dx++ {
			if reserved[GridCoord{X: x + dx, Y: y + dy}] {
				return false
			}
		}
	}
	for dy := 0; dy < 3; dy++ {
		for dx := 0; dx < 3; dx++ {
			reserved[GridCoord{X: x + dx, Y: y + dy}] = true
		}
	}
	return true
}

// placeAt finds the next free position on level (retrying +4 on the
// position axis whenever the 3x3 reservation collides), reserves it,
// and returns the grid coordinate.
func placeAt(reserved map[GridCoord]bool, nextFree map[int]int, level int, isLR bool) GridCoord {
	for {
		pos := nextFree[level]
		nextFree[level] = pos + 4
		var gx, gy int
		if isLR {
			gx, gy = level, pos
		} else {
			gx, gy = pos, level
		}
		if reserveBlock(reserved, gx, gy) {
			return GridCoord{X: gx, Y: gy}
		}
		// Collision: retried at +4 on the non-level axis happens
		// automatically since nextFree[level] already advanced by 4
		// before the next loop iteration.
	}
}

func isInAnySubgraph(g *GraphProperties, name string) bool {
	for _, sg := range g.Subgraphs {
		for _, n := range sg.Nodes {
			if n == name {
				return true
			}
		}
	}
	return false
}

func hasIncomingEdge(g *GraphProperties, name string) bool {
	for _, e := range g.Edges {
		if e.To == name {
			return true
		}
	}
	return false
}

func placeRoots(g *GraphProperties, reserved map[GridCoord]bool) {
	isLR := g.Direction == LR
	nextFree := map[int]int{}

	var roots []*Node
	for _, n := range g.Nodes {
		if !hasIncomingEdge(g, n.Name) {
			roots = append(roots, n)
		}
	}

	var externalRoots, internalRootsWithEdges, otherRoots []*Node
	for _, n := range roots {
		inSub := isInAnySubgraph(g, n.Name)
		switch {
		case !inSub:
			externalRoots = append(externalRoots, n)
		case inSub && len(g.ChildrenOf(n.Name)) > 0:
			internalRootsWithEdges = append(internalRootsWithEdges, n)
		default:
			otherRoots = append(otherRoots, n)
		}
	}

	if isLR && len(externalRoots) > 0 && len(internalRootsWithEdges) > 0 {
		for _, n := range externalRoots {
			n.GridCoord = ptr(placeAt(reserved, nextFree, 0, isLR))
		}
		for _, n := range internalRootsWithEdges {
			n.GridCoord = ptr(placeAt(reserved, nextFree, 4, isLR))
		}
		for _, n := range otherRoots {
			n.GridCoord = ptr(placeAt(reserved, nextFree, 0, isLR))
		}
		return
	}

	for _, n := range roots {
		n.GridCoord = ptr(placeAt(reserved, nextFree, 0, isLR))
	}
}

// placeChildren walks nodes in parse order, placing every still
// unplaced child of an already-placed node at level+4. A second
// fixpoint pass (re-running the same walk until no placement changes)
// guards against source orderings where a node's parse index precedes
// the node that will give it coordinates — the single forward pass
// spec.md §4.4 describes otherwise leaves such nodes permanently
// unplaced.
func placeChildren(g *GraphProperties, reserved map[GridCoord]bool) {
	isLR := g.Direction == LR
	nextFree := map[int]int{}
	// Seed nextFree from whatever root placement already consumed so
	// child levels never collide with root-level reservations that
	// share the same level value.
	for _, n := range g.Nodes {
		if n.GridCoord == nil {
			continue
		}
		level, pos := levelAndPos(*n.GridCoord, isLR)
		if nextFree[level] <= pos {
			nextFree[level] = pos + 4
		}
	}

	for {
		changed := false
		for _, n := range g.Nodes {
			if n.GridCoord == nil {
				continue
			}
			level, _ := levelAndPos(*n.GridCoord, isLR)
			childLevel := level + 4
			for _, childName := range g.ChildrenOf(n.Name) {
				child := g.NodeIndex[childName]
				if child == nil || child.GridCoord != nil {
					continue
				}
				child.GridCoord = ptr(placeAt(reserved, nextFree, childLevel, isLR))
				changed = true
			}
		}
		if !changed {
			break
		}
	}
}

func levelAndPos(c GridCoord, isLR bool) (level, pos int) {
	if isLR {
		return c.X, c.Y
	}
	return c.Y, c.X
}

func ptr(c GridCoord) *GridCoord { return &c }

func maxSet(m map[int]int, key, val int) {
	if val > m[key] {
		m[key] = val
	}
}

func sizeNode(g *GraphProperties, n *Node) {
	gx, gy := n.GridCoord.X, n.GridCoord.Y
	nameWidth := runewidth.StringWidth(n.Name)
	n.BoxWidth = 2 + nameWidth
	n.BoxHeight = 3

	maxSet(g.ColWidth, gx, 1)
	maxSet(g.ColWidth, gx+1, 2+nameWidth)
	maxSet(g.ColWidth, gx+2, 1)

	maxSet(g.RowHeight, gy, 1)
	maxSet(g.RowHeight, gy+1, 3)
	maxSet(g.RowHeight, gy+2, 1)

	preRow := g.PaddingY
	if isTopmostWithExternalIncoming(g, n) {
		preRow += 4
	}
	maxSet(g.RowHeight, gy-1, preRow)
	maxSet(g.ColWidth, gx-1, g.PaddingX)
}

// isTopmostWithExternalIncoming reports whether n is the topmost
// (lowest grid y) node in some subgraph it belongs to, and has at
// least one incoming edge whose source lies outside that subgraph.
func isTopmostWithExternalIncoming(g *GraphProperties, n *Node) bool {
	for _, sg := range g.Subgraphs {
		if !subgraphContains(sg, n.Name) {
			continue
		}
		if !isTopmostInSubgraph(g, sg, n.Name) {
			continue
		}
		if hasExternalIncoming(g, sg, n.Name) {
			return true
		}
	}
	return false
}

func subgraphContains(sg *Subgraph, name string) bool {
	for _, n := range sg.Nodes {
		if n == name {
			return true
		}
	}
	return false
}

func isTopmostInSubgraph(g *GraphProperties, sg *Subgraph, name string) bool {
	myY := g.NodeIndex[name].GridCoord.Y
	for _, other := range sg.Nodes {
		on := g.NodeIndex[other]
		if on == nil || on.GridCoord == nil {
			continue
		}
		if on.GridCoord.Y < myY {
			return false
		}
	}
	return true
}

func hasExternalIncoming(g *GraphProperties, sg *Subgraph, name string) bool {
	for _, e := range g.Edges {
		if e.To != name {
			continue
		}
		if !subgraphContains(sg, e.From) {
			return true
		}
	}
	return false
}
