package graph

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/julianshen/rubichan/internal/diagram/diagerr"
	"github.com/julianshen/rubichan/internal/diagram/mmdtext"
)

var (
	paddingDirectiveRe = regexp.MustCompile(`^padding([XY])\s*=\s*(\d+)$`)
	headerRe           = regexp.MustCompile(`^(?:graph|flowchart)\s+(LR|TD|TB)$`)
	bareIdentRe        = regexp.MustCompile(`^[A-Za-z0-9_\-]+(:::[A-Za-z0-9_\-]+)?$`)
)

// Parse parses a graph/flowchart Mermaid subset source (already
// selected as the graph engine by the caller) into a GraphProperties
// IR. useASCII and default padding come from the caller's Config;
// explicit "paddingX = N" / "paddingY = N" directives in source
// override them.
func Parse(source string, useASCII bool, defaultPaddingX, defaultPaddingY int) (*GraphProperties, error) {
	lines := mmdtext.Lines(source)
	if len(lines) == 0 {
		return nil, diagerr.ErrEmptySource
	}

	g := &GraphProperties{
		NodeIndex:      make(map[string]*Node),
		ClassDefs:      make(map[string]ClassDef),
		SubgraphByName: make(map[string]*Subgraph),
		PaddingX:       defaultPaddingX,
		PaddingY:       defaultPaddingY,
		UseASCII:       useASCII,
		Direction:      LR,
	}

	idx := 0
	for idx < len(lines) {
		t := strings.TrimSpace(lines[idx])
		m := paddingDirectiveRe.FindStringSubmatch(t)
		if m == nil {
			break
		}
		n, err := strconv.Atoi(m[2])
		if err == nil {
			if m[1] == "X" {
				g.PaddingX = n
			} else {
				g.PaddingY = n
			}
		}
		idx++
	}

	if idx < len(lines) {
		t := strings.TrimSpace(lines[idx])
		if hm := headerRe.FindStringSubmatch(t); hm != nil {
			if hm[1] == "TD" || hm[1] == "TB" {
				g.Direction = TD
			} else {
				g.Direction = LR
			}
			idx++
		}
	}

	var stack []*Subgraph
	for ; idx < len(lines); idx++ {
		t := strings.TrimSpace(lines[idx])
		if t == "" {
			continue
		}
		switch {
		case strings.HasPrefix(t, "subgraph "):
			name := strings.TrimSpace(t[len("subgraph "):])
			sg := &Subgraph{Name: name}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				sg.Parent = parent.Name
				parent.Children = append(parent.Children, name)
			}
			g.Subgraphs = append(g.Subgraphs, sg)
			g.SubgraphByName[name] = sg
			stack = append(stack, sg)

		case t == "end":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			// Lenient per spec.md §7: a stray "end" is ignored rather
			// than raising diagerr.ErrMalformedSubgraph.

		case strings.HasPrefix(t, "classDef "):
			parseClassDef(g, t)

		case strings.Contains(t, "-->"):
			parseArrowStatement(g, t, stack)

		default:
			if bareIdentRe.MatchString(t) {
				name, class := splitIdentClass(t)
				ensureNode(g, stack, name, class)
			}
			// Unknown lines are silently skipped (forward compatibility).
		}
	}

	return g, nil
}

func splitIdentClass(tok string) (name, class string) {
	if i := strings.Index(tok, ":::"); i >= 0 {
		return tok[:i], tok[i+3:]
	}
	return tok, ""
}

// ensureNode returns the named node, creating it (and attaching it to
// every subgraph currently open on stack) if this is its first
// appearance. Re-appearance of an existing node never changes its
// subgraph membership — see spec.md §4.3.
func ensureNode(g *GraphProperties, stack []*Subgraph, name, class string) *Node {
	if n, ok := g.NodeIndex[name]; ok {
		if class != "" && n.StyleClassName == "" {
			n.StyleClassName = class
		}
		return n
	}
	n := &Node{Name: name, Index: len(g.Nodes), StyleClassName: class}
	g.Nodes = append(g.Nodes, n)
	g.NodeIndex[name] = n

	for _, sg := range stack {
		found := false
		for _, existing := range sg.Nodes {
			if existing == name {
				found = true
				break
			}
		}
		if !found {
			sg.Nodes = append(sg.Nodes, name)
		}
	}
	return n
}

func parseClassDef(g *GraphProperties, line string) {
	rest := strings.TrimSpace(line[len("classDef "):])
	fields := strings.SplitN(rest, " ", 2)
	if len(fields) == 0 || fields[0] == "" {
		return
	}
	def := ClassDef{Name: fields[0], Props: map[string]string{}}
	if len(fields) == 2 {
		for _, pair := range strings.Split(fields[1], ",") {
			kv := strings.SplitN(strings.TrimSpace(pair), ":", 2)
			if len(kv) == 2 {
				def.Props[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
			}
		}
	}
	g.ClassDefs[def.Name] = def
}

// parseArrowStatement parses one "LHS --> RHS" / "LHS -->|label| RHS"
// line, where either side may be an "A & B" ampersand list, and the
// line may chain multiple arrows ("A --> B --> C"). Each hop's
// ampersand groups are cross-joined in left-to-right parse order,
// which reproduces right-associative chaining for the common
// single-arrow-per-hop case without a separate recursive grammar.
func parseArrowStatement(g *GraphProperties, line string, stack []*Subgraph) {
	groups, labels := tokenizeArrowChain(line)
	if len(groups) < 2 {
		return
	}

	resolved := make([][]string, len(groups))
	for i, group := range groups {
		for _, tok := range group {
			name, class := splitIdentClass(tok)
			if name == "" {
				continue
			}
			ensureNode(g, stack, name, class)
			resolved[i] = append(resolved[i], name)
		}
	}

	for i := 0; i < len(resolved)-1; i++ {
		label := ""
		if i < len(labels) {
			label = labels[i]
		}
		for _, from := range resolved[i] {
			for _, to := range resolved[i+1] {
				g.Edges = append(g.Edges, &Edge{From: from, To: to, Label: label})
			}
		}
	}
}

func tokenizeArrowChain(line string) (groups [][]string, labels []string) {
	remaining := line
	for {
		idx := strings.Index(remaining, "-->")
		if idx < 0 {
			groups = append(groups, splitAmpersand(remaining))
			return
		}
		left := remaining[:idx]
		groups = append(groups, splitAmpersand(left))

		rest := remaining[idx+len("-->"):]
		restTrim := strings.TrimLeft(rest, " \t")
		label := ""
		if strings.HasPrefix(restTrim, "|") {
			if end := strings.Index(restTrim[1:], "|"); end >= 0 {
				label = restTrim[1 : 1+end]
				rest = restTrim[1+end+1:]
			}
		}
		labels = append(labels, label)
		remaining = rest
	}
}

func splitAmpersand(s string) []string {
	parts := strings.Split(s, "&")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
