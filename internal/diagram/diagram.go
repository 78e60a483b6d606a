// Package diagram converts a Mermaid-subset graph/flowchart or
// sequence-diagram source string into a byte-stable rectangular grid
// of characters, using either a Unicode box-drawing alphabet or a
// pure-ASCII one. Render is the package's only state: it is a pure
// function and shares nothing across calls.
package diagram

import (
	"fmt"
	"strings"

	"github.com/julianshen/rubichan/internal/diagram/diagerr"
	"github.com/julianshen/rubichan/internal/diagram/graph"
	"github.com/julianshen/rubichan/internal/diagram/mmdtext"
	"github.com/julianshen/rubichan/internal/diagram/sequence"
)

// Re-exported so callers never need to import diagerr directly.
var (
	ErrEmptySource            = diagerr.ErrEmptySource
	ErrMissingSequenceKeyword = diagerr.ErrMissingSequenceKeyword
	ErrNoParticipants         = diagerr.ErrNoParticipants
	ErrMalformedSubgraph      = diagerr.ErrMalformedSubgraph
)

// Config controls rendering. The zero value is not directly usable —
// pass it through DefaultConfig or Render's own normalization, which
// floors PaddingX/PaddingY at 1.
type Config struct {
	ASCII    bool
	PaddingX int
	PaddingY int
}

// DefaultConfig returns the documented defaults: Unicode output, 5
// cells of padding on each axis.
func DefaultConfig() Config {
	return Config{ASCII: false, PaddingX: 5, PaddingY: 5}
}

func (c Config) normalized() Config {
	if c.PaddingX < 1 {
		c.PaddingX = 5
	}
	if c.PaddingY < 1 {
		c.PaddingY = 5
	}
	return c
}

// DiagramType is the result of DetectDiagramType.
type DiagramType int

const (
	GraphDiagram DiagramType = iota
	SequenceDiagram
)

func (t DiagramType) String() string {
	if t == SequenceDiagram {
		return "sequence"
	}
	return "graph"
}

// DetectDiagramType inspects the first meaningful line of source and
// selects the sequence engine when it begins with "sequenceDiagram";
// otherwise the graph engine is selected.
func DetectDiagramType(source string) DiagramType {
	first := mmdtext.FirstMeaningful(mmdtext.Lines(source))
	if strings.HasPrefix(first, "sequenceDiagram") {
		return SequenceDiagram
	}
	return GraphDiagram
}

// Render is the package's only public entry point: it detects the
// diagram type, dispatches to the matching engine, and returns the
// rendered string or an error from this package's sentinel set.
func Render(source string, cfg Config) (string, error) {
	cfg = cfg.normalized()
	switch DetectDiagramType(source) {
	case SequenceDiagram:
		return RenderSequenceDiagram(source, cfg)
	default:
		return RenderGraph(source, cfg)
	}
}

// RenderGraph runs the graph/flowchart pipeline directly, bypassing
// diagram-type detection. Callers that already know the source is a
// graph/flowchart (e.g. after their own detection) can call this to
// avoid re-scanning the source.
func RenderGraph(source string, cfg Config) (string, error) {
	cfg = cfg.normalized()
	g, err := graph.Parse(source, cfg.ASCII, cfg.PaddingX, cfg.PaddingY)
	if err != nil {
		return "", fmt.Errorf("rendering graph: %w", err)
	}
	reserved := graph.Layout(g)
	graph.Route(g, reserved)
	return graph.Rasterize(g).String(), nil
}

// RenderSequenceDiagram runs the sequence-diagram pipeline directly.
func RenderSequenceDiagram(source string, cfg Config) (string, error) {
	cfg = cfg.normalized()
	sd, err := sequence.Parse(source, cfg.ASCII)
	if err != nil {
		return "", fmt.Errorf("rendering sequence diagram: %w", err)
	}
	return sequence.Render(sd), nil
}

// Segment is one piece of a markdown document split by
// SplitMarkdownContent: either plain text or a fenced ```mermaid
// block.
type Segment struct {
	Type       string // "text" or "mermaid"
	Content    string
	IsComplete bool
}

const mermaidFenceOpen = "```mermaid"
const fenceClose = "```"

// SplitMarkdownContent partitions s into an ordered sequence of text
// and mermaid segments. Re-concatenating the segments — re-wrapping
// each mermaid segment in "```mermaid\n...```" — reproduces s exactly
// when every mermaid block is closed. A final, unclosed ```mermaid
// block is emitted with IsComplete=false and no synthesized closing
// fence, so its raw Content still reproduces the tail of s.
func SplitMarkdownContent(s string) []Segment {
	var segments []Segment
	rest := s
	for {
		idx := strings.Index(rest, mermaidFenceOpen)
		if idx < 0 {
			if rest != "" {
				segments = append(segments, Segment{Type: "text", Content: rest})
			}
			return segments
		}
		if idx > 0 {
			segments = append(segments, Segment{Type: "text", Content: rest[:idx]})
		}

		afterOpen := rest[idx+len(mermaidFenceOpen):]
		afterOpen = strings.TrimPrefix(afterOpen, "\n")

		closeIdx := strings.Index(afterOpen, fenceClose)
		if closeIdx < 0 {
			segments = append(segments, Segment{Type: "mermaid", Content: afterOpen, IsComplete: false})
			return segments
		}

		segments = append(segments, Segment{Type: "mermaid", Content: afterOpen[:closeIdx], IsComplete: true})
		rest = afterOpen[closeIdx+len(fenceClose):]
	}
}

// HasMermaidBlocks reports whether s contains at least one (complete
// or unterminated) ```mermaid fence.
func HasMermaidBlocks(s string) bool {
	return strings.Contains(s, mermaidFenceOpen)
}

// ExtractMermaidSource returns the raw Mermaid source of every
// complete ```mermaid block in s, in document order.
func ExtractMermaidSource(s string) []string {
	var sources []string
	for _, seg := range SplitMarkdownContent(s) {
		if seg.Type == "mermaid" && seg.IsComplete {
			sources = append(sources, seg.Content)
		}
	}
	return sources
}

