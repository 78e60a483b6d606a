// Package bridge wires the pure internal/diagram renderer into the
// rest of the tree: fetching Mermaid source from a GitHub issue or PR
// body and rendering it in place, and an opt-in render-result cache.
// Neither concern belongs in internal/diagram itself, which must stay
// a side-effect-free pure function (see internal/diagram's package doc).
package bridge

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/go-github/v68/github"

	"github.com/julianshen/rubichan/internal/diagram"
)

// RenderIssueBody fetches an issue (or PR, which GitHub's API treats
// as an issue for body purposes) and returns its body with every
// complete ```mermaid fence replaced by the rendered ASCII/Unicode
// diagram, fenced as plain text. A fence that fails to render is left
// untouched and logged, mirroring internal/wiki/diagrams.go's
// tolerance of a single failing diagram rather than aborting the
// whole body.
func RenderIssueBody(ctx context.Context, gh *github.Client, owner, repo string, number int, cfg diagram.Config) (string, error) {
	issue, _, err := gh.Issues.Get(ctx, owner, repo, number)
	if err != nil {
		return "", fmt.Errorf("fetching issue %s/%s#%d: %w", owner, repo, number, err)
	}
	body := issue.GetBody()
	return renderMermaidFences(body, cfg), nil
}

// renderMermaidFences rewrites every complete ```mermaid fence in body
// with its rendered output, fenced as plain text; an unclosed trailing
// fence or a fence that fails to render is written back verbatim as
// ```mermaid.
func renderMermaidFences(body string, cfg diagram.Config) string {
	if !diagram.HasMermaidBlocks(body) {
		return body
	}

	var out strings.Builder
	for _, seg := range diagram.SplitMarkdownContent(body) {
		if seg.Type != "mermaid" {
			out.WriteString(seg.Content)
			continue
		}
		if !seg.IsComplete {
			out.WriteString(mermaidFenceOpen + "\n" + seg.Content)
			continue
		}

		rendered, err := diagram.Render(seg.Content, cfg)
		if err != nil {
			log.Printf("WARNING: rendering mermaid fence failed: %v", err)
			out.WriteString(mermaidFenceOpen + "\n" + seg.Content + fenceClose)
			continue
		}
		out.WriteString(fenceClose + "\n" + rendered + "\n" + fenceClose)
	}
	return out.String()
}

const (
	mermaidFenceOpen = "```mermaid"
	fenceClose       = "```"
)
