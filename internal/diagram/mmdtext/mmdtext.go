// Package mmdtext implements the line-level text preparation shared by
// every diagram engine: splitting on real and literal newlines,
// stripping "%%" comments, dropping trailing blank lines, and
// truncating at the "---" test-fixture separator.
package mmdtext

import "strings"

// Lines splits source into cleaned lines: comment-only lines are
// dropped, trailing "%% ..." comments are stripped from any line,
// trailing blank lines are removed, and everything from a line equal
// to "---" onward is discarded (per spec.md §6, fixture files pair
// Mermaid source with expected output across that literal separator).
func Lines(source string) []string {
	normalized := strings.ReplaceAll(source, `\n`, "\n")
	raw := strings.Split(normalized, "\n")

	out := make([]string, 0, len(raw))
	for _, l := range raw {
		trimmed := strings.TrimSpace(l)
		if strings.HasPrefix(trimmed, "%%") {
			continue
		}
		if trimmed == "---" {
			break
		}
		if idx := strings.Index(l, "%%"); idx >= 0 {
			l = strings.TrimRight(l[:idx], " \t")
		}
		out = append(out, l)
	}

	for len(out) > 0 && strings.TrimSpace(out[len(out)-1]) == "" {
		out = out[:len(out)-1]
	}
	return out
}

// FirstMeaningful returns the first non-blank line in lines, trimmed
// of surrounding whitespace, or "" if every line is blank.
func FirstMeaningful(lines []string) string {
	for _, l := range lines {
		if t := strings.TrimSpace(l); t != "" {
			return t
		}
	}
	return ""
}
