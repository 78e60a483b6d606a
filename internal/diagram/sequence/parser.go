package sequence

import (
	"strings"

	"github.com/julianshen/rubichan/internal/diagram/diagerr"
	"github.com/julianshen/rubichan/internal/diagram/mmdtext"
)

// Parse parses a sequenceDiagram Mermaid subset source (already
// selected as the sequence engine by the caller) into a
// SequenceDiagram IR.
func Parse(source string, useASCII bool) (*SequenceDiagram, error) {
	lines := mmdtext.Lines(source)
	if len(lines) == 0 {
		return nil, diagerr.ErrEmptySource
	}
	if !strings.HasPrefix(mmdtext.FirstMeaningful(lines), "sequenceDiagram") {
		return nil, diagerr.ErrMissingSequenceKeyword
	}

	sd := &SequenceDiagram{
		ParticipantIndex: make(map[string]*Participant),
		UseASCII:         useASCII,
	}

	seenKeyword := false
	for _, raw := range lines {
		t := strings.TrimSpace(raw)
		if t == "" {
			continue
		}
		if !seenKeyword {
			if strings.HasPrefix(t, "sequenceDiagram") {
				seenKeyword = true
			}
			continue
		}

		switch {
		case t == "autonumber":
			sd.Autonumber = true
		case strings.HasPrefix(t, "participant "):
			parseParticipant(sd, t)
		default:
			if msg, ok := parseMessage(t); ok {
				ensureParticipant(sd, msg.From, msg.From)
				ensureParticipant(sd, msg.To, msg.To)
				if sd.Autonumber {
					msg.Number = len(sd.Messages) + 1
				}
				sd.Messages = append(sd.Messages, msg)
			}
			// Unknown lines are silently skipped (forward compatibility).
		}
	}

	if len(sd.Participants) == 0 && len(sd.Messages) == 0 {
		return nil, diagerr.ErrNoParticipants
	}
	return sd, nil
}

func ensureParticipant(sd *SequenceDiagram, id, label string) *Participant {
	if p, ok := sd.ParticipantIndex[id]; ok {
		return p
	}
	p := &Participant{ID: id, Label: label}
	sd.Participants = append(sd.Participants, p)
	sd.ParticipantIndex[id] = p
	return p
}

// parseParticipant handles "participant ID", `participant "Quoted
// Label" as ID`, and "participant ID as Label".
func parseParticipant(sd *SequenceDiagram, line string) {
	rest := strings.TrimSpace(line[len("participant "):])
	if rest == "" {
		return
	}

	if strings.HasPrefix(rest, `"`) {
		end := strings.Index(rest[1:], `"`)
		if end < 0 {
			return
		}
		label := rest[1 : 1+end]
		remainder := strings.TrimSpace(rest[1+end+1:])
		id := label
		if strings.HasPrefix(remainder, "as ") {
			id = strings.TrimSpace(remainder[len("as "):])
		}
		ensureParticipant(sd, id, label)
		return
	}

	fields := strings.Fields(rest)
	if len(fields) >= 3 && fields[1] == "as" {
		id := fields[0]
		label := strings.Join(fields[2:], " ")
		ensureParticipant(sd, id, label)
		return
	}
	ensureParticipant(sd, rest, rest)
}

// parseMessage parses "FROM -->> TO : label" / "FROM ->> TO : label",
// where either side may be double-quoted. "-->>" is checked before
// "->>" since the shorter arrow is a substring of the longer one.
func parseMessage(line string) (*Message, bool) {
	arrow := Solid
	idx := strings.Index(line, "-->>")
	arrowLen := 4
	if idx < 0 {
		idx = strings.Index(line, "->>")
		arrowLen = 3
	} else {
		arrow = Dotted
	}
	if idx < 0 {
		return nil, false
	}

	from := unquote(strings.TrimSpace(line[:idx]))
	rest := line[idx+arrowLen:]
	if from == "" {
		return nil, false
	}

	colon := strings.Index(rest, ":")
	var to, label string
	if colon < 0 {
		to = strings.TrimSpace(rest)
	} else {
		to = strings.TrimSpace(rest[:colon])
		label = strings.TrimSpace(rest[colon+1:])
	}
	to = unquote(to)
	if to == "" {
		return nil, false
	}

	return &Message{From: from, To: to, Label: label, Arrow: arrow}, true
}

func unquote(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}
