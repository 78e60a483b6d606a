package sequence

import (
	"fmt"

	runewidth "github.com/mattn/go-runewidth"

	"github.com/julianshen/rubichan/internal/diagram/alphabet"
	"github.com/julianshen/rubichan/internal/diagram/canvas"
)

const (
	participantSpacing = 5
	selfLoopWidth       = 4
)

// Render lays out and rasterises a parsed SequenceDiagram, per §4.7.
func Render(sd *SequenceDiagram) string {
	a := pickAlphabet(sd.UseASCII)
	layoutParticipants(sd)

	width := totalWidth(sd)
	for _, m := range sd.Messages {
		if m.From != m.To {
			continue
		}
		p := sd.ParticipantIndex[m.From]
		if p.CenterX+selfLoopWidth > width {
			width = p.CenterX + selfLoopWidth
		}
	}

	cv := canvas.New(width, countRows(sd)-1)
	y := 0
	y = drawHeader(cv, sd, a, y)
	y = drawLifelineRow(cv, sd, a, y)
	for _, m := range sd.Messages {
		y = drawLifelineRow(cv, sd, a, y)
		if m.From == m.To {
			y = drawSelfMessage(cv, sd, m, a, y)
		} else {
			y = drawMessage(cv, sd, m, a, y)
		}
	}
	drawLifelineRow(cv, sd, a, y)

	return cv.String() + "\n"
}

func pickAlphabet(useASCII bool) alphabet.Alphabet {
	if useASCII {
		return alphabet.SequenceASCII
	}
	return alphabet.Sequence
}

// layoutParticipants assigns each participant a box width and centre
// x, per §4.7: the first box sits flush left, every following box
// advances by the previous box's width plus the default spacing
// before its own centre is computed.
func layoutParticipants(sd *SequenceDiagram) {
	leftEdge := 0
	for i, p := range sd.Participants {
		w := runewidth.StringWidth(p.Label) + 2
		if w < 3 {
			w = 3
		}
		p.BoxWidth = w
		if i > 0 {
			prev := sd.Participants[i-1]
			leftEdge += prev.BoxWidth + participantSpacing
		}
		p.CenterX = leftEdge + w/2
	}
}

func totalWidth(sd *SequenceDiagram) int {
	if len(sd.Participants) == 0 {
		return 0
	}
	last := sd.Participants[len(sd.Participants)-1]
	return last.CenterX + (last.BoxWidth+2)/2
}

func countRows(sd *SequenceDiagram) int {
	rows := 3 + 1 // header + the lifeline row that follows it
	for _, m := range sd.Messages {
		rows++ // spacer row
		if m.From == m.To {
			rows += 4 // label row + three loop rows
		} else {
			rows += 2 // label row + arrow row
		}
	}
	rows++ // final lifeline row
	return rows
}

func leftOf(p *Participant) int { return p.CenterX - p.BoxWidth/2 }

func drawHeader(cv *canvas.Canvas, sd *SequenceDiagram, a alphabet.Alphabet, y int) int {
	for _, p := range sd.Participants {
		left, right := leftOf(p), leftOf(p)+p.BoxWidth-1
		cv.Set(left, y, a.CornerTopLeft)
		cv.Set(right, y, a.CornerTopRight)
		for x := left + 1; x < right; x++ {
			cv.Set(x, y, a.Horizontal)
		}
	}
	y++

	for _, p := range sd.Participants {
		left, right := leftOf(p), leftOf(p)+p.BoxWidth-1
		cv.Set(left, y, a.Vertical)
		cv.Set(right, y, a.Vertical)
		labelWidth := runewidth.StringWidth(p.Label)
		startX := left + 1 + (p.BoxWidth-2-labelWidth)/2
		cv.DrawText(canvas.DrawingCoord{X: startX, Y: y}, p.Label)
	}
	y++

	for _, p := range sd.Participants {
		left, right := leftOf(p), leftOf(p)+p.BoxWidth-1
		cv.Set(left, y, a.CornerBottomLeft)
		cv.Set(right, y, a.CornerBottomRight)
		for x := left + 1; x < right; x++ {
			cv.Set(x, y, a.Horizontal)
		}
		cv.Set(p.CenterX, y, a.TeeDown)
	}
	y++
	return y
}

func drawLifelineRow(cv *canvas.Canvas, sd *SequenceDiagram, a alphabet.Alphabet, y int) int {
	for _, p := range sd.Participants {
		cv.Set(p.CenterX, y, a.Vertical)
	}
	return y + 1
}

func messageText(m *Message) string {
	if m.Number > 0 {
		return fmt.Sprintf("%d. %s", m.Number, m.Label)
	}
	return m.Label
}

func drawMessage(cv *canvas.Canvas, sd *SequenceDiagram, m *Message, a alphabet.Alphabet, y int) int {
	from := sd.ParticipantIndex[m.From]
	to := sd.ParticipantIndex[m.To]

	drawLifelineRow(cv, sd, a, y)
	lo := min(from.CenterX, to.CenterX)
	cv.DrawText(canvas.DrawingCoord{X: lo + 2, Y: y}, messageText(m))
	y++

	dir := 1
	if to.CenterX < from.CenterX {
		dir = -1
	}
	fill := a.SolidLine
	if m.Arrow == Dotted {
		fill = a.DottedLine
	}

	lowX, highX := min(from.CenterX, to.CenterX), max(from.CenterX, to.CenterX)
	for _, p := range sd.Participants {
		if p.CenterX < lowX || p.CenterX > highX {
			cv.Set(p.CenterX, y, a.Vertical)
		}
	}

	origin := a.TeeRight
	if dir < 0 {
		origin = a.TeeLeft
	}
	cv.Set(from.CenterX, y, origin)
	for x := from.CenterX + dir; x != to.CenterX; x += dir {
		cv.Set(x, y, fill)
	}
	arrow := a.ArrowRight
	if dir < 0 {
		arrow = a.ArrowLeft
	}
	cv.Set(to.CenterX-dir, y, arrow)
	cv.Set(to.CenterX, y, a.Vertical)
	y++
	return y
}

func drawSelfMessage(cv *canvas.Canvas, sd *SequenceDiagram, m *Message, a alphabet.Alphabet, y int) int {
	p := sd.ParticipantIndex[m.From]

	for _, pp := range sd.Participants {
		cv.Set(pp.CenterX, y, a.Vertical)
	}
	cv.DrawText(canvas.DrawingCoord{X: p.CenterX + 2, Y: y}, messageText(m))
	y++

	for _, pp := range sd.Participants {
		if pp != p {
			cv.Set(pp.CenterX, y, a.Vertical)
		}
	}
	cv.Set(p.CenterX, y, a.TeeRight)
	for x := p.CenterX + 1; x < p.CenterX+selfLoopWidth; x++ {
		cv.Set(x, y, a.Horizontal)
	}
	cv.Set(p.CenterX+selfLoopWidth, y, a.SelfLoopTopRight)
	y++

	for _, pp := range sd.Participants {
		if pp != p {
			cv.Set(pp.CenterX, y, a.Vertical)
		}
	}
	cv.Set(p.CenterX, y, a.Vertical)
	cv.Set(p.CenterX+selfLoopWidth, y, a.Vertical)
	y++

	for _, pp := range sd.Participants {
		if pp != p {
			cv.Set(pp.CenterX, y, a.Vertical)
		}
	}
	cv.Set(p.CenterX, y, a.Vertical)
	cv.Set(p.CenterX+1, y, a.ArrowLeft)
	for x := p.CenterX + 2; x < p.CenterX+selfLoopWidth; x++ {
		cv.Set(x, y, a.Horizontal)
	}
	cv.Set(p.CenterX+selfLoopWidth, y, a.SelfLoopBottom)
	y++

	return y
}
