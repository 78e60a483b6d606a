package sequence

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParticipantsAndMessage(t *testing.T) {
	sd, err := Parse("sequenceDiagram\nparticipant A\nparticipant B\nA ->> B : hello", false)
	require.NoError(t, err)
	require.Len(t, sd.Participants, 2)
	require.Len(t, sd.Messages, 1)
	assert.Equal(t, "hello", sd.Messages[0].Label)
	assert.Equal(t, Solid, sd.Messages[0].Arrow)
}

func TestParseQuotedParticipant(t *testing.T) {
	sd, err := Parse(`sequenceDiagram
participant "Web Server" as WS
WS ->> WS : loop`, false)
	require.NoError(t, err)
	require.Len(t, sd.Participants, 1)
	assert.Equal(t, "Web Server", sd.Participants[0].Label)
	assert.Equal(t, "WS", sd.Participants[0].ID)
}

func TestParseParticipantAsLabel(t *testing.T) {
	sd, err := Parse("sequenceDiagram\nparticipant A as Alice\nA ->> A : x", false)
	require.NoError(t, err)
	assert.Equal(t, "Alice", sd.Participants[0].Label)
}

func TestParseDottedArrow(t *testing.T) {
	sd, err := Parse("sequenceDiagram\nA -->> B : reply", false)
	require.NoError(t, err)
	require.Len(t, sd.Messages, 1)
	assert.Equal(t, Dotted, sd.Messages[0].Arrow)
}

func TestParseAutonumber(t *testing.T) {
	sd, err := Parse("sequenceDiagram\nautonumber\nA ->> B : one\nB ->> A : two", false)
	require.NoError(t, err)
	assert.Equal(t, 1, sd.Messages[0].Number)
	assert.Equal(t, 2, sd.Messages[1].Number)
}

func TestParseMissingKeyword(t *testing.T) {
	_, err := Parse("graph LR\nA --> B", false)
	assert.Error(t, err)
}

func TestParseEmptySource(t *testing.T) {
	_, err := Parse("", false)
	assert.Error(t, err)
}

func TestParseNoParticipants(t *testing.T) {
	_, err := Parse("sequenceDiagram\nautonumber", false)
	assert.Error(t, err)
}

func TestRenderDeterministicAndTerminatesWithNewline(t *testing.T) {
	sd, err := Parse("sequenceDiagram\nA ->> B : hi", false)
	require.NoError(t, err)
	out1 := Render(sd)
	out2 := Render(sd)
	assert.Equal(t, out1, out2)
	assert.True(t, strings.HasSuffix(out1, "\n"))
}

func TestRenderContainsParticipantLabels(t *testing.T) {
	sd, err := Parse("sequenceDiagram\nparticipant Alice\nparticipant Bob\nAlice ->> Bob : ping", false)
	require.NoError(t, err)
	out := Render(sd)
	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "Bob")
	assert.Contains(t, out, "ping")
}

func TestRenderASCIIClosure(t *testing.T) {
	sd, err := Parse("sequenceDiagram\nA ->> B : hi", true)
	require.NoError(t, err)
	out := Render(sd)
	for _, r := range out {
		if r == '\n' {
			continue
		}
		assert.Less(t, int(r), 128)
	}
}

func TestRenderSelfMessage(t *testing.T) {
	sd, err := Parse("sequenceDiagram\nA ->> A : retry", false)
	require.NoError(t, err)
	out := Render(sd)
	assert.Contains(t, out, "retry")
}
