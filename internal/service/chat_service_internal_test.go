package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mlevan/hearth/internal/model"
)

func TestTranscriptLabelsSpeakers(t *testing.T) {
	out := transcript([]model.Message{
		{Speaker: model.SpeakerInterviewer, Content: "What happened next?"},
		{Speaker: model.SpeakerStoryteller, Content: "We drove all night."},
	})
	require.Equal(t, "Interviewer: What happened next?\nStoryteller: We drove all night.\n", out)
}

func TestStripCodeFence(t *testing.T) {
	plain := `{"title":"t","post":"p"}`
	require.Equal(t, plain, stripCodeFence(plain))
	require.Equal(t, plain, stripCodeFence("```json\n"+plain+"\n```"))
	require.Equal(t, plain, stripCodeFence("```\n"+plain+"\n```\n"))
}
