package tokens

import (
	"strings"
	"testing"

	"github.com/repairlens/repairlens/internal/domain"
)

func TestCountText(t *testing.T) {
	c := NewCounter()

	if got := c.CountText(""); got != 0 {
		t.Errorf("CountText(\"\") = %d, want 0", got)
	}

	long := strings.Repeat("the faucet is dripping ", 50)
	short := "the faucet is dripping"
	if c.CountText(long) <= c.CountText(short) {
		t.Error("longer text should count more tokens")
	}
}

func TestTrimTranscriptKeepsNewest(t *testing.T) {
	c := NewCounter()

	var transcript domain.Transcript
	for i := 0; i < 20; i++ {
		transcript = transcript.Append(domain.SpeakerUser, strings.Repeat("word ", 100))
	}

	perTurn := c.CountTurn(transcript[0])
	trimmed := c.TrimTranscript(transcript, perTurn*3+1)

	if len(trimmed) >= len(transcript) {
		t.Fatalf("expected trimming, got %d of %d turns", len(trimmed), len(transcript))
	}
	// Newest turn always survives.
	if trimmed[len(trimmed)-1].Text != transcript[len(transcript)-1].Text {
		t.Error("newest turn was dropped")
	}
}

func TestTrimTranscriptOversizedSingleTurn(t *testing.T) {
	c := NewCounter()

	transcript := domain.Transcript{}.Append(domain.SpeakerUser, strings.Repeat("word ", 500))
	trimmed := c.TrimTranscript(transcript, 1)
	if len(trimmed) != 1 {
		t.Errorf("len = %d, want the single turn kept", len(trimmed))
	}
}

func TestTrimTranscriptDisabled(t *testing.T) {
	c := NewCounter()

	transcript := domain.Transcript{}.
		Append(domain.SpeakerUser, "a").
		Append(domain.SpeakerAssistant, "b")
	if got := c.TrimTranscript(transcript, 0); len(got) != 2 {
		t.Errorf("budget 0 should disable trimming, got %d turns", len(got))
	}
}
