package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "00:00", formatTimestamp(0))
	assert.Equal(t, "00:59", formatTimestamp(59_999))
	assert.Equal(t, "02:30", formatTimestamp(150_000))
	assert.Equal(t, "1:01:05", formatTimestamp(3_665_000))
}

func TestHighlightBestSentenceKeepsAllSentences(t *testing.T) {
	text := "Os rios correm para o mar. As montanhas são altas. O clima varia muito."
	out := highlightBestSentence(text, "rios e mar")

	// styling depends on the terminal profile, but no sentence may be lost
	for _, sentence := range []string{"rios correm", "montanhas são altas", "clima varia"} {
		assert.Contains(t, out, sentence)
	}
}

func TestHighlightBestSentenceOnWhisperTexture(t *testing.T) {
	// whisper pieces carry leading spaces and the final chunk often ends
	// without terminal punctuation
	text := " Os rios correm para o mar. As montanhas são altas. o clima varia"
	out := highlightBestSentence(text, "clima")

	for _, sentence := range []string{"rios correm", "montanhas são altas"} {
		assert.Contains(t, out, sentence)
	}
	// the unterminated tail is dropped by sentence splitting, but a query
	// hitting only the tail must not panic or lose the rest
	assert.NotEmpty(t, out)
}

func TestHighlightBestSentenceHandlesNoSentences(t *testing.T) {
	out := highlightBestSentence("sem pontuacao final", "pontuacao")
	assert.Contains(t, out, "sem pontuacao final")
}

func TestTokenOverlapScore(t *testing.T) {
	q := toTokenSet("rios e bacias")
	assert.Equal(t, 2, tokenOverlapScore(q, "os rios formam bacias"))
	assert.Equal(t, 0, tokenOverlapScore(q, "montanhas altas"))
	// repeated tokens only count once
	assert.Equal(t, 1, tokenOverlapScore(q, "rios rios rios"))
}

func TestToTokenSetLowercasesAndSplits(t *testing.T) {
	tokens := toTokenSet("Rios, Bacias! d'água")
	for _, want := range []string{"rios", "bacias", "d'água"} {
		_, ok := tokens[want]
		assert.True(t, ok, "missing token %q in %v", want, tokens)
	}
}
