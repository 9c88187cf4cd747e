// Package stt converts 16 kHz mono PCM into text.
package stt

import (
	"context"
	"regexp"
	"strings"
)

// Recognizer transcribes one utterance.
type Recognizer interface {
	Recognize(ctx context.Context, pcm []float32) (string, error)
}

var (
	// [BLANK_AUDIO], [Music], (wind blowing) and friends
	annotationRe = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)`)
	timestampRe  = regexp.MustCompile(`(?m)^\[\d{2}:\d{2}[^\]]*\]\s*`)
	spaceRe      = regexp.MustCompile(`\s+`)
)

// Clean strips timestamps and non-speech annotations whisper adds.
func Clean(s string) string {
	s = timestampRe.ReplaceAllString(s, "")
	s = annotationRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
