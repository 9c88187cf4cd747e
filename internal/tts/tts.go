// Package tts turns assistant replies into speech.
package tts

import (
	"context"
	log "log/slog"
)

type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Console prints what would have been spoken. It stands in when no audio
// output is available.
type Console struct{}

func (Console) Speak(_ context.Context, text string) error {
	if text != "" {
		log.Info("Speak", "text", text)
	}
	return nil
}

// New picks a backend by name: "espeak" or "console".
func New(backend, voice string, rate int) Speaker {
	if backend == "console" {
		return Console{}
	}
	return NewEspeak(voice, rate)
}
