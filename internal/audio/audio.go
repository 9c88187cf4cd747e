// Package audio holds the capture settings and the signal helpers shared by
// the microphone and the assistant.
package audio

import "time"

type Mode string

const (
	// ModePhrase waits for one utterance bounded by silence.
	ModePhrase Mode = "phrase"
	// ModeChunk returns fixed-length slices of the microphone stream.
	ModeChunk Mode = "chunk"
)

type Config struct {
	SampleRate  int
	Mode        Mode
	Onset       time.Duration
	PhraseLimit time.Duration
	Silence     time.Duration
	Chunk       time.Duration
	VADMode     int
}

func DefaultConfig() Config {
	return Config{
		SampleRate:  16000,
		Mode:        ModePhrase,
		Onset:       time.Second,
		PhraseLimit: 5 * time.Second,
		Silence:     600 * time.Millisecond,
		Chunk:       2 * time.Second,
		VADMode:     2,
	}
}

// FrameDur is the analysis frame used for speech detection.
const FrameDur = 20 * time.Millisecond
