// Package display keeps the latest perception results and renders them to
// one or more sinks.
package display

import (
	"fmt"
	"time"

	"eva/internal/event"
)

type Status struct {
	Running bool `json:"running"`
	Gesture bool `json:"gesture"`
	Speech  bool `json:"speech"`
	Object  bool `json:"object"`
}

func (s Status) String() string {
	if !s.Running {
		return "Stopped"
	}
	return "Running"
}

const (
	NoValue         = "None"
	WaitingSpeech   = "Waiting for speech..."
	SpeechMaxLen    = 30
	TranscriptReset = 5 * time.Second
)

// View is what a sink draws.
type View struct {
	Run           string `json:"run,omitempty"`
	Status        Status `json:"status"`
	Gesture       string `json:"gesture"`
	Speech        string `json:"speech"`
	Transcription string `json:"transcription"`
	Object        string `json:"object"`
}

// Board holds the last value seen per panel. It is owned by the display
// loop and is not safe for concurrent use.
type Board struct {
	run          string
	status       Status
	gesture      string
	speech       string
	object       string
	transcript   string
	transcriptAt time.Time
}

func NewBoard() *Board {
	return &Board{gesture: NoValue, speech: NoValue, object: NoValue}
}

func (b *Board) SetStatus(s Status) {
	b.status = s
}

func (b *Board) SetRun(id string) {
	b.run = id
}

func (b *Board) Apply(ev event.Event, now time.Time) {
	switch ev.Kind {
	case event.Gesture:
		b.gesture = ev.Label
	case event.Speech:
		b.speech = truncate(ev.Text, SpeechMaxLen)
	case event.Transcript:
		b.transcript = ev.Text
		b.transcriptAt = now
	case event.Object:
		b.object = ev.Label
		if ev.Object != nil {
			b.object = fmt.Sprintf("%s (%.2f)", ev.Object.Label, ev.Object.Confidence)
		}
	}
}

// Reset clears every panel, as after a stop.
func (b *Board) Reset() {
	status := b.status
	*b = *NewBoard()
	b.status = status
}

func (b *Board) View(now time.Time) View {
	transcription := WaitingSpeech
	if b.transcript != "" && now.Sub(b.transcriptAt) < TranscriptReset {
		transcription = b.transcript
	}

	return View{
		Run:           b.run,
		Status:        b.status,
		Gesture:       b.gesture,
		Speech:        b.speech,
		Transcription: transcription,
		Object:        b.object,
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
