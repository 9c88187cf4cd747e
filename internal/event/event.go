package event

import (
	"fmt"
	"image"
	"time"
)

type Kind uint8

const (
	Gesture Kind = iota
	Transcript
	Speech
	Object
)

func (k Kind) String() string {
	switch k {
	case Gesture:
		return "gesture"
	case Transcript:
		return "transcript"
	case Speech:
		return "speech"
	case Object:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

type ObjectInfo struct {
	Label      string          `json:"label"`
	Confidence float64         `json:"confidence"`
	Box        image.Rectangle `json:"box"`
}

// Event is a single detection result travelling from a perception loop to
// the display. It is consumed once and then dropped.
type Event struct {
	Kind   Kind        `json:"kind"`
	Label  string      `json:"label,omitempty"`
	Text   string      `json:"text,omitempty"`
	Object *ObjectInfo `json:"object,omitempty"`
	At     time.Time   `json:"at"`
}

func NewGesture(label string) Event {
	return Event{Kind: Gesture, Label: label, At: time.Now()}
}

func NewTranscript(text string) Event {
	return Event{Kind: Transcript, Text: text, At: time.Now()}
}

func NewSpeech(text string) Event {
	return Event{Kind: Speech, Text: text, At: time.Now()}
}

func NewObject(label string, confidence float64, box image.Rectangle) Event {
	return Event{
		Kind:  Object,
		Label: label,
		Object: &ObjectInfo{
			Label:      label,
			Confidence: confidence,
			Box:        box,
		},
		At: time.Now(),
	}
}

func (e Event) Validate() error {
	switch e.Kind {
	case Gesture:
		if e.Label == "" {
			return fmt.Errorf("gesture label cannot be empty")
		}
	case Transcript, Speech:
		if e.Text == "" {
			return fmt.Errorf("%s text cannot be empty", e.Kind)
		}
	case Object:
		if e.Object == nil {
			return fmt.Errorf("object event without payload")
		}
		if e.Object.Confidence < 0 || e.Object.Confidence > 1 {
			return fmt.Errorf("confidence must be between 0 and 1, got %f", e.Object.Confidence)
		}
	default:
		return fmt.Errorf("unknown event kind %d", e.Kind)
	}

	return nil
}
