package gesture

import "fmt"

// Landmark indices follow the 21-point hand model.
const (
	Wrist     = 0
	ThumbIP   = 3
	ThumbTip  = 4
	IndexPIP  = 6
	IndexTip  = 8
	MiddlePIP = 10
	MiddleTip = 12
	RingPIP   = 14
	RingTip   = 16
	PinkyPIP  = 18
	PinkyTip  = 20

	NumLandmarks = 21
)

// Landmark is a point in normalised image coordinates; Y grows downwards.
type Landmark struct {
	X, Y, Z float64
}

type Hand [NumLandmarks]Landmark

type Label uint8

const (
	None Label = iota
	VolumeUp
	VolumeDown
	BrightnessUp
	BrightnessDown
	MouseControl
	Screenshot
)

var labelNames = map[Label]string{
	VolumeUp:       "VOLUME_UP",
	VolumeDown:     "VOLUME_DOWN",
	BrightnessUp:   "BRIGHTNESS_UP",
	BrightnessDown: "BRIGHTNESS_DOWN",
	MouseControl:   "MOUSE_CONTROL",
	Screenshot:     "SCREENSHOT",
}

var labelPhrases = map[Label]string{
	VolumeUp:       "volume up",
	VolumeDown:     "volume down",
	BrightnessUp:   "brightness up",
	BrightnessDown: "brightness down",
	MouseControl:   "mouse control",
	Screenshot:     "screenshot",
}

func (l Label) String() string {
	if s, ok := labelNames[l]; ok {
		return s
	}
	if l == None {
		return "NONE"
	}
	return fmt.Sprintf("LABEL_%d", uint8(l))
}

// Phrase is the command text a gesture stands for.
func (l Label) Phrase() string {
	return labelPhrases[l]
}

type Classifier interface {
	Classify(h Hand) (Label, bool)
}

// ClassifierFor returns the rule set registered under name.
func ClassifierFor(name string) (Classifier, error) {
	switch name {
	case "", "standard":
		return Standard{}, nil
	case "compact":
		return Compact{}, nil
	default:
		return nil, fmt.Errorf("unknown gesture set %q", name)
	}
}
