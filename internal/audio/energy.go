package audio

import "math"

// SpeechDetector decides whether a frame contains voice.
type SpeechDetector interface {
	IsSpeech(frame []float32) (bool, error)
}

// Energy is the fallback detector: RMS above a fixed threshold.
type Energy struct {
	Threshold float64
}

func (e Energy) IsSpeech(frame []float32) (bool, error) {
	return RMS(frame) > e.Threshold, nil
}

func RMS(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	return math.Sqrt(MeanSquare(f))
}

// MeanSquare is the average signal power of f.
func MeanSquare(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x) * float64(x)
	}
	return s / float64(len(f))
}
