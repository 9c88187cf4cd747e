package gesture

import (
	"errors"
	"fmt"
	"math"
)

// PresenceThreshold is the minimum hand score for a landmark set to count.
const PresenceThreshold = 0.7

// HandFromTensor reads 21 (x, y, z) triples in model-input pixels and
// normalises them by the input size.
func HandFromTensor(data []float32, inputSize float64) (Hand, error) {
	var h Hand
	if len(data) < NumLandmarks*3 {
		return h, fmt.Errorf("landmark tensor too short: %d values", len(data))
	}
	if inputSize <= 0 {
		return h, fmt.Errorf("invalid input size %v", inputSize)
	}

	for i := range h {
		h[i] = Landmark{
			X: float64(data[3*i]) / inputSize,
			Y: float64(data[3*i+1]) / inputSize,
			Z: float64(data[3*i+2]) / inputSize,
		}
	}
	return h, nil
}

// Presence reads the hand score from the model's score output and turns it
// into a probability. Models exported without the final sigmoid emit
// logits.
func Presence(scores []float32) (float64, error) {
	if len(scores) == 0 {
		return 0, errors.New("empty presence score")
	}
	v := float64(scores[0])
	if v >= 0 && v <= 1 {
		return v, nil
	}
	return 1 / (1 + math.Exp(-v)), nil
}
