package gesture

import "math"

// Standard evaluates volume, brightness, mouse and screenshot predicates in
// that order. The first predicate that holds decides the label.
type Standard struct{}

func (Standard) Classify(h Hand) (Label, bool) {
	if isVolume(h) {
		if h[ThumbTip].Y < h[ThumbIP].Y {
			return VolumeUp, true
		}
		return VolumeDown, true
	}

	if isBrightness(h) {
		if h[IndexTip].Y < h[IndexPIP].Y {
			return BrightnessUp, true
		}
		return BrightnessDown, true
	}

	if isOpenPalm(h) {
		return MouseControl, true
	}

	if isPeace(h) {
		return Screenshot, true
	}

	return None, false
}

// thumb out sideways, index and middle folded
func isVolume(h Hand) bool {
	return math.Abs(h[ThumbTip].X-h[ThumbIP].X) > 0.05 &&
		h[IndexTip].Y > h[IndexPIP].Y &&
		h[MiddleTip].Y > h[MiddlePIP].Y
}

// index up, middle and ring folded
func isBrightness(h Hand) bool {
	return h[IndexTip].Y < h[IndexPIP].Y &&
		h[MiddleTip].Y > h[MiddlePIP].Y &&
		h[RingTip].Y > h[RingPIP].Y
}

func isOpenPalm(h Hand) bool {
	for _, tip := range []int{IndexTip, MiddleTip, RingTip, PinkyTip} {
		if h[tip].Y >= h[tip-2].Y {
			return false
		}
	}
	return true
}

func isPeace(h Hand) bool {
	return h[IndexTip].Y < h[IndexPIP].Y &&
		h[MiddleTip].Y < h[MiddlePIP].Y &&
		h[RingTip].Y > h[RingPIP].Y &&
		h[PinkyTip].Y > h[PinkyPIP].Y
}

// Compact is the reduced rule set of the eva profile: thumb direction with a
// folded index finger for volume, two raised fingers for a screenshot.
type Compact struct{}

func (Compact) Classify(h Hand) (Label, bool) {
	indexDown := h[IndexTip].Y > h[IndexPIP].Y

	switch {
	case h[ThumbTip].Y < h[ThumbIP].Y && indexDown:
		return VolumeUp, true
	case h[ThumbTip].Y > h[ThumbIP].Y && indexDown:
		return VolumeDown, true
	case h[IndexTip].Y < h[IndexPIP].Y && h[MiddleTip].Y < h[MiddlePIP].Y:
		return Screenshot, true
	}

	return None, false
}
