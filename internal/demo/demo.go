// Package demo provides simulated perception sources so the assistant can
// run without a camera, microphone or models.
package demo

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"eva/internal/detect"
	"eva/internal/gesture"
)

const (
	GestureEvery = 3 * time.Second
	SpeechEvery  = 4 * time.Second
	ObjectEvery  = 2500 * time.Millisecond
)

var (
	Gestures = []gesture.Label{
		gesture.VolumeUp,
		gesture.VolumeDown,
		gesture.BrightnessUp,
		gesture.MouseControl,
		gesture.Screenshot,
	}
	Phrases = []string{
		"volume up",
		"take a screenshot",
		"open calculator",
		"brightness down",
		"what a nice day",
	}
	Objects = []string{"person", "cup", "laptop", "cell phone", "book", "chair"}
)

type Camera struct {
	opened atomic.Bool
}

func (c *Camera) Open() error {
	c.opened.Store(true)
	return nil
}

func (c *Camera) Close() error {
	c.opened.Store(false)
	return nil
}

func (c *Camera) Opened() bool { return c.opened.Load() }

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Pose builds a hand that the standard classifier reads as l.
func Pose(l gesture.Label) gesture.Hand {
	var h gesture.Hand
	for i := range h {
		h[i] = gesture.Landmark{X: 0.5, Y: 0.5}
	}

	up := func(tips ...int) {
		for _, t := range tips {
			h[t-2].Y, h[t].Y = 0.45, 0.25
		}
	}
	down := func(tips ...int) {
		for _, t := range tips {
			h[t-2].Y, h[t].Y = 0.45, 0.6
		}
	}

	switch l {
	case gesture.VolumeUp, gesture.VolumeDown:
		down(gesture.IndexTip, gesture.MiddleTip, gesture.RingTip, gesture.PinkyTip)
		h[gesture.ThumbTip] = gesture.Landmark{X: 0.62, Y: 0.35}
		if l == gesture.VolumeDown {
			h[gesture.ThumbTip].Y = 0.65
		}
	case gesture.BrightnessUp, gesture.BrightnessDown:
		up(gesture.IndexTip)
		down(gesture.MiddleTip, gesture.RingTip, gesture.PinkyTip)
	case gesture.MouseControl:
		up(gesture.IndexTip, gesture.MiddleTip, gesture.RingTip, gesture.PinkyTip)
		h[gesture.IndexTip].X = 0.3
	case gesture.Screenshot:
		up(gesture.IndexTip, gesture.MiddleTip)
		down(gesture.RingTip, gesture.PinkyTip)
	}
	return h
}

// Hands shows a random gesture for one frame every interval.
type Hands struct {
	every time.Duration
	rng   *rand.Rand
	next  time.Time
}

func NewHands(every time.Duration, seed uint64) *Hands {
	return &Hands{every: every, rng: newRand(seed)}
}

func (s *Hands) Hands(ctx context.Context) ([]gesture.Hand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := time.Now()
	if s.next.IsZero() {
		s.next = now.Add(s.every)
	}
	if now.Before(s.next) {
		return nil, nil
	}
	s.next = now.Add(s.every)

	l := Gestures[s.rng.IntN(len(Gestures))]
	return []gesture.Hand{Pose(l)}, nil
}

// Detector reports one random object every interval with a confidence
// between 0.6 and 0.95.
type Detector struct {
	every time.Duration
	rng   *rand.Rand
	next  time.Time
}

func NewDetector(every time.Duration, seed uint64) *Detector {
	return &Detector{every: every, rng: newRand(seed)}
}

func (s *Detector) Objects(ctx context.Context) ([]detect.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := time.Now()
	if s.next.IsZero() {
		s.next = now.Add(s.every)
	}
	if now.Before(s.next) {
		return nil, nil
	}
	s.next = now.Add(s.every)

	label := Objects[s.rng.IntN(len(Objects))]
	return []detect.Detection{{
		Class:      detectClass(label),
		Label:      label,
		Confidence: 0.6 + s.rng.Float64()*0.35,
	}}, nil
}

func detectClass(label string) int {
	for i, l := range detect.COCOLabels {
		if l == label {
			return i
		}
	}
	return -1
}

// Voice pretends to hear a random phrase every interval. It serves as both
// listener and recognizer.
type Voice struct {
	every time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

func NewVoice(every time.Duration, seed uint64) *Voice {
	return &Voice{every: every, rng: newRand(seed)}
}

func (v *Voice) Listen(ctx context.Context) ([]float32, error) {
	t := time.NewTimer(v.every)
	defer t.Stop()

	select {
	case <-t.C:
		return []float32{0.1}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (v *Voice) Recognize(ctx context.Context, _ []float32) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Phrases[v.rng.IntN(len(Phrases))], nil
}
