package audio

import (
	"errors"
	"time"
)

var ErrNoSpeech = errors.New("no speech before timeout")

// Segmenter cuts one utterance out of a frame stream: it waits for speech
// onset, then collects until a silence gap or the phrase limit.
type Segmenter struct {
	frameDur time.Duration
	onset    time.Duration
	limit    time.Duration
	silence  time.Duration

	waited   time.Duration
	spoken   time.Duration
	quiet    time.Duration
	speaking bool
	out      []float32
}

func NewSegmenter(frameDur, onset, limit, silence time.Duration) *Segmenter {
	return &Segmenter{frameDur: frameDur, onset: onset, limit: limit, silence: silence}
}

// Push feeds one frame. It reports true once the utterance is complete.
func (s *Segmenter) Push(frame []float32, speech bool) (bool, error) {
	if !s.speaking {
		if !speech {
			s.waited += s.frameDur
			if s.onset > 0 && s.waited >= s.onset {
				return true, ErrNoSpeech
			}
			return false, nil
		}
		s.speaking = true
	}

	s.out = append(s.out, frame...)
	s.spoken += s.frameDur

	if speech {
		s.quiet = 0
	} else {
		s.quiet += s.frameDur
		if s.quiet >= s.silence {
			return true, nil
		}
	}

	if s.limit > 0 && s.spoken >= s.limit {
		return true, nil
	}
	return false, nil
}

func (s *Segmenter) Samples() []float32 {
	return s.out
}
