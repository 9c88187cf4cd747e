package mic

import (
	"fmt"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

// VAD wraps the WebRTC voice activity detector. Frames must be 10, 20 or
// 30 ms long.
type VAD struct {
	vad        *webrtcvad.VAD
	sampleRate int
	buf        []byte
}

func NewVAD(sampleRate, mode int) (*VAD, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("create webrtc vad: %w", err)
	}

	mode = max(0, min(mode, 3))
	if err := v.SetMode(mode); err != nil {
		return nil, fmt.Errorf("set vad mode: %w", err)
	}

	return &VAD{vad: v, sampleRate: sampleRate}, nil
}

func (v *VAD) IsSpeech(frame []float32) (bool, error) {
	if !webrtcvad.ValidRateAndFrameLength(v.sampleRate, len(frame)) {
		return false, fmt.Errorf("invalid vad frame: %d samples at %d Hz", len(frame), v.sampleRate)
	}

	v.buf = appendPCM16(v.buf[:0], frame)
	return v.vad.Process(v.sampleRate, v.buf)
}

func appendPCM16(dst []byte, f []float32) []byte {
	for _, x := range f {
		x = max(-1, min(x, 1))
		s := int16(x * 32767)
		dst = append(dst, byte(s), byte(s>>8))
	}
	return dst
}
