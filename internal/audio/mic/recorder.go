// Package mic captures 16 kHz mono audio from the default input device.
package mic

import (
	"context"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"eva/internal/audio"
)

type Recorder struct {
	cfg    audio.Config
	mu     sync.Mutex
	detect audio.SpeechDetector
}

func NewRecorder(cfg audio.Config) *Recorder {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	return &Recorder{cfg: cfg}
}

func (r *Recorder) Init() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio init: %w", err)
	}

	vad, err := NewVAD(r.cfg.SampleRate, r.cfg.VADMode)
	if err != nil {
		log.Warn("WebRTC VAD unavailable, using energy detector", "err", err)
		r.detect = audio.Energy{Threshold: 0.015}
		return nil
	}
	r.detect = vad
	return nil
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

func (r *Recorder) Mode() audio.Mode {
	return r.cfg.Mode
}

// Listen blocks until one unit of audio is available.
func (r *Recorder) Listen(ctx context.Context) ([]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cfg.Mode == audio.ModeChunk {
		return r.recordChunk(ctx)
	}
	return r.recordPhrase(ctx)
}

func (r *Recorder) openStream(buf []float32) (*portaudio.Stream, error) {
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(r.cfg.SampleRate), len(buf), buf)
	if err != nil {
		return nil, fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("start input stream: %w", err)
	}
	return stream, nil
}

func (r *Recorder) recordPhrase(ctx context.Context) ([]float32, error) {
	frame := make([]float32, r.cfg.SampleRate*int(audio.FrameDur/time.Millisecond)/1000)

	stream, err := r.openStream(frame)
	if err != nil {
		return nil, err
	}
	defer stream.Close()
	defer stream.Stop()

	seg := audio.NewSegmenter(audio.FrameDur, r.cfg.Onset, r.cfg.PhraseLimit, r.cfg.Silence)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}

		speech, err := r.detect.IsSpeech(frame)
		if err != nil {
			return nil, err
		}

		done, err := seg.Push(frame, speech)
		if err != nil {
			return nil, err
		}
		if done {
			return seg.Samples(), nil
		}
	}
}

func (r *Recorder) recordChunk(ctx context.Context) ([]float32, error) {
	frame := make([]float32, r.cfg.SampleRate/10)
	total := int(r.cfg.Chunk.Seconds() * float64(r.cfg.SampleRate))
	out := make([]float32, 0, total)

	stream, err := r.openStream(frame)
	if err != nil {
		return nil, err
	}
	defer stream.Close()
	defer stream.Stop()

	for len(out) < total {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}
		out = append(out, frame...)
	}

	return out[:total], nil
}

// Probe opens and closes the default input device.
func Probe() error {
	if err := portaudio.Initialize(); err != nil {
		return err
	}
	defer portaudio.Terminate()

	dev, err := portaudio.DefaultInputDevice()
	if err != nil {
		return fmt.Errorf("no default input device: %w", err)
	}
	log.Debug("Found input device", "name", dev.Name, "channels", dev.MaxInputChannels)
	return nil
}
