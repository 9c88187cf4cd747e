// Package audioconv turns audio files into 16 kHz mono float32 PCM, the
// format every recognizer in this module expects, and writes it back out.
package audioconv

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	popus "github.com/pekim/opus"
)

const TargetRate = 16000

var ErrUnsupported = errors.New("unsupported audio format")

type Format string

const (
	WAV  Format = "wav"
	MP3  Format = "mp3"
	Ogg  Format = "ogg"
	None Format = ""
)

// Limit caps the number of returned samples; zero means no cap.
type Limit int

func (l Limit) apply(x []float32) []float32 {
	if l > 0 && len(x) > int(l) {
		return x[:l]
	}
	return x
}

// DecodeFile reads path and returns mono PCM at TargetRate.
func DecodeFile(ctx context.Context, path string, limit Limit) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	format := formatFromExt(path)
	if format == None {
		if format, err = sniff(f); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pcm, err := Decode(f, format)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return limit.apply(pcm), nil
}

// Decode reads an entire stream of the given format.
func Decode(r io.ReadSeeker, format Format) ([]float32, error) {
	switch format {
	case WAV:
		return decodeWAV(r)
	case MP3:
		return decodeMP3(r)
	case Ogg:
		pcm, err := decodeVorbis(r)
		if err == nil {
			return pcm, nil
		}
		if _, serr := r.Seek(0, io.SeekStart); serr != nil {
			return nil, serr
		}
		pcm, oerr := decodeOpus(r)
		if oerr != nil {
			return nil, fmt.Errorf("neither vorbis (%v) nor opus: %w", err, oerr)
		}
		return pcm, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupported, format)
}

func formatFromExt(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return WAV
	case ".mp3":
		return MP3
	case ".ogg", ".oga", ".opus":
		return Ogg
	}
	return None
}

func sniff(r io.ReadSeeker) (Format, error) {
	magic, _ := bufio.NewReader(r).Peek(4)
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return None, err
	}

	switch {
	case string(magic) == "RIFF":
		return WAV, nil
	case string(magic) == "OggS":
		return Ogg, nil
	case len(magic) >= 3 && string(magic[:3]) == "ID3":
		return MP3, nil
	}
	return None, ErrUnsupported
}

func decodeWAV(r io.ReadSeeker) ([]float32, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid wav header")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, errors.New("empty wav")
	}

	depth := int(dec.BitDepth)
	if depth == 0 {
		depth = 16
	}

	channels, rate := 1, int(dec.SampleRate)
	if buf.Format != nil {
		channels = max(buf.Format.NumChannels, 1)
		if buf.Format.SampleRate > 0 {
			rate = buf.Format.SampleRate
		}
	}

	x := intsToFloat(buf.Data, depth)
	return Resample(Downmix(x, channels), rate, TargetRate), nil
}

func decodeMP3(r io.Reader) ([]float32, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, err
	}

	samples := make([]int16, len(raw)/2)
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, samples); err != nil {
		return nil, err
	}

	// go-mp3 always emits interleaved stereo.
	x := Downmix(int16ToFloat(samples), 2)
	return Resample(x, dec.SampleRate(), TargetRate), nil
}

func decodeVorbis(r io.Reader) ([]float32, error) {
	pcm, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		return nil, errors.New("invalid vorbis stream")
	}

	return Resample(Downmix(pcm, format.Channels), format.SampleRate, TargetRate), nil
}

func decodeOpus(r io.ReadSeeker) ([]float32, error) {
	dec, err := popus.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	defer dec.Destroy()

	channels := max(dec.ChannelCount(), 1)

	var pcm []float32
	buf := make([]int16, 24000*channels)
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			pcm = append(pcm, int16ToFloat(buf[:n*channels])...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	// opus always decodes at 48 kHz
	return Resample(Downmix(pcm, channels), 48000, TargetRate), nil
}
