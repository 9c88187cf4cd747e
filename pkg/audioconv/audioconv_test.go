package audioconv

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestDownmix(t *testing.T) {
	got := Downmix([]float32{1, 0, 0.5, 0.5, -1, 1}, 2)
	want := []float32{0.5, 0.5, 0}
	if len(got) != len(want) {
		t.Fatalf("len = %d", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("frame %d = %f, want %f", i, got[i], want[i])
		}
	}
}

func TestResample(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		n, want  int
	}{
		{"same rate", 16000, 16000, 100, 100},
		{"down 3x", 48000, 16000, 480, 160},
		{"up 2x", 8000, 16000, 100, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := make([]float32, tt.n)
			if got := len(Resample(in, tt.from, tt.to)); got != tt.want {
				t.Fatalf("len = %d, want %d", got, tt.want)
			}
		})
	}

	up := Resample([]float32{0, 1}, 1, 2)
	if len(up) != 4 || up[1] != 0.5 || up[3] != 1 {
		t.Fatalf("interpolation = %v", up)
	}
}

func TestWAVRoundTrip(t *testing.T) {
	pcm := make([]float32, 1600)
	for i := range pcm {
		pcm[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}

	path, err := WriteTempWAV(pcm, 16000)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(path)

	got, err := DecodeFile(context.Background(), path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(pcm) {
		t.Fatalf("decoded %d samples, want %d", len(got), len(pcm))
	}
	for i := range pcm {
		if math.Abs(float64(got[i]-pcm[i])) > 1e-3 {
			t.Fatalf("sample %d = %f, want %f", i, got[i], pcm[i])
		}
	}

	short, err := DecodeFile(context.Background(), path, 100)
	if err != nil || len(short) != 100 {
		t.Fatalf("limited decode: len=%d err=%v", len(short), err)
	}
}

func TestDecodeSniffsUnknownExtension(t *testing.T) {
	dir := t.TempDir()

	src, err := WriteTempWAV(make([]float32, 160), 8000)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(src)
	data, _ := os.ReadFile(src)

	path := filepath.Join(dir, "clip.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	pcm, err := DecodeFile(context.Background(), path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(pcm) != 320 {
		t.Fatalf("8 kHz clip resampled to %d samples, want 320", len(pcm))
	}

	junk := filepath.Join(dir, "junk.bin")
	os.WriteFile(junk, []byte("hello world"), 0o644)
	if _, err := DecodeFile(context.Background(), junk, 0); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("err = %v, want ErrUnsupported", err)
	}
}
