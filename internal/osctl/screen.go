package osctl

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/go-vgo/robotgo"
)

type Screen interface {
	Capture() (image.Image, error)
}

type DesktopScreen struct{}

func (DesktopScreen) Capture() (image.Image, error) {
	return robotgo.CaptureImg()
}

func ScreenshotName(t time.Time) string {
	return fmt.Sprintf("screenshot_%d.png", t.Unix())
}

func saveScreenshot(s Screen, dir string, now time.Time) (string, error) {
	img, err := s.Capture()
	if err != nil {
		return "", fmt.Errorf("capture screen: %w", err)
	}

	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, ScreenshotName(now))

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}

	if err := png.Encode(f, img); err != nil {
		f.Close()
		return "", fmt.Errorf("encode png: %w", err)
	}

	return path, f.Close()
}

// Pointer moves the mouse cursor to normalised frame coordinates.
type Pointer interface {
	MoveTo(x, y float64)
}

type DesktopPointer struct{}

func (DesktopPointer) MoveTo(x, y float64) {
	w, h := robotgo.GetScreenSize()
	robotgo.Move(int(clampUnit(x)*float64(w)), int(clampUnit(y)*float64(h)))
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// MediaKeys taps the keyboard media keys; used where pactl is missing.
type MediaKeys struct{}

func (MediaKeys) Up() error     { return robotgo.KeyTap("audio_vol_up") }
func (MediaKeys) Down() error   { return robotgo.KeyTap("audio_vol_down") }
func (MediaKeys) Toggle() error { return robotgo.KeyTap("audio_mute") }
