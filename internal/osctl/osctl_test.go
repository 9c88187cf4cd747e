package osctl

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"eva/internal/command"
	"eva/pkg/protocol"
)

type fakeRunner struct {
	outputs map[string]string
	calls   []string
	started []string
	err     error
}

func (f *fakeRunner) key(name string, args []string) string {
	return strings.TrimSpace(name + " " + strings.Join(args, " "))
}

func (f *fakeRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	k := f.key(name, args)
	f.calls = append(f.calls, k)
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.outputs[k]), nil
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	f.calls = append(f.calls, f.key(name, args))
	return f.err
}

func (f *fakeRunner) Start(name string, args ...string) error {
	f.started = append(f.started, f.key(name, args))
	return f.err
}

type fakeScreen struct{ n int }

func (s *fakeScreen) Capture() (image.Image, error) {
	s.n++
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	return img, nil
}

func fixedClock() time.Time { return time.Unix(1_700_000_000, 0) }

// "please take a screenshot now" ends with exactly one timestamped PNG.
func TestScreenshotFromTranscript(t *testing.T) {
	dir := t.TempDir()
	screen := &fakeScreen{}
	ctl := New(Config{ScreenshotDir: dir}, WithRunner(&fakeRunner{}), WithScreen(screen), WithClock(fixedClock))

	out, err := command.NewInterpreter(nil, ctl).Interpret(context.Background(), "please take a screenshot now")
	if err != nil {
		t.Fatal(err)
	}
	if out.Rule != "screenshot" {
		t.Fatalf("rule = %s", out.Rule)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || screen.n != 1 {
		t.Fatalf("files = %v, captures = %d", entries, screen.n)
	}

	want := "screenshot_1700000000.png"
	if entries[0].Name() != want || out.Result.Path != filepath.Join(dir, want) {
		t.Fatalf("wrote %s (result %s), want %s", entries[0].Name(), out.Result.Path, want)
	}

	f, err := os.Open(out.Result.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, format, err := image.Decode(f); err != nil || format != "png" {
		t.Fatalf("decode: format=%s err=%v", format, err)
	}
}

func TestVolume(t *testing.T) {
	run := &fakeRunner{outputs: map[string]string{
		"pactl get-sink-volume @DEFAULT_SINK@": "Volume: front-left: 36045 /  55% / -15.58 dB,   front-right: 36045 /  55% / -15.58 dB\n",
	}}
	ctl := New(Config{}, WithRunner(run))

	res, err := ctl.Execute(context.Background(), command.Action{Kind: command.VolumeUp})
	if err != nil {
		t.Fatal(err)
	}
	if res.Note != "volume 55%" {
		t.Fatalf("note = %q", res.Note)
	}
	if run.calls[0] != "pactl set-sink-volume @DEFAULT_SINK@ +5%" {
		t.Fatalf("calls = %v", run.calls)
	}

	run.calls = nil
	if _, err := ctl.Execute(context.Background(), command.Action{Kind: command.Mute}); err != nil {
		t.Fatal(err)
	}
	if run.calls[0] != "pactl set-sink-mute @DEFAULT_SINK@ toggle" {
		t.Fatalf("calls = %v", run.calls)
	}
}

func TestBrightnessClamps(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		action command.ActionKind
		want   string
	}{
		{"up", "intel_backlight,backlight,400,40%,1000", command.BrightnessUp, "brightnessctl -q set 50%"},
		{"up at top", "intel_backlight,backlight,950,95%,1000", command.BrightnessUp, "brightnessctl -q set 100%"},
		{"down", "intel_backlight,backlight,400,40%,1000", command.BrightnessDown, "brightnessctl -q set 30%"},
		{"down at bottom", "intel_backlight,backlight,50,5%,1000", command.BrightnessDown, "brightnessctl -q set 0%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := &fakeRunner{outputs: map[string]string{"brightnessctl -m": tt.level + "\n"}}
			ctl := New(Config{}, WithRunner(run))
			if _, err := ctl.Execute(context.Background(), command.Action{Kind: tt.action}); err != nil {
				t.Fatal(err)
			}
			if got := run.calls[len(run.calls)-1]; got != tt.want {
				t.Fatalf("last call = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseBrightnessErrors(t *testing.T) {
	for _, s := range []string{"", "a,b,c", "dev,backlight,1,x%,10"} {
		if _, err := parseBrightness(s); err == nil {
			t.Errorf("parseBrightness(%q) accepted", s)
		}
	}
}

func TestLaunch(t *testing.T) {
	run := &fakeRunner{}
	ctl := New(Config{Apps: map[string][]string{"calculator": {"gnome-calculator", "--mode", "basic"}}}, WithRunner(run))

	if _, err := ctl.Execute(context.Background(), command.Action{Kind: command.Launch, App: "calculator"}); err != nil {
		t.Fatal(err)
	}
	if len(run.started) != 1 || run.started[0] != "gnome-calculator --mode basic" {
		t.Fatalf("started = %v", run.started)
	}

	if _, err := ctl.Execute(context.Background(), command.Action{Kind: command.Launch, App: "paint"}); err == nil {
		t.Fatal("unknown app launched")
	}
}

func TestExit(t *testing.T) {
	ctl := New(Config{}, WithRunner(&fakeRunner{}))
	if _, err := ctl.Execute(context.Background(), command.Action{Kind: command.Exit}); err == nil {
		t.Fatal("exit without callback succeeded")
	}

	called := false
	ctl.OnExit(func() { called = true })
	if _, err := ctl.Execute(context.Background(), command.Action{Kind: command.Exit}); err != nil || !called {
		t.Fatalf("exit: err=%v called=%v", err, called)
	}
}

func TestRunnerErrorsSurface(t *testing.T) {
	run := &fakeRunner{err: errors.New("not found")}
	ctl := New(Config{}, WithRunner(run))
	if _, err := ctl.Execute(context.Background(), command.Action{Kind: command.VolumeDown}); err == nil {
		t.Fatal("runner failure swallowed")
	}
}

func TestParseSinkInputs(t *testing.T) {
	text := `Sink Input #41
	Driver: protocol-native.c
	Volume: front-left: 65536 / 100% / 0.00 dB,   front-right: 65536 / 100% / 0.00 dB
	Properties:
		application.name = "Firefox"
Sink Input #42
	Volume: front-left: 32768 /  50% / -18.06 dB
	Properties:
		application.name = "eva"
Sink Input #oops
	Volume: 10%
`
	got := parseSinkInputs(text)
	if len(got) != 2 {
		t.Fatalf("parsed %d streams: %+v", len(got), got)
	}
	if got[0] != (streamInfo{ID: 41, Volume: 100, AppName: "Firefox"}) {
		t.Fatalf("first = %+v", got[0])
	}
	if got[1].AppName != "eva" || got[1].Volume != 50 {
		t.Fatalf("second = %+v", got[1])
	}
}

func TestDuckerSkipsSelf(t *testing.T) {
	run := &fakeRunner{outputs: map[string]string{
		"pactl list sink-inputs": "Sink Input #7\n\tVolume: front-left: 1 / 80% / 0 dB\n\tapplication.name = \"Spotify\"\n" +
			"Sink Input #8\n\tVolume: front-left: 1 / 90% / 0 dB\n\tapplication.name = \"eva\"\n",
	}}
	d := NewDucker(run, []string{"eva"}, 0.25, 10, 0)

	if err := d.Duck(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := "pactl set-sink-input-volume 7 20%"
	if run.calls[len(run.calls)-1] != want {
		t.Fatalf("calls = %v", run.calls)
	}
	for _, c := range run.calls {
		if strings.Contains(c, "set-sink-input-volume 8 ") {
			t.Fatalf("ducked own stream: %v", run.calls)
		}
	}

	if err := d.Unduck(context.Background()); err != nil {
		t.Fatal(err)
	}
	if run.calls[len(run.calls)-1] != "pactl set-sink-input-volume 7 80%" {
		t.Fatalf("calls after unduck = %v", run.calls)
	}
}

// cancelRunner cancels the caller's context on the n-th volume change.
type cancelRunner struct {
	fakeRunner
	cancel func()
	n      int
}

func (c *cancelRunner) Run(ctx context.Context, name string, args ...string) error {
	err := c.fakeRunner.Run(ctx, name, args...)
	if len(args) > 0 && args[0] == "set-sink-input-volume" {
		c.n--
		if c.n == 0 {
			c.cancel()
		}
	}
	return err
}

func TestUnduckAfterInterruptedFade(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	run := &cancelRunner{
		fakeRunner: fakeRunner{outputs: map[string]string{
			"pactl list sink-inputs": "Sink Input #7\n\tVolume: front-left: 1 / 80% / 0 dB\n\tapplication.name = \"Spotify\"\n",
		}},
		cancel: cancel,
		n:      2,
	}
	d := NewDucker(run, []string{"eva"}, 0.25, 10, 50*time.Millisecond)

	if err := d.Duck(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Duck = %v, want context.Canceled", err)
	}
	if err := d.Unduck(context.Background()); err != nil {
		t.Fatal(err)
	}
	if last := run.calls[len(run.calls)-1]; last != "pactl set-sink-input-volume 7 80%" {
		t.Fatalf("stream not restored, calls = %v", run.calls)
	}

	n := len(run.calls)
	if err := d.Unduck(context.Background()); err != nil || len(run.calls) != n {
		t.Fatalf("second unduck touched streams: %v", run.calls[n:])
	}
}

type fakeHub struct {
	to, verb, noun string
	args           []string
	reply          string
}

func (h *fakeHub) Request(_ context.Context, to, verb, noun string, args ...string) (*protocol.Message, error) {
	h.to, h.verb, h.noun, h.args = to, verb, noun, args
	return protocol.Parse(h.reply)
}

func TestRemote(t *testing.T) {
	hub := &fakeHub{reply: "eva:OK:APP:gnome-calculator:HOST"}
	r := NewRemote(hub, "HOST")

	res, err := r.Execute(context.Background(), command.Action{Kind: command.Launch, App: "calculator"})
	if err != nil {
		t.Fatal(err)
	}
	if hub.to != "HOST" || hub.verb != "OPEN" || hub.noun != "APP" || hub.args[0] != "calculator" {
		t.Fatalf("sent %s %s %s %v", hub.to, hub.verb, hub.noun, hub.args)
	}
	if res.Note != "APP gnome-calculator" {
		t.Fatalf("note = %q", res.Note)
	}

	hub.reply = "eva:ERR:BUSY:HOST"
	if _, err := r.Execute(context.Background(), command.Action{Kind: command.Mute}); err == nil {
		t.Fatal("ERR reply treated as success")
	}

	if _, err := r.Execute(context.Background(), command.Action{Kind: command.Exit}); err == nil {
		t.Fatal("exit forwarded to hub")
	}
}

func TestSplit(t *testing.T) {
	var local, remote []command.Action
	s := Split{
		Local: command.ExecutorFunc(func(_ context.Context, a command.Action) (command.Result, error) {
			local = append(local, a)
			return command.Result{}, nil
		}),
		Remote: command.ExecutorFunc(func(_ context.Context, a command.Action) (command.Result, error) {
			remote = append(remote, a)
			return command.Result{}, nil
		}),
	}

	_, _ = s.Execute(context.Background(), command.Action{Kind: command.Exit})
	_, _ = s.Execute(context.Background(), command.Action{Kind: command.Screenshot})
	if len(local) != 1 || len(remote) != 1 || remote[0].Kind != command.Screenshot {
		t.Fatalf("local=%v remote=%v", local, remote)
	}
}
