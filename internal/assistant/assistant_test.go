package assistant

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"eva/internal/command"
	"eva/internal/detect"
	"eva/internal/display"
	"eva/internal/gesture"
)

type recognizerFunc func(ctx context.Context, pcm []float32) (string, error)

func (f recognizerFunc) Recognize(ctx context.Context, pcm []float32) (string, error) {
	return f(ctx, pcm)
}

type fakeCamera struct {
	opened  atomic.Bool
	openErr error
}

func (c *fakeCamera) Open() error {
	if c.openErr != nil {
		return c.openErr
	}
	c.opened.Store(true)
	return nil
}

func (c *fakeCamera) Close() error {
	c.opened.Store(false)
	return nil
}

func (c *fakeCamera) Opened() bool { return c.opened.Load() }

type handsFunc func(ctx context.Context) ([]gesture.Hand, error)

func (f handsFunc) Hands(ctx context.Context) ([]gesture.Hand, error) { return f(ctx) }

type objectsFunc func(ctx context.Context) ([]detect.Detection, error)

func (f objectsFunc) Objects(ctx context.Context) ([]detect.Detection, error) { return f(ctx) }

// onceListener returns its clip once, then blocks until cancelled.
type onceListener struct {
	clip []float32
	used atomic.Bool
}

func (l *onceListener) Listen(ctx context.Context) ([]float32, error) {
	if !l.used.Swap(true) {
		return l.clip, nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

type recorder struct {
	mu      sync.Mutex
	actions []command.Action
}

func (r *recorder) Execute(_ context.Context, a command.Action) (command.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, a)
	return command.Result{}, nil
}

func (r *recorder) count(k command.ActionKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.actions {
		if a.Kind == k {
			n++
		}
	}
	return n
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.actions)
}

type viewLog struct {
	mu    sync.Mutex
	views []display.View
}

func (v *viewLog) Render(view display.View) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.views = append(v.views, view)
	return nil
}

func (v *viewLog) any(pred func(display.View) bool) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, view := range v.views {
		if pred(view) {
			return true
		}
	}
	return false
}

type pointerLog struct {
	moves atomic.Int32
}

func (p *pointerLog) MoveTo(x, y float64) { p.moves.Add(1) }

func fastOptions() Options {
	o := DefaultOptions()
	o.GestureInterval = 5 * time.Millisecond
	o.ObjectInterval = 5 * time.Millisecond
	o.DisplayInterval = 5 * time.Millisecond
	o.DrainTimeout = time.Millisecond
	return o
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func volumeUpHand() gesture.Hand {
	var h gesture.Hand
	for i := range h {
		h[i] = gesture.Landmark{X: 0.5, Y: 0.5}
	}
	h[gesture.ThumbIP] = gesture.Landmark{X: 0.5, Y: 0.5}
	h[gesture.ThumbTip] = gesture.Landmark{X: 0.6, Y: 0.3}
	h[gesture.IndexPIP].Y, h[gesture.IndexTip].Y = 0.4, 0.6
	h[gesture.MiddlePIP].Y, h[gesture.MiddleTip].Y = 0.4, 0.6
	h[gesture.RingPIP].Y, h[gesture.RingTip].Y = 0.4, 0.6
	h[gesture.PinkyPIP].Y, h[gesture.PinkyTip].Y = 0.4, 0.6
	return h
}

func openPalm() gesture.Hand {
	var h gesture.Hand
	for i := range h {
		h[i] = gesture.Landmark{X: 0.5, Y: 0.5}
	}
	for _, f := range [][2]int{
		{gesture.IndexTip, gesture.IndexPIP},
		{gesture.MiddleTip, gesture.MiddlePIP},
		{gesture.RingTip, gesture.RingPIP},
		{gesture.PinkyTip, gesture.PinkyPIP},
	} {
		h[f[1]].Y, h[f[0]].Y = 0.4, 0.2
	}
	return h
}

func idleHands(ctx context.Context) ([]gesture.Hand, error) { return nil, nil }

func TestStartStop(t *testing.T) {
	cam := &fakeCamera{}
	a := New(fastOptions(), Deps{
		Camera:  cam,
		Hands:   handsFunc(idleHands),
		Objects: objectsFunc(func(context.Context) ([]detect.Detection, error) { return nil, nil }),
	})

	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	st := a.Status()
	if !st.Running || !st.Gesture || !st.Object || st.Speech {
		t.Fatalf("status after start = %+v", st)
	}
	if !cam.Opened() {
		t.Fatal("camera not opened")
	}
	if err := a.Start(context.Background()); !errors.Is(err, ErrRunning) {
		t.Fatalf("second start: %v", err)
	}

	if err := a.Stop(); err != nil {
		t.Fatal(err)
	}
	if st := a.Status(); st != (display.Status{}) {
		t.Fatalf("status after stop = %+v", st)
	}
	if cam.Opened() {
		t.Fatal("camera still held after stop")
	}
	if err := a.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("second stop: %v", err)
	}
}

func TestStartCameraFailure(t *testing.T) {
	cam := &fakeCamera{openErr: errors.New("could not open camera 0")}
	a := New(fastOptions(), Deps{Camera: cam, Hands: handsFunc(idleHands)})

	if err := a.Start(context.Background()); err == nil {
		t.Fatal("start succeeded without camera")
	}
	if st := a.Status(); st != (display.Status{}) {
		t.Fatalf("status = %+v", st)
	}
	if a.Running() {
		t.Fatal("running after failed start")
	}
}

func TestToggle(t *testing.T) {
	a := New(fastOptions(), Deps{Camera: &fakeCamera{}, Hands: handsFunc(idleHands)})

	if err := a.Toggle(context.Background()); err != nil || !a.Running() {
		t.Fatalf("toggle on: %v", err)
	}
	if err := a.Toggle(context.Background()); err != nil || a.Running() {
		t.Fatalf("toggle off: %v", err)
	}
}

func TestTranscriptRunsOneCommand(t *testing.T) {
	exec := &recorder{}
	views := &viewLog{}

	a := New(fastOptions(), Deps{
		Listener: &onceListener{clip: make([]float32, 160)},
		Recognizer: recognizerFunc(func(context.Context, []float32) (string, error) {
			return "Turn the Volume Up please", nil
		}),
		Interpreter: command.NewInterpreter(command.DefaultTable(), exec),
		Sink:        views,
	})

	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer a.Stop()

	eventually(t, "volume up", func() bool { return exec.count(command.VolumeUp) == 1 })
	eventually(t, "transcription on display", func() bool {
		return views.any(func(v display.View) bool {
			return v.Transcription == "Turn the Volume Up please" && v.Speech == "turn the volume up please"
		})
	})

	time.Sleep(50 * time.Millisecond)
	if n := exec.total(); n != 1 {
		t.Fatalf("%d actions, want 1", n)
	}
}

func TestEnergyGateSkipsQuietAudio(t *testing.T) {
	var calls atomic.Int32
	quiet := make([]float32, 1600)
	for i := range quiet {
		quiet[i] = 0.001
	}

	opts := fastOptions()
	opts.EnergyGate = 0.001
	a := New(opts, Deps{
		Listener: &onceListener{clip: quiet},
		Recognizer: recognizerFunc(func(context.Context, []float32) (string, error) {
			calls.Add(1)
			return "volume up", nil
		}),
	})

	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	a.Stop()

	if calls.Load() != 0 {
		t.Fatal("quiet chunk reached the recognizer")
	}
}

func TestGestureDebounced(t *testing.T) {
	exec := &recorder{}
	views := &viewLog{}
	hand := volumeUpHand()

	a := New(fastOptions(), Deps{
		Camera: &fakeCamera{},
		Hands: handsFunc(func(context.Context) ([]gesture.Hand, error) {
			return []gesture.Hand{hand}, nil
		}),
		Interpreter: command.NewInterpreter(command.DefaultTable(), exec),
		Sink:        views,
	})

	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	eventually(t, "volume up", func() bool { return exec.count(command.VolumeUp) > 0 })
	time.Sleep(100 * time.Millisecond)
	a.Stop()

	if n := exec.count(command.VolumeUp); n != 1 {
		t.Fatalf("held gesture fired %d times within the cooldown", n)
	}
	if !views.any(func(v display.View) bool { return v.Gesture == "VOLUME_UP" }) {
		t.Fatal("gesture never shown")
	}
}

func TestMouseGestureMovesPointer(t *testing.T) {
	exec := &recorder{}
	ptr := &pointerLog{}
	hand := openPalm()

	a := New(fastOptions(), Deps{
		Camera: &fakeCamera{},
		Hands: handsFunc(func(context.Context) ([]gesture.Hand, error) {
			return []gesture.Hand{hand}, nil
		}),
		Interpreter: command.NewInterpreter(command.DefaultTable(), exec),
		Pointer:     ptr,
	})

	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	eventually(t, "pointer moves", func() bool { return ptr.moves.Load() >= 3 })
	a.Stop()

	if exec.total() != 0 {
		t.Fatal("mouse control dispatched a command")
	}
}

func TestObjectsAtOrBelowThresholdNeverShown(t *testing.T) {
	views := &viewLog{}
	var calls atomic.Int32

	a := New(fastOptions(), Deps{
		Camera: &fakeCamera{},
		Objects: objectsFunc(func(context.Context) ([]detect.Detection, error) {
			calls.Add(1)
			return []detect.Detection{
				{Label: "cup", Confidence: 0.5, Box: image.Rect(0, 0, 10, 10)},
				{Label: "person", Confidence: 0.31, Box: image.Rect(0, 0, 10, 10)},
			}, nil
		}),
		Sink: views,
	})

	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	eventually(t, "detector calls", func() bool { return calls.Load() >= 10 })
	a.Stop()

	if views.any(func(v display.View) bool { return v.Object != display.NoValue }) {
		t.Fatal("low-confidence object reached the display")
	}
}

func TestObjectShownAndDispatched(t *testing.T) {
	views := &viewLog{}
	exec := &recorder{}
	table := command.Table{{Name: "shot", Action: command.Screenshot, Phrases: []string{"cell phone"}}}

	opts := fastOptions()
	opts.DispatchObjects = true
	a := New(opts, Deps{
		Camera: &fakeCamera{},
		Objects: objectsFunc(func(context.Context) ([]detect.Detection, error) {
			return []detect.Detection{
				{Label: "laptop", Confidence: 0.51},
				{Label: "cell phone", Confidence: 0.93},
			}, nil
		}),
		Interpreter: command.NewInterpreter(table, exec),
		Sink:        views,
	})

	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	eventually(t, "object on display", func() bool {
		return views.any(func(v display.View) bool { return v.Object == "cell phone (0.93)" })
	})
	time.Sleep(30 * time.Millisecond)
	a.Stop()

	if n := exec.count(command.Screenshot); n != 1 {
		t.Fatalf("object dispatched %d times, want 1", n)
	}
}

func TestLoopErrorEndsOnlyItsModality(t *testing.T) {
	a := New(fastOptions(), Deps{
		Camera: &fakeCamera{},
		Hands: handsFunc(func(context.Context) ([]gesture.Hand, error) {
			return nil, errors.New("model exploded")
		}),
		Objects: objectsFunc(func(context.Context) ([]detect.Detection, error) { return nil, nil }),
	})

	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer a.Stop()

	eventually(t, "gesture flag cleared", func() bool { return !a.Status().Gesture })
	st := a.Status()
	if !st.Running || !st.Object {
		t.Fatalf("status = %+v", st)
	}
}

func TestFeedWhileStopped(t *testing.T) {
	exec := &recorder{}
	a := New(fastOptions(), Deps{
		Recognizer: recognizerFunc(func(context.Context, []float32) (string, error) {
			return " please take a screenshot now ", nil
		}),
		Interpreter: command.NewInterpreter(command.DefaultTable(), exec),
	})

	text, err := a.Feed(context.Background(), make([]float32, 10))
	if err != nil {
		t.Fatal(err)
	}
	if text != "please take a screenshot now" {
		t.Fatalf("text = %q", text)
	}
	if exec.count(command.Screenshot) != 1 {
		t.Fatal("screenshot not taken")
	}
}

type speakLog struct {
	mu    sync.Mutex
	lines []string
}

func (s *speakLog) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, text)
	return nil
}

type duckLog struct {
	calls []string
}

func (d *duckLog) Duck(context.Context) error {
	d.calls = append(d.calls, "duck")
	return nil
}

func (d *duckLog) Unduck(context.Context) error {
	d.calls = append(d.calls, "unduck")
	return nil
}

func TestEchoSpeaksCommandAndReply(t *testing.T) {
	spk := &speakLog{}
	duck := &duckLog{}
	opts := fastOptions()
	opts.Echo = true

	a := New(opts, Deps{
		Recognizer: recognizerFunc(func(context.Context, []float32) (string, error) {
			return "volume down", nil
		}),
		Interpreter: command.NewInterpreter(command.DefaultTable(), &recorder{}),
		Speaker:     spk,
		Ducker:      duck,
	})

	if _, err := a.Feed(context.Background(), []float32{0}); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(spk.lines, []string{"volume down", "Volume decreased"}) {
		t.Fatalf("spoken = %v", spk.lines)
	}
	if !slices.Equal(duck.calls, []string{"duck", "unduck", "duck", "unduck"}) {
		t.Fatalf("ducking = %v", duck.calls)
	}

	if err := New(opts, Deps{}).Say(context.Background(), "hi"); !errors.Is(err, ErrNoSpeaker) {
		t.Fatalf("say without speaker: %v", err)
	}
}

func TestEchoWithoutMatch(t *testing.T) {
	spk := &speakLog{}
	exec := &recorder{}
	opts := fastOptions()
	opts.Echo = true

	a := New(opts, Deps{
		Recognizer: recognizerFunc(func(context.Context, []float32) (string, error) {
			return "what a nice day", nil
		}),
		Interpreter: command.NewInterpreter(command.DefaultTable(), exec),
		Speaker:     spk,
	})

	if _, err := a.Feed(context.Background(), []float32{0}); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(spk.lines, []string{"what a nice day"}) {
		t.Fatalf("spoken = %v", spk.lines)
	}
	if exec.total() != 0 {
		t.Fatalf("actions = %d, want 0", exec.total())
	}
}

func TestOutOfRangeConfidenceNeverShown(t *testing.T) {
	views := &viewLog{}
	exec := &recorder{}
	var calls atomic.Int32
	table := command.Table{{Name: "shot", Action: command.Screenshot, Phrases: []string{"cup"}}}

	opts := fastOptions()
	opts.DispatchObjects = true
	a := New(opts, Deps{
		Camera: &fakeCamera{},
		Objects: objectsFunc(func(context.Context) ([]detect.Detection, error) {
			calls.Add(1)
			return []detect.Detection{{Label: "cup", Confidence: 1.7}}, nil
		}),
		Interpreter: command.NewInterpreter(table, exec),
		Sink:        views,
	})

	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	eventually(t, "detector calls", func() bool { return calls.Load() >= 10 })
	a.Stop()

	if views.any(func(v display.View) bool { return v.Object != display.NoValue }) {
		t.Fatal("object with confidence above 1 reached the display")
	}
	if exec.total() != 0 {
		t.Fatalf("invalid object dispatched %d actions", exec.total())
	}
}

type lockedBuffer struct {
	mu sync.Mutex
	b  strings.Builder
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func (l *lockedBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}

type blockingExecutor struct {
	started chan struct{}
}

func (e *blockingExecutor) Execute(ctx context.Context, _ command.Action) (command.Result, error) {
	close(e.started)
	<-ctx.Done()
	return command.Result{}, ctx.Err()
}

func TestCancelledCommandLogsNoError(t *testing.T) {
	buf := &lockedBuffer{}
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(buf, nil)))
	defer slog.SetDefault(prev)

	exec := &blockingExecutor{started: make(chan struct{})}
	a := New(fastOptions(), Deps{
		Interpreter: command.NewInterpreter(command.DefaultTable(), exec),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.interpret(ctx, "volume up")
		close(done)
	}()

	<-exec.started
	cancel()
	<-done

	if strings.Contains(buf.String(), "Command failed") {
		t.Fatalf("cancelled command logged an error:\n%s", buf.String())
	}
}
