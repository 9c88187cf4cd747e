// Package assistant runs the perception loops, turns their results into
// commands and feeds the display.
package assistant

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"eva/internal/command"
	"eva/internal/detect"
	"eva/internal/display"
	"eva/internal/event"
	"eva/internal/gesture"
)

var (
	ErrRunning    = errors.New("assistant already running")
	ErrNotRunning = errors.New("assistant not running")
	ErrNoSpeaker  = errors.New("speech output disabled")
)

type Camera interface {
	Open() error
	Close() error
	Opened() bool
}

type HandTracker interface {
	Hands(ctx context.Context) ([]gesture.Hand, error)
}

type ObjectDetector interface {
	Objects(ctx context.Context) ([]detect.Detection, error)
}

type Listener interface {
	Listen(ctx context.Context) ([]float32, error)
}

type Recognizer interface {
	Recognize(ctx context.Context, pcm []float32) (string, error)
}

type Speaker interface {
	Speak(ctx context.Context, text string) error
}

type Pointer interface {
	MoveTo(x, y float64)
}

// Ducker lowers other applications while the assistant talks.
type Ducker interface {
	Duck(ctx context.Context) error
	Unduck(ctx context.Context) error
}

// Deps are the adapters the assistant drives. A nil tracker, detector or
// listener disables that modality.
type Deps struct {
	Camera      Camera
	Hands       HandTracker
	Objects     ObjectDetector
	Listener    Listener
	Recognizer  Recognizer
	Interpreter *command.Interpreter
	Speaker     Speaker
	Ducker      Ducker
	Pointer     Pointer
	Sink        display.Sink
}

type Options struct {
	Gestures        gesture.Classifier
	GesturesAct     bool
	GestureCooldown time.Duration

	GestureInterval time.Duration
	ObjectInterval  time.Duration
	DisplayInterval time.Duration
	// DrainTimeout bounds the wait for each queue on a display refresh.
	DrainTimeout time.Duration

	ObjectThreshold float64
	DispatchObjects bool

	// EnergyGate skips audio whose mean square is below it; zero disables.
	EnergyGate float64
	// Echo speaks every command text before it is matched, then the reply
	// of the rule that fired.
	Echo bool

	QueueSize int
	Workers   int
}

func DefaultOptions() Options {
	return Options{
		Gestures:        gesture.Standard{},
		GesturesAct:     true,
		GestureCooldown: time.Second,
		GestureInterval: 33 * time.Millisecond,
		ObjectInterval:  100 * time.Millisecond,
		DisplayInterval: 100 * time.Millisecond,
		DrainTimeout:    10 * time.Millisecond,
		ObjectThreshold: detect.DefaultThreshold,
		QueueSize:       32,
		Workers:         4,
	}
}

// run is one Start..Stop period.
type run struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group
}

type Assistant struct {
	opts Options
	deps Deps
	pool *pool

	mu  sync.Mutex
	cur *run
	st  state

	board    *display.Board
	gestures *event.Queue
	speech   *event.Queue
	objects  *event.Queue

	debounce   *gesture.Debouncer
	lastObject string
}

func New(opts Options, deps Deps) *Assistant {
	def := DefaultOptions()
	if opts.Gestures == nil {
		opts.Gestures = def.Gestures
	}
	if opts.GestureInterval <= 0 {
		opts.GestureInterval = def.GestureInterval
	}
	if opts.ObjectInterval <= 0 {
		opts.ObjectInterval = def.ObjectInterval
	}
	if opts.DisplayInterval <= 0 {
		opts.DisplayInterval = def.DisplayInterval
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = def.DrainTimeout
	}
	if opts.ObjectThreshold <= 0 {
		opts.ObjectThreshold = def.ObjectThreshold
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = def.QueueSize
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	return &Assistant{
		opts:     opts,
		deps:     deps,
		pool:     newPool(opts.Workers),
		board:    display.NewBoard(),
		gestures: event.NewQueue(opts.QueueSize),
		speech:   event.NewQueue(opts.QueueSize),
		objects:  event.NewQueue(opts.QueueSize),
		debounce: gesture.NewDebouncer(opts.GestureCooldown),
	}
}

// Start opens the camera and launches every available loop. The run
// outlives ctx; it ends only through Stop.
func (a *Assistant) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cur != nil {
		return ErrRunning
	}

	needCamera := a.deps.Hands != nil || a.deps.Objects != nil
	if needCamera && a.deps.Camera != nil {
		if err := a.deps.Camera.Open(); err != nil {
			a.st.clear()
			return fmt.Errorf("camera: %w", err)
		}
	}

	r := &run{id: uuid.NewString()}
	r.ctx, r.cancel = context.WithCancel(context.WithoutCancel(ctx))

	a.debounce.Reset()
	a.lastObject = ""
	a.board.Reset()
	a.board.SetRun(r.id)

	a.st.running.Store(true)
	a.st.gesture.Store(a.deps.Hands != nil)
	a.st.speech.Store(a.deps.Listener != nil && a.deps.Recognizer != nil)
	a.st.object.Store(a.deps.Objects != nil)

	if a.st.gesture.Load() {
		r.group.Go(a.modality(r, "gesture", &a.st.gesture, a.gestureLoop))
	}
	if a.st.object.Load() {
		r.group.Go(a.modality(r, "object", &a.st.object, a.objectLoop))
	}
	if a.st.speech.Load() {
		r.group.Go(a.modality(r, "speech", &a.st.speech, a.speechLoop))
	}
	r.group.Go(func() error {
		a.displayLoop(r)
		return nil
	})

	a.cur = r
	log.Info("All models started", "run", r.id, "status", fmt.Sprintf("%+v", a.st.snapshot()))
	return nil
}

// Stop ends the run, waits for the loops and releases the camera.
func (a *Assistant) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	r := a.cur
	if r == nil {
		return ErrNotRunning
	}

	a.st.clear()
	r.cancel()
	r.group.Wait()

	if a.deps.Camera != nil && a.deps.Camera.Opened() {
		if err := a.deps.Camera.Close(); err != nil {
			log.Warn("Failed to release camera", "err", err)
		}
	}

	dropped := a.gestures.Drain() + a.speech.Drain() + a.objects.Drain()
	a.cur = nil

	a.board.SetStatus(a.st.snapshot())
	a.render(time.Now())

	log.Info("All models stopped", "run", r.id, "dropped", dropped)
	return nil
}

func (a *Assistant) Toggle(ctx context.Context) error {
	if a.Running() {
		return a.Stop()
	}
	return a.Start(ctx)
}

func (a *Assistant) Running() bool {
	return a.st.running.Load()
}

func (a *Assistant) Status() display.Status {
	return a.st.snapshot()
}

// Say speaks text on a worker.
func (a *Assistant) Say(ctx context.Context, text string) error {
	if a.deps.Speaker == nil {
		return ErrNoSpeaker
	}
	_, err := offload(ctx, a.pool, func(ctx context.Context) (struct{}, error) {
		if a.deps.Ducker != nil {
			if err := a.deps.Ducker.Duck(ctx); err != nil {
				log.Warn("Failed to duck audio", "err", err)
			}
			defer a.deps.Ducker.Unduck(context.WithoutCancel(ctx))
		}
		return struct{}{}, a.deps.Speaker.Speak(ctx, text)
	})
	return err
}

// Feed recognises externally supplied audio and interprets the transcript
// as if it had come from the microphone.
func (a *Assistant) Feed(ctx context.Context, pcm []float32) (string, error) {
	if a.deps.Recognizer == nil {
		return "", errors.New("no recognizer configured")
	}

	a.mu.Lock()
	r := a.cur
	a.mu.Unlock()

	return a.hear(ctx, r, pcm)
}

func (a *Assistant) modality(r *run, name string, flag *atomic.Bool, loop func(*run) error) func() error {
	return func() error {
		defer flag.Store(false)

		err := loop(r)
		if err != nil && r.ctx.Err() == nil {
			log.Error("Loop stopped", "loop", name, "err", err)
		}
		return nil
	}
}

// publish hands ev to the display and reports whether it was queued.
// Events from a finished run and malformed events are dropped.
func (a *Assistant) publish(r *run, q *event.Queue, ev event.Event) bool {
	if r == nil || r.ctx.Err() != nil {
		return false
	}
	if err := ev.Validate(); err != nil {
		log.Warn("Invalid event", "kind", ev.Kind, "err", err)
		return false
	}
	if err := q.Put(r.ctx, ev); err != nil {
		log.Debug("Dropped event", "kind", ev.Kind, "err", err)
		return false
	}
	return true
}

func (a *Assistant) render(now time.Time) {
	if a.deps.Sink == nil {
		return
	}
	if err := a.deps.Sink.Render(a.board.View(now)); err != nil {
		log.Debug("Render failed", "err", err)
	}
}
