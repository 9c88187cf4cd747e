package assistant

import (
	"context"
	"errors"
	log "log/slog"
	"strings"
	"time"

	"eva/internal/audio"
	"eva/internal/command"
	"eva/internal/detect"
	"eva/internal/event"
	"eva/internal/gesture"
)

// sleep waits d or until ctx ends; it reports whether the loop should go on.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (a *Assistant) gestureLoop(r *run) error {
	for {
		hands, err := a.deps.Hands.Hands(r.ctx)
		if err != nil {
			return err
		}

		if len(hands) > 0 {
			a.onHand(r, hands[0])
		}

		if !sleep(r.ctx, a.opts.GestureInterval) {
			return nil
		}
	}
}

func (a *Assistant) onHand(r *run, h gesture.Hand) {
	label, ok := a.opts.Gestures.Classify(h)
	if !ok {
		return
	}

	a.publish(r, a.gestures, event.NewGesture(label.String()))

	if label == gesture.MouseControl {
		if a.deps.Pointer != nil {
			tip := h[gesture.IndexTip]
			a.deps.Pointer.MoveTo(tip.X, tip.Y)
		}
		return
	}

	if !a.opts.GesturesAct || !a.debounce.Allow(label, time.Now()) {
		return
	}

	log.Debug("Gesture command", "gesture", label.String())
	a.interpret(r.ctx, label.Phrase())
}

func (a *Assistant) objectLoop(r *run) error {
	for {
		dets, err := a.deps.Objects.Objects(r.ctx)
		if err != nil {
			return err
		}

		if best, ok := detect.Best(detect.Filter(dets, a.opts.ObjectThreshold)); ok {
			if a.publish(r, a.objects, event.NewObject(best.Label, best.Confidence, best.Box)) {
				a.onObject(r, best)
			}
		}

		if !sleep(r.ctx, a.opts.ObjectInterval) {
			return nil
		}
	}
}

// onObject runs the label through the interpreter once each time the most
// confident object changes.
func (a *Assistant) onObject(r *run, d detect.Detection) {
	if !a.opts.DispatchObjects || d.Label == a.lastObject {
		return
	}
	a.lastObject = d.Label
	a.interpret(r.ctx, d.Label)
}

func (a *Assistant) speechLoop(r *run) error {
	for {
		pcm, err := offload(r.ctx, a.pool, a.deps.Listener.Listen)
		if r.ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, audio.ErrNoSpeech) {
			continue
		}
		if err != nil {
			return err
		}

		if a.opts.EnergyGate > 0 && audio.MeanSquare(pcm) < a.opts.EnergyGate {
			continue
		}

		if _, err := a.hear(r.ctx, r, pcm); err != nil && r.ctx.Err() == nil {
			log.Warn("Recognition failed", "err", err)
		}
	}
}

// hear transcribes pcm, posts the text for display and interprets it. r
// may be nil when no run is active.
func (a *Assistant) hear(ctx context.Context, r *run, pcm []float32) (string, error) {
	text, err := offload(ctx, a.pool, func(ctx context.Context) (string, error) {
		return a.deps.Recognizer.Recognize(ctx, pcm)
	})
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	log.Info("Heard", "text", text)

	a.publish(r, a.speech, event.NewTranscript(text))
	a.publish(r, a.speech, event.NewSpeech(strings.ToLower(text)))

	a.interpret(ctx, text)
	return text, nil
}

func (a *Assistant) interpret(ctx context.Context, text string) {
	if a.deps.Interpreter == nil {
		return
	}

	if a.opts.Echo {
		a.echo(ctx, text)
	}

	out, err := offload(ctx, a.pool, func(ctx context.Context) (command.Outcome, error) {
		return a.deps.Interpreter.Interpret(ctx, text)
	})
	switch {
	case errors.Is(err, command.ErrNoMatch):
		log.Debug("No command", "text", text)
		return
	case err != nil:
		if ctx.Err() == nil {
			log.Error("Command failed", "text", text, "err", err)
		}
		return
	}

	if a.opts.Echo && out.Reply != "" {
		a.echo(ctx, out.Reply)
	}
}

func (a *Assistant) echo(ctx context.Context, text string) {
	if a.deps.Speaker == nil {
		return
	}
	if err := a.Say(ctx, text); err != nil && ctx.Err() == nil {
		log.Warn("Failed to voice out", "err", err)
	}
}

func (a *Assistant) displayLoop(r *run) {
	ticker := time.NewTicker(a.opts.DisplayInterval)
	defer ticker.Stop()

	for {
		now := time.Now()
		for _, q := range []*event.Queue{a.gestures, a.speech, a.objects} {
			for {
				ev, ok := q.Get(r.ctx, a.opts.DrainTimeout)
				if !ok {
					break
				}
				a.board.Apply(ev, now)
			}
		}

		a.board.SetStatus(a.st.snapshot())
		a.render(now)

		select {
		case <-ticker.C:
		case <-r.ctx.Done():
			return
		}
	}
}
