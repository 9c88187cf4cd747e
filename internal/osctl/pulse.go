package osctl

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

var percentRe = regexp.MustCompile(`(\d+)\s*%`)

const defaultSink = "@DEFAULT_SINK@"

// Pulse drives the default PulseAudio/PipeWire sink through pactl.
type Pulse struct {
	run  Runner
	step int
}

func NewPulse(run Runner, step int) *Pulse {
	if step <= 0 {
		step = 5
	}
	return &Pulse{run: run, step: step}
}

func (p *Pulse) Up(ctx context.Context) (int, error) {
	return p.change(ctx, fmt.Sprintf("+%d%%", p.step))
}

func (p *Pulse) Down(ctx context.Context) (int, error) {
	return p.change(ctx, fmt.Sprintf("-%d%%", p.step))
}

func (p *Pulse) ToggleMute(ctx context.Context) error {
	if err := p.run.Run(ctx, "pactl", "set-sink-mute", defaultSink, "toggle"); err != nil {
		return fmt.Errorf("pactl set-sink-mute: %w", err)
	}
	return nil
}

func (p *Pulse) Level(ctx context.Context) (int, error) {
	out, err := p.run.Output(ctx, "pactl", "get-sink-volume", defaultSink)
	if err != nil {
		return 0, fmt.Errorf("pactl get-sink-volume: %w", err)
	}
	return parsePercent(string(out))
}

func (p *Pulse) change(ctx context.Context, delta string) (int, error) {
	if err := p.run.Run(ctx, "pactl", "set-sink-volume", defaultSink, delta); err != nil {
		return 0, fmt.Errorf("pactl set-sink-volume: %w", err)
	}
	return p.Level(ctx)
}

func parsePercent(s string) (int, error) {
	m := percentRe.FindStringSubmatch(s)
	if len(m) < 2 {
		return 0, fmt.Errorf("no percentage in %q", strings.TrimSpace(s))
	}
	return strconv.Atoi(m[1])
}

type streamInfo struct {
	ID      int
	Volume  int
	AppName string
}

type fadeTarget struct {
	id   int
	from int
	to   int
}

// Ducker lowers every other playback stream while the assistant talks and
// restores them afterwards. Streams whose application.name is in selfNames
// are left alone.
type Ducker struct {
	mu          sync.Mutex
	run         Runner
	active      bool
	selfNames   []string
	originalVol map[int]int
	factor      float64
	minVolume   int
	fade        time.Duration
}

func NewDucker(run Runner, selfNames []string, factor float64, minVolume int, fade time.Duration) *Ducker {
	return &Ducker{
		run:         run,
		selfNames:   append([]string(nil), selfNames...),
		originalVol: make(map[int]int),
		factor:      factor,
		minVolume:   clampInt(minVolume, 0, 150),
		fade:        fade,
	}
}

func (d *Ducker) Duck(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return nil
	}

	streams, err := d.listStreams(ctx)
	if err != nil {
		return err
	}

	d.originalVol = make(map[int]int)
	var targets []fadeTarget

	for _, s := range streams {
		if d.isSelf(s) {
			continue
		}
		to := int(math.Round(float64(s.Volume) * d.factor))
		to = clampInt(max(to, d.minVolume), 0, 150)

		d.originalVol[s.ID] = s.Volume
		targets = append(targets, fadeTarget{id: s.ID, from: s.Volume, to: to})
	}

	// A fade cut short still leaves streams lowered; Unduck must restore them.
	d.active = true
	return d.fadeInputs(ctx, targets)
}

func (d *Ducker) Unduck(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return nil
	}

	streams, err := d.listStreams(ctx)
	if err != nil {
		return err
	}

	var targets []fadeTarget
	for _, s := range streams {
		orig, ok := d.originalVol[s.ID]
		if !ok || d.isSelf(s) {
			continue
		}
		targets = append(targets, fadeTarget{id: s.ID, from: s.Volume, to: orig})
	}

	if err := d.fadeInputs(ctx, targets); err != nil {
		return err
	}

	d.originalVol = make(map[int]int)
	d.active = false
	return nil
}

func (d *Ducker) isSelf(s streamInfo) bool {
	for _, name := range d.selfNames {
		if s.AppName == name {
			return true
		}
	}
	return false
}

func (d *Ducker) fadeInputs(ctx context.Context, targets []fadeTarget) error {
	if len(targets) == 0 {
		return nil
	}

	const minStep = 10 * time.Millisecond

	steps := max(int(d.fade/minStep), 1)
	if d.fade <= 0 {
		steps = 0
	}

	for i := 0; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		frac := 1.0
		if steps > 0 {
			frac = float64(i) / float64(steps)
		}

		for _, t := range targets {
			v := int(math.Round(float64(t.from) + float64(t.to-t.from)*frac))
			if err := d.setInputVolume(ctx, t.id, v); err != nil {
				return fmt.Errorf("set volume id=%d: %w", t.id, err)
			}
		}

		if i < steps {
			time.Sleep(d.fade / time.Duration(steps))
		}
	}

	return nil
}

func (d *Ducker) listStreams(ctx context.Context) ([]streamInfo, error) {
	out, err := d.run.Output(ctx, "pactl", "list", "sink-inputs")
	if err != nil {
		return nil, fmt.Errorf("pactl list sink-inputs: %w", err)
	}
	return parseSinkInputs(string(out)), nil
}

func (d *Ducker) setInputVolume(ctx context.Context, id, percent int) error {
	percent = clampInt(percent, 0, 150)
	return d.run.Run(ctx, "pactl", "set-sink-input-volume", strconv.Itoa(id), fmt.Sprintf("%d%%", percent))
}

func parseSinkInputs(text string) []streamInfo {
	parts := strings.Split(text, "Sink Input #")
	if len(parts) <= 1 {
		return nil
	}

	var res []streamInfo
	for _, block := range parts[1:] {
		newline := strings.IndexByte(block, '\n')
		if newline <= 0 {
			continue
		}

		id, err := strconv.Atoi(strings.TrimSpace(block[:newline]))
		if err != nil {
			continue
		}

		s := streamInfo{ID: id}
		for _, line := range strings.Split(block[newline+1:], "\n") {
			line = strings.TrimSpace(line)

			if strings.HasPrefix(line, "Volume:") && s.Volume == 0 {
				if v, err := parsePercent(line); err == nil {
					s.Volume = v
				}
			}

			if strings.HasPrefix(line, "application.name =") && s.AppName == "" {
				s.AppName = strings.Trim(strings.TrimSpace(strings.TrimPrefix(line, "application.name =")), `"`)
			}
		}

		if s.Volume == 0 && s.AppName == "" {
			continue
		}
		res = append(res, s)
	}

	return res
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
