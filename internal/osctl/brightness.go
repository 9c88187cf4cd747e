package osctl

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Backlight adjusts screen brightness with brightnessctl.
type Backlight struct {
	run  Runner
	step int
}

func NewBacklight(run Runner, step int) *Backlight {
	if step <= 0 {
		step = 10
	}
	return &Backlight{run: run, step: step}
}

func (b *Backlight) Level(ctx context.Context) (int, error) {
	out, err := b.run.Output(ctx, "brightnessctl", "-m")
	if err != nil {
		return 0, fmt.Errorf("brightnessctl: %w", err)
	}
	return parseBrightness(string(out))
}

func (b *Backlight) Up(ctx context.Context) (int, error) {
	return b.shift(ctx, b.step)
}

func (b *Backlight) Down(ctx context.Context) (int, error) {
	return b.shift(ctx, -b.step)
}

func (b *Backlight) shift(ctx context.Context, delta int) (int, error) {
	cur, err := b.Level(ctx)
	if err != nil {
		return 0, err
	}

	next := clampInt(cur+delta, 0, 100)
	if err := b.run.Run(ctx, "brightnessctl", "-q", "set", fmt.Sprintf("%d%%", next)); err != nil {
		return 0, fmt.Errorf("brightnessctl set: %w", err)
	}
	return next, nil
}

// brightnessctl -m prints "device,class,current,percent%,max".
func parseBrightness(out string) (int, error) {
	line := strings.TrimSpace(strings.SplitN(out, "\n", 2)[0])
	fields := strings.Split(line, ",")
	if len(fields) < 4 {
		return 0, fmt.Errorf("unexpected brightnessctl output %q", line)
	}
	v, err := strconv.Atoi(strings.TrimSuffix(fields[3], "%"))
	if err != nil {
		return 0, fmt.Errorf("parse brightness %q: %w", fields[3], err)
	}
	return v, nil
}
