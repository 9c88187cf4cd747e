package osctl

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"runtime"
	"time"

	"eva/internal/command"
)

type Config struct {
	ScreenshotDir  string
	Apps           map[string][]string
	VolumeStep     int
	BrightnessStep int
	// UseMediaKeys taps media keys instead of calling pactl.
	UseMediaKeys bool
}

// DefaultApps maps the application names used by rules to commands.
func DefaultApps(goos string) map[string][]string {
	switch goos {
	case "windows":
		return map[string][]string{"notepad": {"notepad"}, "calculator": {"calc"}}
	case "darwin":
		return map[string][]string{"notepad": {"open", "-a", "TextEdit"}, "calculator": {"open", "-a", "Calculator"}}
	default:
		return map[string][]string{"notepad": {"gnome-text-editor"}, "calculator": {"gnome-calculator"}}
	}
}

// Controller executes interpreter actions on the local desktop.
type Controller struct {
	cfg    Config
	run    Runner
	screen Screen
	volume *Pulse
	keys   MediaKeys
	light  *Backlight
	onExit func()
	now    func() time.Time
}

type Option func(*Controller)

func WithRunner(r Runner) Option          { return func(c *Controller) { c.run = r } }
func WithScreen(s Screen) Option          { return func(c *Controller) { c.screen = s } }
func WithClock(f func() time.Time) Option { return func(c *Controller) { c.now = f } }

func New(cfg Config, opts ...Option) *Controller {
	if cfg.Apps == nil {
		cfg.Apps = DefaultApps(runtime.GOOS)
	}

	c := &Controller{
		cfg:    cfg,
		run:    ExecRunner{},
		screen: DesktopScreen{},
		now:    time.Now,
	}
	for _, o := range opts {
		o(c)
	}

	c.volume = NewPulse(c.run, cfg.VolumeStep)
	c.light = NewBacklight(c.run, cfg.BrightnessStep)

	return c
}

// OnExit installs the callback run by the exit action.
func (c *Controller) OnExit(f func()) {
	c.onExit = f
}

func (c *Controller) Execute(ctx context.Context, a command.Action) (command.Result, error) {
	switch a.Kind {
	case command.VolumeUp, command.VolumeDown, command.Mute:
		return c.execVolume(ctx, a.Kind)

	case command.BrightnessUp:
		lvl, err := c.light.Up(ctx)
		return command.Result{Note: fmt.Sprintf("brightness %d%%", lvl)}, err

	case command.BrightnessDown:
		lvl, err := c.light.Down(ctx)
		return command.Result{Note: fmt.Sprintf("brightness %d%%", lvl)}, err

	case command.Screenshot:
		path, err := saveScreenshot(c.screen, c.cfg.ScreenshotDir, c.now())
		if err != nil {
			return command.Result{}, err
		}
		return command.Result{Note: "screenshot saved", Path: path}, nil

	case command.Launch:
		argv, ok := c.cfg.Apps[a.App]
		if !ok || len(argv) == 0 {
			return command.Result{}, fmt.Errorf("no command configured for app %q", a.App)
		}
		if err := c.run.Start(argv[0], argv[1:]...); err != nil {
			return command.Result{}, fmt.Errorf("launch %s: %w", a.App, err)
		}
		return command.Result{Note: a.App + " started"}, nil

	case command.Exit:
		if c.onExit == nil {
			return command.Result{}, errors.New("exit not supported here")
		}
		c.onExit()
		return command.Result{Note: "exiting"}, nil
	}

	return command.Result{}, fmt.Errorf("unsupported action %s", a)
}

func (c *Controller) execVolume(ctx context.Context, k command.ActionKind) (command.Result, error) {
	if c.cfg.UseMediaKeys {
		var err error
		switch k {
		case command.VolumeUp:
			err = c.keys.Up()
		case command.VolumeDown:
			err = c.keys.Down()
		default:
			err = c.keys.Toggle()
		}
		return command.Result{Note: k.String()}, err
	}

	switch k {
	case command.VolumeUp:
		lvl, err := c.volume.Up(ctx)
		return command.Result{Note: fmt.Sprintf("volume %d%%", lvl)}, err
	case command.VolumeDown:
		lvl, err := c.volume.Down(ctx)
		return command.Result{Note: fmt.Sprintf("volume %d%%", lvl)}, err
	default:
		return command.Result{Note: "mute toggled"}, c.volume.ToggleMute(ctx)
	}
}

// DryRun logs actions without touching the system.
type DryRun struct{}

func (DryRun) Execute(_ context.Context, a command.Action) (command.Result, error) {
	log.Info("Dry run", "action", a.String())
	return command.Result{Note: "dry run"}, nil
}
