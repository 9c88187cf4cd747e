package osctl

import (
	"context"
	"fmt"
	"strings"

	"eva/internal/command"
	"eva/pkg/protocol"
)

// Requester is the slice of the hub protocol the remote executor needs.
type Requester interface {
	Request(ctx context.Context, to, verb, noun string, args ...string) (*protocol.Message, error)
}

// Remote forwards actions to another node on the hub, e.g. a machine that
// owns the speakers or the display.
type Remote struct {
	ptcl   Requester
	target string
}

func NewRemote(p Requester, target string) *Remote {
	return &Remote{ptcl: p, target: target}
}

func remoteFrame(a command.Action) (verb, noun string, args []string, err error) {
	switch a.Kind {
	case command.VolumeUp:
		return "UP", "VOLUME", nil, nil
	case command.VolumeDown:
		return "DOWN", "VOLUME", nil, nil
	case command.Mute:
		return "MUTE", "VOLUME", nil, nil
	case command.BrightnessUp:
		return "UP", "BRIGHTNESS", nil, nil
	case command.BrightnessDown:
		return "DOWN", "BRIGHTNESS", nil, nil
	case command.Screenshot:
		return "TAKE", "SCREENSHOT", nil, nil
	case command.Launch:
		return "OPEN", "APP", []string{a.App}, nil
	}
	return "", "", nil, fmt.Errorf("action %s cannot run remotely", a)
}

func (r *Remote) Execute(ctx context.Context, a command.Action) (command.Result, error) {
	verb, noun, args, err := remoteFrame(a)
	if err != nil {
		return command.Result{}, err
	}

	resp, err := r.ptcl.Request(ctx, r.target, verb, noun, args...)
	if err != nil {
		return command.Result{}, fmt.Errorf("remote %s: %w", a, err)
	}
	if !resp.IsOK() {
		return command.Result{}, fmt.Errorf("remote %s refused: %s %s", a, resp.Noun, strings.Join(resp.Args, " "))
	}

	return command.Result{Note: strings.Join(append([]string{resp.Noun}, resp.Args...), " ")}, nil
}

// Split sends exit locally and everything else to remote.
type Split struct {
	Local  command.Executor
	Remote command.Executor
}

func (s Split) Execute(ctx context.Context, a command.Action) (command.Result, error) {
	if a.Kind == command.Exit {
		return s.Local.Execute(ctx, a)
	}
	return s.Remote.Execute(ctx, a)
}
