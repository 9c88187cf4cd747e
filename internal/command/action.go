package command

import (
	"context"
	"fmt"
)

type ActionKind uint8

const (
	VolumeUp ActionKind = iota + 1
	VolumeDown
	Mute
	BrightnessUp
	BrightnessDown
	Screenshot
	Launch
	Exit
)

var actionNames = map[ActionKind]string{
	VolumeUp:       "volume_up",
	VolumeDown:     "volume_down",
	Mute:           "mute",
	BrightnessUp:   "brightness_up",
	BrightnessDown: "brightness_down",
	Screenshot:     "screenshot",
	Launch:         "launch",
	Exit:           "exit",
}

func (k ActionKind) String() string {
	if s, ok := actionNames[k]; ok {
		return s
	}
	return fmt.Sprintf("action(%d)", uint8(k))
}

func ParseActionKind(s string) (ActionKind, error) {
	for k, name := range actionNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

func (k *ActionKind) UnmarshalText(b []byte) error {
	v, err := ParseActionKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

func (k ActionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

type Action struct {
	Kind ActionKind
	// App names the program for Launch actions.
	App string
}

func (a Action) String() string {
	if a.Kind == Launch {
		return "launch:" + a.App
	}
	return a.Kind.String()
}

type Result struct {
	Note string
	// Path is set when the action wrote a file.
	Path string
}

// Executor performs OS actions.
type Executor interface {
	Execute(ctx context.Context, a Action) (Result, error)
}

type ExecutorFunc func(ctx context.Context, a Action) (Result, error)

func (f ExecutorFunc) Execute(ctx context.Context, a Action) (Result, error) {
	return f(ctx, a)
}
