package command

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recorder struct {
	calls []Action
	err   error
}

func (r *recorder) Execute(_ context.Context, a Action) (Result, error) {
	r.calls = append(r.calls, a)
	return Result{Note: a.String()}, r.err
}

func (r *recorder) count(k ActionKind) int {
	n := 0
	for _, a := range r.calls {
		if a.Kind == k {
			n++
		}
	}
	return n
}

func TestDefaultTableIsValid(t *testing.T) {
	if err := DefaultTable().Validate(); err != nil {
		t.Fatalf("default table invalid: %v", err)
	}
}

func TestInterpret(t *testing.T) {
	tests := []struct {
		text string
		want Action
		rule string
	}{
		{"Volume Up please", Action{Kind: VolumeUp}, "volume_up"},
		{"could you increase volume", Action{Kind: VolumeUp}, "volume_up"},
		{"volume down", Action{Kind: VolumeDown}, "volume_down"},
		{"unmute the speakers", Action{Kind: Mute}, "mute"},
		{"brightness up", Action{Kind: BrightnessUp}, "brightness_up"},
		{"decrease brightness a bit", Action{Kind: BrightnessDown}, "brightness_down"},
		{"please take a screenshot now", Action{Kind: Screenshot}, "screenshot"},
		{"open notepad", Action{Kind: Launch, App: "notepad"}, "open_notepad"},
		{"open calculator", Action{Kind: Launch, App: "calculator"}, "open_calculator"},
		{"exit", Action{Kind: Exit}, "exit"},
		// table order decides between overlapping commands
		{"volume up and take a screenshot", Action{Kind: VolumeUp}, "volume_up"},
		{"screenshot then close", Action{Kind: Screenshot}, "screenshot"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			rec := &recorder{}
			in := NewInterpreter(nil, rec)

			out, err := in.Interpret(context.Background(), tt.text)
			if err != nil {
				t.Fatalf("Interpret: %v", err)
			}
			if len(rec.calls) != 1 {
				t.Fatalf("executed %d actions, want 1", len(rec.calls))
			}
			if rec.calls[0] != tt.want || out.Rule != tt.rule {
				t.Fatalf("got %v via %s, want %v via %s", rec.calls[0], out.Rule, tt.want, tt.rule)
			}
		})
	}
}

func TestInterpretNoMatch(t *testing.T) {
	rec := &recorder{}
	in := NewInterpreter(nil, rec)

	for _, text := range []string{"", "   ", "hello there", "what time is it"} {
		if _, err := in.Interpret(context.Background(), text); !errors.Is(err, ErrNoMatch) {
			t.Errorf("Interpret(%q) err = %v, want ErrNoMatch", text, err)
		}
	}
	if len(rec.calls) != 0 {
		t.Fatalf("unexpected actions: %v", rec.calls)
	}
}

// Every transcript containing "volume up" yields exactly one volume increase.
func TestVolumeUpProperty(t *testing.T) {
	words := []string{"screenshot", "mute", "exit", "close", "brightness down", "volume down",
		"open notepad", "please", "now", "the", "volume", "up", "increase brightness"}
	r := rand.New(rand.NewPCG(3, 5))

	for i := 0; i < 500; i++ {
		var parts []string
		for j := 0; j < r.IntN(6); j++ {
			parts = append(parts, words[r.IntN(len(words))])
		}
		at := r.IntN(len(parts) + 1)
		parts = append(parts[:at], append([]string{"volume up"}, parts[at:]...)...)
		text := strings.Join(parts, " ")

		rec := &recorder{}
		if _, err := NewInterpreter(nil, rec).Interpret(context.Background(), text); err != nil {
			t.Fatalf("%q: %v", text, err)
		}
		if len(rec.calls) != 1 || rec.count(VolumeUp) != 1 {
			t.Fatalf("%q: actions %v, want exactly one volume_up", text, rec.calls)
		}
	}
}

func TestInterpretExecutorError(t *testing.T) {
	rec := &recorder{err: errors.New("pactl missing")}
	out, err := NewInterpreter(nil, rec).Interpret(context.Background(), "mute")
	if err == nil {
		t.Fatal("executor error swallowed")
	}
	if !out.Matched || out.Rule != "mute" {
		t.Fatalf("outcome = %+v", out)
	}
}

type stubFallback struct {
	name string
	err  error
	seen []string
}

func (s *stubFallback) Classify(_ context.Context, text string, rules []string) (string, error) {
	s.seen = append(s.seen, text)
	return s.name, s.err
}

func TestInterpretFallback(t *testing.T) {
	t.Run("names a rule", func(t *testing.T) {
		rec := &recorder{}
		fb := &stubFallback{name: "brightness_up"}
		out, err := NewInterpreter(nil, rec).WithFallback(fb).Interpret(context.Background(), "it is too dark in here")
		if err != nil {
			t.Fatal(err)
		}
		if !out.ViaLLM || rec.count(BrightnessUp) != 1 {
			t.Fatalf("outcome %+v, calls %v", out, rec.calls)
		}
	})

	t.Run("unknown name", func(t *testing.T) {
		rec := &recorder{}
		fb := &stubFallback{name: "make_coffee"}
		if _, err := NewInterpreter(nil, rec).WithFallback(fb).Interpret(context.Background(), "coffee"); !errors.Is(err, ErrNoMatch) {
			t.Fatalf("err = %v", err)
		}
		if len(rec.calls) != 0 {
			t.Fatalf("calls %v", rec.calls)
		}
	})

	t.Run("not consulted on table match", func(t *testing.T) {
		fb := &stubFallback{name: "exit"}
		if _, err := NewInterpreter(nil, &recorder{}).WithFallback(fb).Interpret(context.Background(), "mute"); err != nil {
			t.Fatal(err)
		}
		if len(fb.seen) != 0 {
			t.Fatalf("fallback consulted for %v", fb.seen)
		}
	})

	t.Run("error", func(t *testing.T) {
		fb := &stubFallback{err: errors.New("timeout")}
		if _, err := NewInterpreter(nil, &recorder{}).WithFallback(fb).Interpret(context.Background(), "hmm"); !errors.Is(err, ErrNoMatch) {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestShadows(t *testing.T) {
	table := Table{
		{Name: "volume", Action: VolumeUp, Phrases: []string{"volume"}},
		{Name: "volume_down", Action: VolumeDown, Phrases: []string{"volume down"}},
	}

	sh := table.Shadows()
	if len(sh) != 1 || sh[0].Rule != "volume_down" || sh[0].By != "volume" {
		t.Fatalf("Shadows = %+v", sh)
	}
	if err := table.Validate(); err == nil {
		t.Fatal("Validate accepted shadowed table")
	}
}

func TestValidateStructure(t *testing.T) {
	tests := []struct {
		name  string
		table Table
	}{
		{"empty name", Table{{Action: Mute, Phrases: []string{"mute"}}}},
		{"duplicate", Table{{Name: "a", Action: Mute, Phrases: []string{"x"}}, {Name: "a", Action: Exit, Phrases: []string{"y"}}}},
		{"no action", Table{{Name: "a", Phrases: []string{"x"}}}},
		{"launch without app", Table{{Name: "a", Action: Launch, Phrases: []string{"x"}}}},
		{"no phrases", Table{{Name: "a", Action: Mute}}},
		{"uppercase phrase", Table{{Name: "a", Action: Mute, Phrases: []string{"Mute"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.table.Validate(); err == nil {
				t.Fatal("Validate accepted invalid table")
			}
		})
	}
}

func TestLoadTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	body := `
rules:
  - name: shot
    action: screenshot
    phrases: ["capture screen", "screenshot"]
    reply: Got it
  - name: editor
    action: launch
    app: notepad
    phrases: ["open editor"]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	table, err := LoadTable(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(table) != 2 || table[0].Action != Screenshot || table[1].App != "notepad" {
		t.Fatalf("table = %+v", table)
	}

	rec := &recorder{}
	if _, err := NewInterpreter(table, rec).Interpret(context.Background(), "Open Editor"); err != nil {
		t.Fatal(err)
	}
	if rec.calls[0] != (Action{Kind: Launch, App: "notepad"}) {
		t.Fatalf("calls = %v", rec.calls)
	}
}

func TestParseTableErrors(t *testing.T) {
	for name, body := range map[string]string{
		"bad action": "rules:\n  - name: a\n    action: dance\n    phrases: [x]\n",
		"empty":      "rules: []\n",
		"not yaml":   "rules: [",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseTable([]byte(body)); err == nil {
				t.Fatal("ParseTable accepted bad input")
			}
		})
	}
}
