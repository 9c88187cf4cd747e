package command

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule binds trigger phrases to one action. Phrases are lowercase substrings.
type Rule struct {
	Name    string     `yaml:"name"`
	Action  ActionKind `yaml:"action"`
	App     string     `yaml:"app,omitempty"`
	Phrases []string   `yaml:"phrases"`
	Reply   string     `yaml:"reply,omitempty"`
}

func (r Rule) Act() Action {
	return Action{Kind: r.Action, App: r.App}
}

// Table is an ordered rule list. Rules are tried top to bottom and the first
// rule owning a phrase found in the input wins; position is the priority.
type Table []Rule

func DefaultTable() Table {
	return Table{
		{Name: "volume_up", Action: VolumeUp, Phrases: []string{"volume up", "increase volume"}, Reply: "Volume increased"},
		{Name: "volume_down", Action: VolumeDown, Phrases: []string{"volume down", "decrease volume"}, Reply: "Volume decreased"},
		{Name: "mute", Action: Mute, Phrases: []string{"mute", "unmute"}, Reply: "Volume toggled"},
		{Name: "brightness_up", Action: BrightnessUp, Phrases: []string{"brightness up", "increase brightness"}, Reply: "Brightness increased"},
		{Name: "brightness_down", Action: BrightnessDown, Phrases: []string{"brightness down", "decrease brightness"}, Reply: "Brightness decreased"},
		{Name: "screenshot", Action: Screenshot, Phrases: []string{"screenshot", "take screenshot"}, Reply: "Screenshot taken"},
		{Name: "open_notepad", Action: Launch, App: "notepad", Phrases: []string{"open notepad"}, Reply: "Notepad opened"},
		{Name: "open_calculator", Action: Launch, App: "calculator", Phrases: []string{"open calculator"}, Reply: "Calculator opened"},
		{Name: "exit", Action: Exit, Phrases: []string{"close", "exit"}, Reply: "Goodbye!"},
	}
}

// Match returns the first rule with a phrase contained in text and the phrase
// that fired. text must already be lowercase.
func (t Table) Match(text string) (Rule, string, bool) {
	for _, r := range t {
		for _, p := range r.Phrases {
			if strings.Contains(text, p) {
				return r, p, true
			}
		}
	}
	return Rule{}, "", false
}

func (t Table) Lookup(name string) (Rule, bool) {
	for _, r := range t {
		if r.Name == name {
			return r, true
		}
	}
	return Rule{}, false
}

func (t Table) Names() []string {
	names := make([]string, len(t))
	for i, r := range t {
		names[i] = r.Name
	}
	return names
}

// Shadow records a phrase that can never fire because an earlier rule owns a
// substring of it.
type Shadow struct {
	Rule   string
	Phrase string
	By     string
	ByRule string
}

func (s Shadow) String() string {
	return fmt.Sprintf("%s: phrase %q is shadowed by %q of rule %s", s.Rule, s.Phrase, s.By, s.ByRule)
}

// Shadows lists phrases made unreachable by table order.
func (t Table) Shadows() []Shadow {
	var out []Shadow
	for i, r := range t {
		for _, p := range r.Phrases {
			for _, prev := range t[:i] {
				if by, ok := containedPhrase(p, prev.Phrases); ok {
					out = append(out, Shadow{Rule: r.Name, Phrase: p, By: by, ByRule: prev.Name})
					break
				}
			}
		}
	}
	return out
}

func containedPhrase(p string, phrases []string) (string, bool) {
	for _, q := range phrases {
		if strings.Contains(p, q) {
			return q, true
		}
	}
	return "", false
}

// Validate checks structure and reports shadowed phrases as an error.
func (t Table) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(t))

	for i, r := range t {
		if r.Name == "" {
			errs = append(errs, fmt.Errorf("rule %d: empty name", i))
		}
		if seen[r.Name] {
			errs = append(errs, fmt.Errorf("rule %s: duplicate name", r.Name))
		}
		seen[r.Name] = true

		if r.Action == 0 {
			errs = append(errs, fmt.Errorf("rule %s: missing action", r.Name))
		}
		if r.Action == Launch && r.App == "" {
			errs = append(errs, fmt.Errorf("rule %s: launch without app", r.Name))
		}
		if len(r.Phrases) == 0 {
			errs = append(errs, fmt.Errorf("rule %s: no phrases", r.Name))
		}
		for _, p := range r.Phrases {
			if p == "" || p != strings.ToLower(p) {
				errs = append(errs, fmt.Errorf("rule %s: phrase %q must be non-empty lowercase", r.Name, p))
			}
		}
	}

	for _, s := range t.Shadows() {
		errs = append(errs, errors.New(s.String()))
	}

	return errors.Join(errs...)
}

type tableFile struct {
	Rules Table `yaml:"rules"`
}

// LoadTable reads a YAML rule file.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return ParseTable(data)
}

func ParseTable(data []byte) (Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, errors.New("rules file has no rules")
	}
	if err := f.Rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}
	return f.Rules, nil
}
