package command

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
)

var ErrNoMatch = errors.New("no command matched")

// Fallback names a rule for text the table could not match, or returns ""
// when it cannot decide either.
type Fallback interface {
	Classify(ctx context.Context, text string, rules []string) (string, error)
}

type Outcome struct {
	Rule    string
	Phrase  string
	Action  Action
	Result  Result
	Reply   string
	ViaLLM  bool
	Matched bool
}

type Interpreter struct {
	table    Table
	exec     Executor
	fallback Fallback
}

func NewInterpreter(table Table, exec Executor) *Interpreter {
	if table == nil {
		table = DefaultTable()
	}
	return &Interpreter{table: table, exec: exec}
}

func (in *Interpreter) WithFallback(f Fallback) *Interpreter {
	in.fallback = f
	return in
}

func (in *Interpreter) Table() Table {
	return in.table
}

// Interpret runs at most one action for text.
func (in *Interpreter) Interpret(ctx context.Context, text string) (Outcome, error) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return Outcome{}, ErrNoMatch
	}

	rule, phrase, ok := in.table.Match(text)
	viaLLM := false

	if !ok && in.fallback != nil {
		name, err := in.fallback.Classify(ctx, text, in.table.Names())
		if err != nil {
			log.Warn("Fallback classifier failed", "text", text, "err", err)
		} else if r, found := in.table.Lookup(name); found {
			rule, ok, viaLLM = r, true, true
		}
	}

	if !ok {
		return Outcome{}, ErrNoMatch
	}

	out := Outcome{
		Rule:    rule.Name,
		Phrase:  phrase,
		Action:  rule.Act(),
		Reply:   rule.Reply,
		ViaLLM:  viaLLM,
		Matched: true,
	}

	res, err := in.exec.Execute(ctx, out.Action)
	if err != nil {
		return out, fmt.Errorf("%s: %w", rule.Name, err)
	}
	out.Result = res

	msg := rule.Reply
	if msg == "" {
		msg = "Command executed"
	}
	log.Info(msg, "rule", rule.Name, "action", out.Action.String(), "llm", viaLLM)

	return out, nil
}
