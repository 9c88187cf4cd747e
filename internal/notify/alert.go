package notify

import (
	"context"
	"fmt"
	log "log/slog"

	"eva/internal/osctl"
)

// Alerter reports failures the user should see even without a terminal.
type Alerter struct {
	run osctl.Runner
}

func NewAlerter(run osctl.Runner) *Alerter {
	if run == nil {
		run = osctl.ExecRunner{}
	}
	return &Alerter{run: run}
}

// Error shows a critical desktop notification. It falls back to the log
// when no notification daemon is reachable.
func (a *Alerter) Error(ctx context.Context, title string, err error) {
	log.Error(title, "err", err)

	body := fmt.Sprint(err)
	if rerr := a.run.Run(ctx, "notify-send", "-u", "critical", "-a", "eva", title, body); rerr != nil {
		log.Debug("notify-send unavailable", "err", rerr)
	}
}
