package main

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"time"

	"eva/internal/assistant"
	"eva/internal/ipc"
	"eva/internal/notify"
	"eva/pkg/audioconv"
	"eva/pkg/protocol"
)

// control answers ipc and hub commands. cue runs each time the assistant
// goes from stopped to running.
func control(a *assistant.Assistant, alert *notify.Alerter, cue, quit func()) ipc.Handler {
	reply := func(err error) ipc.Reply {
		st := a.Status()
		if err != nil {
			return ipc.Reply{Status: &st, Error: err.Error()}
		}
		return ipc.Reply{OK: true, Status: &st}
	}

	return func(ctx context.Context, msg ipc.ControlMessage) ipc.Reply {
		switch msg.Cmd {
		case ipc.CmdStart:
			err := a.Start(ctx)
			switch {
			case err == nil:
				cue()
			case !errors.Is(err, assistant.ErrRunning):
				alert.Error(ctx, "Camera Error", err)
			}
			return reply(err)

		case ipc.CmdStop:
			return reply(a.Stop())

		case ipc.CmdToggle:
			err := a.Toggle(ctx)
			switch {
			case err != nil && !a.Running():
				alert.Error(ctx, "Camera Error", err)
			case err == nil && a.Running():
				cue()
			}
			return reply(err)

		case ipc.CmdStatus:
			return reply(nil)

		case ipc.CmdSay:
			if msg.Arg == "" {
				return ipc.Fail(errors.New("nothing to say"))
			}
			return reply(a.Say(ctx, msg.Arg))

		case ipc.CmdFeed:
			pcm, err := audioconv.DecodeFile(ctx, msg.Arg, 0)
			if err != nil {
				return ipc.Fail(err)
			}
			text, err := a.Feed(ctx, pcm)
			r := reply(err)
			r.Text = text
			return r

		case ipc.CmdQuit:
			log.Info("Quit requested")
			time.AfterFunc(100*time.Millisecond, quit)
			return ipc.Reply{OK: true}
		}

		return ipc.Fail(fmt.Errorf("unknown command %q", msg.Cmd))
	}
}

// serveFrames answers control frames arriving from the hub.
func serveFrames(ctx context.Context, hub *protocol.Protocol, frames <-chan *protocol.Message, handle ipc.Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-frames:
			msg, ok := ipc.FromFrame(m)
			if !ok {
				log.Debug("Ignoring hub frame", "msg", m.String())
				continue
			}

			if err := hub.Send(ipc.ToFrame(m, handle(ctx, msg))); err != nil {
				log.Warn("Failed to answer hub", "to", m.From, "err", err)
			}
		}
	}
}
