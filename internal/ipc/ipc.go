// Package ipc is the local control channel between eva-ctl and the daemon:
// one JSON request and one JSON reply per unix socket connection.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"os"
	"time"

	"eva/internal/display"
)

const SocketPath = "/tmp/eva.sock"

// Commands understood by the daemon.
const (
	CmdStart  = "start"
	CmdStop   = "stop"
	CmdToggle = "toggle"
	CmdStatus = "status"
	CmdSay    = "say"
	CmdFeed   = "feed"
	CmdQuit   = "quit"
)

type ControlMessage struct {
	Cmd string `json:"cmd"`
	Arg string `json:"arg,omitempty"`
}

type Reply struct {
	OK     bool            `json:"ok"`
	Status *display.Status `json:"status,omitempty"`
	Text   string          `json:"text,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func Fail(err error) Reply {
	return Reply{Error: err.Error()}
}

type Handler func(ctx context.Context, msg ControlMessage) Reply

const ioTimeout = 30 * time.Second

// StartServer listens on path until ctx is done. A stale socket file left
// by a previous run is removed first.
func StartServer(ctx context.Context, path string, handler Handler) error {
	if path == "" {
		path = SocketPath
	}
	os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		ln.Close()
		os.Remove(path)
	}()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				log.Warn("Accept failed", "err", err)
				continue
			}
			go handleConn(ctx, conn, handler)
		}
	}()

	return nil
}

func handleConn(ctx context.Context, conn net.Conn, handler Handler) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(ioTimeout))

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		log.Warn("Bad control message", "err", err)
		return
	}
	log.Debug("Control message", "cmd", msg.Cmd, "arg", msg.Arg)

	reply := handler(ctx, msg)
	if err := json.NewEncoder(conn).Encode(reply); err != nil {
		log.Warn("Failed to send reply", "err", err)
	}
}

// Send delivers one message and waits for the daemon's reply.
func Send(path string, msg ControlMessage) (Reply, error) {
	if path == "" {
		path = SocketPath
	}

	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return Reply{}, err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(ioTimeout))

	if err := json.NewEncoder(conn).Encode(msg); err != nil {
		return Reply{}, fmt.Errorf("send: %w", err)
	}

	var reply Reply
	if err := json.NewDecoder(conn).Decode(&reply); err != nil {
		return Reply{}, fmt.Errorf("read reply: %w", err)
	}
	return reply, nil
}
