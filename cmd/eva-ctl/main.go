package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	cli "github.com/spf13/pflag"

	"eva/internal/display"
	"eva/internal/ipc"
	"eva/internal/osctl"
)

const usage = `usage: eva-ctl [--socket PATH] COMMAND [ARG]

commands:
  start | stop | toggle | status
  say TEXT        speak TEXT through the assistant
  feed FILE       recognise an audio file and run its command
  quit            shut the daemon down
  launch NAME     start eva-NAME (demo, check, daemon) next to this binary
`

func main() {
	socket := cli.StringP("socket", "s", ipc.SocketPath, "Control socket path")
	cli.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	cli.Parse()

	args := cli.Args()
	if len(args) == 0 {
		cli.Usage()
		os.Exit(2)
	}

	cmd, rest := args[0], args[1:]
	if cmd == "launch" {
		if err := launch(rest); err != nil {
			fmt.Fprintln(os.Stderr, "launch failed:", err)
			os.Exit(1)
		}
		return
	}

	msg := ipc.ControlMessage{Cmd: cmd, Arg: strings.Join(rest, " ")}
	if cmd == ipc.CmdFeed && msg.Arg != "" {
		abs, err := filepath.Abs(msg.Arg)
		if err == nil {
			msg.Arg = abs
		}
	}

	reply, err := ipc.Send(*socket, msg)
	if err != nil {
		fmt.Println("eva-daemon not running:", err)
		os.Exit(1)
	}

	if reply.Text != "" {
		fmt.Printf("heard: %q\n", reply.Text)
	}
	if reply.Status != nil {
		fmt.Println(describe(*reply.Status))
	}
	if !reply.OK {
		fmt.Println("error:", reply.Error)
		os.Exit(1)
	}
}

func describe(st display.Status) string {
	var on []string
	if st.Gesture {
		on = append(on, "gesture")
	}
	if st.Speech {
		on = append(on, "speech")
	}
	if st.Object {
		on = append(on, "object")
	}
	if len(on) == 0 {
		return st.String()
	}
	return fmt.Sprintf("%s (%s)", st, strings.Join(on, ", "))
}

var launchable = map[string]bool{"demo": true, "check": true, "daemon": true}

func launch(args []string) error {
	if len(args) == 0 || !launchable[args[0]] {
		return fmt.Errorf("want one of demo, check, daemon")
	}

	self, err := os.Executable()
	if err != nil {
		return err
	}
	bin := filepath.Join(filepath.Dir(self), "eva-"+args[0])
	if _, err := os.Stat(bin); err != nil {
		return err
	}

	if err := (osctl.ExecRunner{}).Start(bin, args[1:]...); err != nil {
		return err
	}
	fmt.Println("started", bin)
	return nil
}
