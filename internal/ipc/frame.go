package ipc

import (
	"strings"

	"eva/pkg/protocol"
)

// FrameNoun is the noun hub frames use to address the assistant, as in
// EVA:TOGGLE:ASSISTANT:HOST.
const FrameNoun = "ASSISTANT"

// FromFrame turns a hub frame into a control message. Frames with another
// noun or an unknown verb are not for us.
func FromFrame(m *protocol.Message) (ControlMessage, bool) {
	if m.Noun != FrameNoun {
		return ControlMessage{}, false
	}

	cmd := strings.ToLower(m.Verb)
	switch cmd {
	case CmdStart, CmdStop, CmdToggle, CmdStatus:
		return ControlMessage{Cmd: cmd}, true
	case CmdSay:
		return ControlMessage{Cmd: cmd, Arg: strings.Join(m.Args, " ")}, true
	}
	return ControlMessage{}, false
}

// ToFrame answers a hub frame with the daemon's reply. Status flags travel
// as RUNNING/STOPPED followed by the enabled modalities.
func ToFrame(m *protocol.Message, r Reply) protocol.Message {
	if !r.OK {
		reason := strings.ToUpper(strings.ReplaceAll(r.Error, " ", "_"))
		return m.Reply(false, tokenize(reason))
	}

	if r.Status == nil {
		return m.Reply(true, FrameNoun)
	}

	args := []string{strings.ToUpper(r.Status.String())}
	if r.Status.Gesture {
		args = append(args, "GESTURE")
	}
	if r.Status.Speech {
		args = append(args, "SPEECH")
	}
	if r.Status.Object {
		args = append(args, "OBJECT")
	}
	return m.Reply(true, FrameNoun, args...)
}

func tokenize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "FAILED"
	}
	return b.String()
}
