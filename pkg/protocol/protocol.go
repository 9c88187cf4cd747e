package protocol

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Frames are single-line, colon separated: TO:VERB:NOUN[:ARG...]:FROM.

type Config struct {
	Node      string
	Url       string
	Reconnect time.Duration
	Timeout   time.Duration
	// OnUnsolicited receives frames nobody is waiting for.
	OnUnsolicited func(*Message)
}

type Protocol struct {
	ws *WebSocket

	node    string
	timeout time.Duration

	waiterMu sync.Mutex
	waiter   chan *Message

	onUnsolicited func(*Message)
}

var ErrTimeout = errors.New("no reply before timeout")

func Dial(ctx context.Context, cfg Config) (*Protocol, error) {
	if !isToken(cfg.Node) {
		return nil, fmt.Errorf("invalid node name %q", cfg.Node)
	}

	ws, err := DialWebSocket(ctx, cfg.Url, cfg.Reconnect)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Protocol{
		ws:            ws,
		node:          cfg.Node,
		timeout:       timeout,
		onUnsolicited: cfg.OnUnsolicited,
	}, nil
}

func (p *Protocol) Node() string {
	return p.node
}

// Request sends a frame and waits for the next frame addressed to this node.
func (p *Protocol) Request(ctx context.Context, to, verb, noun string, args ...string) (*Message, error) {
	w := p.installWaiter()
	defer p.clearWaiter()

	msg := Message{To: to, Verb: verb, Noun: noun, Args: args}
	if err := p.Send(msg); err != nil {
		return nil, err
	}

	t := time.NewTimer(p.timeout)
	defer t.Stop()

	select {
	case resp := <-w:
		return resp, nil
	case <-t.C:
		return nil, fmt.Errorf("%s %s to %s: %w", verb, noun, to, ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Protocol) Send(m Message) error {
	m.From = p.node
	if err := m.Validate(); err != nil {
		return err
	}

	frame := m.String()
	if err := p.ws.Write([]byte(frame)); err != nil {
		log.Error("Failed to transmit", "msg", frame, "err", err)
		return err
	}
	return nil
}

// Run reads frames until ctx is cancelled, reconnecting when the hub drops.
func (p *Protocol) Run(ctx context.Context) {
	for ctx.Err() == nil {
		in := p.ws.Read()
		switch in.kind {
		case connClosed, readFailed:
			if ctx.Err() != nil {
				return
			}
			if in.kind == readFailed {
				log.Error("Failed to read", "err", in.err)
			}

			// a gorilla connection is unusable after any read error
			log.Warn("Trying to reconnect", "url", p.ws.url)
			if err := p.ws.Reconnect(ctx); err != nil {
				return
			}
			log.Info("Reconnected", "url", p.ws.url)

		case readOK:
			msg, err := Parse(string(in.msg))
			if err != nil {
				log.Warn("Failed to parse", "msg", string(in.msg), "err", err)
				continue
			}
			if msg.To != p.node && msg.To != Broadcast {
				continue
			}

			if w := p.currentWaiter(); w != nil {
				select {
				case w <- msg:
				default:
				}
			} else if p.onUnsolicited != nil {
				p.onUnsolicited(msg)
			}
		}
	}
}

func (p *Protocol) Close() error {
	return p.ws.Close()
}

func (p *Protocol) installWaiter() chan *Message {
	p.waiterMu.Lock()
	defer p.waiterMu.Unlock()
	p.waiter = make(chan *Message, 1)
	return p.waiter
}

func (p *Protocol) clearWaiter() {
	p.waiterMu.Lock()
	defer p.waiterMu.Unlock()
	p.waiter = nil
}

func (p *Protocol) currentWaiter() chan *Message {
	p.waiterMu.Lock()
	defer p.waiterMu.Unlock()
	return p.waiter
}

const Broadcast = "ALL"

var (
	tokenRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
	hexIDRe = regexp.MustCompile(`^[0-9A-F]{2}$`)
)

func isToken(s string) bool {
	return tokenRe.MatchString(s)
}

func isHexID(s string) bool {
	return hexIDRe.MatchString(strings.ToUpper(s))
}

type Message struct {
	To   string
	Verb string
	Noun string
	Args []string
	From string
}

func Parse(line string) (*Message, error) {
	s := strings.TrimSpace(line)
	if s == "" {
		return nil, errors.New("empty message")
	}
	if strings.ContainsAny(s, " \t\r\n") {
		return nil, fmt.Errorf("invalid whitespace present")
	}

	parts := strings.Split(s, ":")
	if len(parts) < 4 {
		return nil, fmt.Errorf("too few fields: got %d, want >= 4", len(parts))
	}

	msg := &Message{
		To:   parts[0],
		Verb: strings.ToUpper(parts[1]),
		Noun: strings.ToUpper(parts[2]),
		Args: append([]string(nil), parts[3:len(parts)-1]...),
		From: parts[len(parts)-1],
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

func (m *Message) Validate() error {
	if !isToken(m.To) && !isHexID(m.To) && m.To != Broadcast {
		return fmt.Errorf("invalid TO token: %q", m.To)
	}
	if !isToken(m.From) && !isHexID(m.From) {
		return fmt.Errorf("invalid FROM token: %q", m.From)
	}
	if !isToken(m.Noun) || !isToken(m.Verb) {
		return fmt.Errorf("invalid NOUN/VERB: %q %q", m.Noun, m.Verb)
	}
	for i, a := range m.Args {
		if !isToken(a) {
			return fmt.Errorf("invalid ARG[%d]: %q", i, a)
		}
	}
	return nil
}

func (m *Message) String() string {
	parts := make([]string, 0, 4+len(m.Args))
	parts = append(parts, m.To, m.Verb, m.Noun)
	parts = append(parts, m.Args...)
	parts = append(parts, m.From)
	return strings.Join(parts, ":")
}

func (m *Message) IsOK() bool {
	return m.Verb == "OK"
}

// Reply builds the answer frame for m.
func (m *Message) Reply(ok bool, reason string, args ...string) Message {
	verb := "ERR"
	if ok {
		verb = "OK"
	}
	return Message{To: m.From, Verb: verb, Noun: reason, Args: args}
}
