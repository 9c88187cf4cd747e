package display

import (
	"context"
	"encoding/json"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type BusMessage struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Kind    string `json:"kind"`
	Content View   `json:"content"`
}

// Bus publishes every changed view to a websocket hub.
type Bus struct {
	mu   sync.Mutex
	conn *websocket.Conn
	from string
	last View
	sent bool
}

func DialBus(ctx context.Context, url, from string) (*Bus, error) {
	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := d.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial bus %s: %w", url, err)
	}

	log.Info("Connected to bus", "url", url)
	return &Bus{conn: conn, from: from}, nil
}

func (b *Bus) Render(v View) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sent && v == b.last {
		return nil
	}

	data, err := json.Marshal(BusMessage{From: b.from, To: "ALL", Kind: "view", Content: v})
	if err != nil {
		return err
	}

	b.conn.SetWriteDeadline(time.Now().Add(time.Second))
	if err := b.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("publish view: %w", err)
	}

	b.last, b.sent = v, true
	return nil
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return b.conn.Close()
}
