package hostdriver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Time allowed to write a message to the host bridge.
const writeWait = 10 * time.Second

// call is the envelope sent to the host bridge for a script execution.
type call struct {
	ID     uint64 `json:"id"`
	Script string `json:"script"`
	Args   []any  `json:"args"`
}

type callResult struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error,omitempty"`
}

// WSDriver drives a game-host session over a websocket bridge.
//
// Execute, Players and Chat are suspension points (spec §5): they write to
// the socket and wait on a reply channel. DrainChatMessages only reads the
// chat lines the read pump has already buffered.
type WSDriver struct {
	conn *websocket.Conn

	mu       sync.Mutex
	nextID   uint64
	pending  map[uint64]chan callResult
	chatBuf  []string
	closed   bool
}

// NewWSDriver wraps an already-established websocket connection to a game
// host bridge and starts its read pump.
func NewWSDriver(conn *websocket.Conn) *WSDriver {
	d := &WSDriver{
		conn:    conn,
		pending: make(map[uint64]chan callResult),
	}
	go d.readPump()
	return d
}

func (d *WSDriver) readPump() {
	for {
		var env struct {
			Type string          `json:"type"`
			Body json.RawMessage `json:"body"`
		}
		if err := d.conn.ReadJSON(&env); err != nil {
			d.mu.Lock()
			d.closed = true
			for _, ch := range d.pending {
				close(ch)
			}
			d.pending = nil
			d.mu.Unlock()
			return
		}

		switch env.Type {
		case "result":
			var res callResult
			if err := json.Unmarshal(env.Body, &res); err != nil {
				continue
			}
			d.mu.Lock()
			ch, ok := d.pending[res.ID]
			if ok {
				delete(d.pending, res.ID)
			}
			d.mu.Unlock()
			if ok {
				ch <- res
			}
		case "chat":
			var lines []string
			if err := json.Unmarshal(env.Body, &lines); err != nil {
				continue
			}
			d.mu.Lock()
			d.chatBuf = append(d.chatBuf, lines...)
			d.mu.Unlock()
		}
	}
}

func (d *WSDriver) Execute(ctx context.Context, script string, args ...any) (any, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, fmt.Errorf("hostdriver: connection closed")
	}
	d.nextID++
	id := d.nextID
	ch := make(chan callResult, 1)
	d.pending[id] = ch
	d.mu.Unlock()

	d.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := d.conn.WriteJSON(call{ID: id, Script: script, Args: args}); err != nil {
		d.mu.Lock()
		delete(d.pending, id)
		d.mu.Unlock()
		return nil, fmt.Errorf("hostdriver: execute %s: %w", script, err)
	}

	select {
	case res, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("hostdriver: connection closed while waiting for %s", script)
		}
		if res.Error != "" {
			return nil, fmt.Errorf("hostdriver: %s: %s", script, res.Error)
		}
		var out any
		if len(res.Result) > 0 {
			if err := json.Unmarshal(res.Result, &out); err != nil {
				return nil, fmt.Errorf("hostdriver: decode result of %s: %w", script, err)
			}
		}
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *WSDriver) Players(ctx context.Context) ([]SnapshotPlayer, error) {
	out, err := d.Execute(ctx, "getPlayers")
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	var players []SnapshotPlayer
	if err := json.Unmarshal(raw, &players); err != nil {
		return nil, fmt.Errorf("hostdriver: decode players: %w", err)
	}
	return players, nil
}

func (d *WSDriver) DrainChatMessages(ctx context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	lines := d.chatBuf
	d.chatBuf = nil
	return lines, nil
}

func (d *WSDriver) Chat(ctx context.Context, message string) error {
	_, err := d.Execute(ctx, "chatMessage", message)
	return err
}

func (d *WSDriver) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return d.conn.Close()
}
