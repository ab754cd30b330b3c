package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/DoyleJ11/pong-matchmaking/internal/conn"
	"github.com/DoyleJ11/pong-matchmaking/pkg/types"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	outboxSize   = 128
	writeTimeout = 3 * time.Second
)

// closeAfter reports whether writing msg should be followed by a close.
type closeAfter func(msg types.Outbound) (conn.CloseReason, bool)

type frame struct {
	msg   types.Outbound
	close *conn.CloseReason
}

// Conn adapts a websocket to conn.Conn. A single writer goroutine drains the
// outbox, so frames and the close are written in order.
type Conn struct {
	id     string
	ws     *websocket.Conn
	after  closeAfter
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
	outbox chan frame
	kill   chan struct{}
	done   chan struct{}
}

func newConn(ws *websocket.Conn, after closeAfter, logger *zap.Logger) *Conn {
	id := uuid.NewString()
	return &Conn{
		id:     id,
		ws:     ws,
		after:  after,
		logger: logger.With(zap.String("conn_id", id)),
		outbox: make(chan frame, outboxSize),
		kill:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (c *Conn) ID() string { return c.id }

// Send queues msg. A client too slow to drain its outbox is dropped.
func (c *Conn) Send(msg types.Outbound) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return conn.ErrClosed
	}
	select {
	case c.outbox <- frame{msg: msg}:
		return nil
	default:
		c.logger.Warn("outbox full, dropping slow client")
		c.closed = true
		close(c.kill)
		return conn.ErrClosed
	}
}

func (c *Conn) Close(reason conn.CloseReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	select {
	case c.outbox <- frame{close: &reason}:
	default:
		close(c.kill)
	}
}

// Done is closed once the writer has stopped.
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *Conn) writeLoop(ctx context.Context) {
	defer close(c.done)
	defer c.markClosed()

	for {
		select {
		case <-ctx.Done():
			return

		case <-c.kill:
			_ = c.ws.Close(websocket.StatusPolicyViolation, "slow consumer")
			return

		case f := <-c.outbox:
			if f.close != nil {
				c.closeWith(*f.close)
				return
			}
			payload, err := json.Marshal(f.msg)
			if err != nil {
				c.logger.Error("marshal outbound", zap.Error(err))
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = c.ws.Write(wctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				c.logger.Debug("write failed", zap.Error(err))
				return
			}
			if c.after != nil {
				if reason, ok := c.after(f.msg); ok {
					c.closeWith(reason)
					return
				}
			}
		}
	}
}

func (c *Conn) closeWith(reason conn.CloseReason) {
	c.markClosed()
	code, text := closeStatus(reason)
	c.logger.Debug("closing", zap.Int("code", int(code)), zap.String("reason", text))
	_ = c.ws.Close(code, text)
}

func closeStatus(r conn.CloseReason) (websocket.StatusCode, string) {
	switch r {
	case conn.MissingToken:
		return 4001, r.String()
	case conn.InvalidToken:
		return 4003, r.String()
	case conn.FullRoom:
		return 4004, r.String()
	case conn.Timeout:
		return 4008, r.String()
	case conn.MatchFailed:
		return websocket.StatusInternalError, r.String()
	default:
		return websocket.StatusNormalClosure, r.String()
	}
}

func closeOnAnnouncement(msg types.Outbound) (conn.CloseReason, bool) {
	_, ok := msg.(types.MatchAnnouncement)
	return conn.MatchFound, ok
}

func closeOnTerminal(msg types.Outbound) (conn.CloseReason, bool) {
	sm, ok := msg.(types.SystemMessage)
	if !ok || !sm.Terminal() {
		return 0, false
	}
	if sm.Message == types.MsgMatchTimeout {
		return conn.Timeout, true
	}
	return conn.NormalEnd, true
}
