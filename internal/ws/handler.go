// Package ws serves the waiting and session endpoints over websockets.
package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/DoyleJ11/pong-matchmaking/internal/auth"
	"github.com/DoyleJ11/pong-matchmaking/internal/conn"
	"github.com/DoyleJ11/pong-matchmaking/internal/matchmaking"
	"github.com/DoyleJ11/pong-matchmaking/internal/session"
	"github.com/DoyleJ11/pong-matchmaking/pkg/types"
	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Options struct {
	// OriginPatterns is passed to websocket.Accept; empty means same origin.
	OriginPatterns []string
	// AuthTimeout bounds the wait for the first message on waiting endpoints.
	AuthTimeout time.Duration
}

// accept upgrades the request and starts the writer. The returned stop
// ends the writer and drops the socket; callers that need a queued close
// delivered wait on Done first.
func accept(w http.ResponseWriter, r *http.Request, opts Options, after closeAfter, logger *zap.Logger) (*Conn, func(), error) {
	wsc, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: opts.OriginPatterns})
	if err != nil {
		return nil, nil, err
	}
	c := newConn(wsc, after, logger)

	writeCtx, writeCancel := context.WithCancel(r.Context())
	go c.writeLoop(writeCtx)

	stop := func() {
		writeCancel()
		<-c.Done()
		_ = wsc.CloseNow()
	}
	return c, stop, nil
}

// WaitingHandler serves /ws/random and /ws/tournament: authenticate on the
// first message, queue, and hang up once the match announcement is written.
func WaitingHandler(gate *auth.Gate, q matchmaking.Queue, opts Options, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, stop, err := accept(w, r, opts, closeOnAnnouncement, logger)
		if err != nil {
			logger.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer stop()
		log := c.logger

		gate.Open(c)
		defer gate.Release(c)

		// A read deadline would tear the socket down before the close frame
		// could be written, so the timeout goes through the writer instead.
		ctx := r.Context()
		timer := time.AfterFunc(opts.AuthTimeout, func() {
			log.Info("no token before auth timeout")
			c.Close(conn.MissingToken)
		})
		_, data, err := c.ws.Read(ctx)
		timer.Stop()
		if err != nil {
			return
		}

		id, err := gate.Authenticate(ctx, c, types.Decode(data))
		if err != nil {
			<-c.Done()
			return
		}

		defer q.Leave(c.ID())
		if err := q.Join(ctx, matchmaking.Entrant{Conn: c, Identity: id}); err != nil {
			// Still queued; a later arrival retries formation until the
			// batch is dropped as failed.
			log.Warn("queued without a match", zap.Error(err))
		}

		// Nothing more is expected from the client; read until it or the
		// writer hangs up.
		for {
			if _, _, err := c.ws.Read(ctx); err != nil {
				return
			}
		}
	}
}

// SessionHandler serves /ws/game/{room_id}.
func SessionHandler(reg *session.Registry, verifier auth.Verifier, opts Options, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "room_id")
		if _, err := uuid.Parse(roomID); err != nil {
			http.Error(w, "invalid room id", http.StatusBadRequest)
			return
		}

		c, stop, err := accept(w, r, opts, closeOnTerminal, logger.With(zap.String("room_id", roomID)))
		if err != nil {
			logger.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer stop()
		log := c.logger
		ctx := r.Context()

		room, slot, err := reg.Join(ctx, roomID, c)
		if err != nil {
			if !errors.Is(err, session.ErrRoomFull) {
				log.Warn("join failed", zap.Error(err))
				c.Close(conn.NormalEnd)
			}
			<-c.Done()
			return
		}
		log.Debug("joined room", zap.Int("slot", slot))
		defer room.Post(session.Disconnect{ConnID: c.ID()})

		for {
			_, data, err := c.ws.Read(ctx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("read ended", zap.Error(err))
				}
				return
			}

			var m session.Msg
			switch in := types.Decode(data).(type) {
			case types.AuthToken:
				id, err := verifier.Verify(ctx, in.Token)
				if err != nil {
					log.Info("session token rejected", zap.Error(err))
					m = session.Unauthorized{ConnID: c.ID()}
				} else {
					m = session.Authenticated{ConnID: c.ID(), Identity: id}
				}
			case types.MoveCommand:
				m = session.MoveInput{ConnID: c.ID(), Move: in.Move}
			default:
				m = session.Unrecognized{ConnID: c.ID()}
			}
			if !room.Post(m) {
				return
			}
		}
	}
}
