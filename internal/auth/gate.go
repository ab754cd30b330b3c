package auth

import (
	"context"
	"errors"

	"github.com/DoyleJ11/pong-matchmaking/internal/bus"
	"github.com/DoyleJ11/pong-matchmaking/internal/conn"
	"github.com/DoyleJ11/pong-matchmaking/pkg/types"
	"go.uber.org/zap"
)

// Gate admits waiting-endpoint connections. A connection sits in the
// unauthenticated topic from Open until it either authenticates or goes away.
type Gate struct {
	bus      bus.Bus
	verifier Verifier
	logger   *zap.Logger
}

func NewGate(b bus.Bus, v Verifier, logger *zap.Logger) *Gate {
	return &Gate{bus: b, verifier: v, logger: logger}
}

func (g *Gate) Open(c conn.Conn) {
	g.bus.Join(bus.Unauthenticated, c)
}

// Release drops the connection from the unauthenticated topic. Safe to call
// after a successful Authenticate.
func (g *Gate) Release(c conn.Conn) {
	g.bus.Leave(bus.Unauthenticated, c.ID())
}

// Authenticate handles the first inbound message. On failure the connection
// has already been told and closed; the caller just stops.
func (g *Gate) Authenticate(ctx context.Context, c conn.Conn, msg types.Inbound) (Identity, error) {
	log := g.logger.With(zap.String("conn_id", c.ID()))

	tok, ok := msg.(types.AuthToken)
	if !ok {
		log.Info("first message carried no token")
		c.Close(conn.MissingToken)
		return Identity{}, ErrMissingToken
	}

	id, err := g.verifier.Verify(ctx, tok.Token)
	if err != nil {
		log.Info("token rejected", zap.Error(err))
		_ = c.Send(types.ErrorMessage{Error: types.ErrTextInvalidToken})
		c.Close(conn.InvalidToken)
		if !errors.Is(err, ErrInvalidToken) {
			err = errors.Join(ErrInvalidToken, err)
		}
		return Identity{}, err
	}

	g.Release(c)
	log.Debug("authenticated", zap.String("nickname", id.Nickname))
	return id, nil
}
