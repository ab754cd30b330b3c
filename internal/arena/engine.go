// Package arena is the simulation side of a session room. The room only
// talks to it through Engine; the bundled Pong engine is what the server
// binary runs.
package arena

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/DoyleJ11/pong-matchmaking/pkg/types"
)

var (
	ErrUnknownGame   = errors.New("unknown game")
	ErrGameExists    = errors.New("game already exists")
	ErrInvalidSlot   = errors.New("invalid player slot")
	ErrMissingPlayer = errors.New("game needs both players enrolled")
)

type Direction int

const (
	Up   Direction = -1
	Stop Direction = 0
	Down Direction = 1
)

func DirectionOf(m types.Move) Direction {
	switch m {
	case types.MoveUp:
		return Up
	case types.MoveDown:
		return Down
	default:
		return Stop
	}
}

// Relay receives engine output for one room.
type Relay interface {
	GameStatus(payload json.RawMessage)
	SystemMessage(msg types.SystemMessage)
}

type Engine interface {
	CreateGame(roomID string) error
	// EnrollPlayer binds slot 1 or 2 to a connection id.
	EnrollPlayer(roomID string, slot int, connID string) error
	// StartGame runs the game until it ends or ctx is cancelled. Callers run
	// it in its own goroutine.
	StartGame(ctx context.Context, roomID string, nicknames [2]string, relay Relay) error
	SetDirection(roomID, connID string, dir Direction)
	// Forfeit ends a running game in favour of the other player.
	Forfeit(roomID, connID string)
	RemoveGame(roomID string)
}
