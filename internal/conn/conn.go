// Package conn defines the transport-neutral connection contract shared by
// the auth gate, the match queues and the session rooms.
package conn

import (
	"errors"

	"github.com/DoyleJ11/pong-matchmaking/pkg/types"
)

var ErrClosed = errors.New("connection closed")

type CloseReason int

const (
	NormalEnd CloseReason = iota
	MatchFound
	MissingToken
	InvalidToken
	FullRoom
	Timeout
	MatchFailed
)

func (r CloseReason) String() string {
	switch r {
	case NormalEnd:
		return "game end"
	case MatchFound:
		return "match found"
	case MissingToken:
		return "missing token"
	case InvalidToken:
		return "invalid token"
	case FullRoom:
		return "full room"
	case Timeout:
		return "timeout"
	case MatchFailed:
		return "match failed"
	default:
		return "unknown"
	}
}

// Conn is one client connection. Send and Close never block; messages are
// written in the order they were handed over and a Close is applied after
// everything sent before it.
type Conn interface {
	ID() string
	Send(msg types.Outbound) error
	Close(reason CloseReason)
}
