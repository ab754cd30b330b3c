package types

import (
	"encoding/json"
)

// Client -> Server
// AuthToken (waiting endpoints, session auth phase):
//   token: string
//
// MoveCommand (session play phase):
//   move: "up" | "down" | "stop"

// Server -> Client
// MatchAnnouncement:
//   room_id: uuid
//   user_nicknames: string[]
//   player: number
//   match_number: number   // tournament only
//   bracket_id: uuid       // tournament only
//
// SystemMessage:
//   message: "Someone Unauthorized" | "Game End" | "Match Timeout"
//   winner: string         // Game End only
//   score: number[]        // Game End only
//
// GameStatus: opaque arena snapshot, relayed verbatim
//
// Error:
//   error: "Invalid token" | "Full Room" | "Match Failed"

type Move string

const (
	MoveUp   Move = "up"
	MoveDown Move = "down"
	MoveStop Move = "stop"
)

const (
	MsgSomeoneUnauthorized = "Someone Unauthorized"
	MsgGameEnd             = "Game End"
	MsgMatchTimeout        = "Match Timeout"

	ErrTextInvalidToken = "Invalid token"
	ErrTextFullRoom     = "Full Room"
	ErrTextMatchFailed  = "Match Failed"
)

// Inbound is the closed set of client message variants.
type Inbound interface{ isInbound() }

type AuthToken struct {
	Token string
}

type MoveCommand struct {
	Move Move
}

// Unrecognized is anything that is neither a token nor a valid move.
type Unrecognized struct{}

func (AuthToken) isInbound()    {}
func (MoveCommand) isInbound()  {}
func (Unrecognized) isInbound() {}

type clientMessage struct {
	Token json.RawMessage `json:"token"`
	Move  json.RawMessage `json:"move"`
}

// Decode classifies a raw client frame. It never fails: anything it cannot
// make sense of is Unrecognized. A token key holding something other than a
// string is still a token attempt and decodes to an empty AuthToken, which
// no verifier accepts.
func Decode(data []byte) Inbound {
	var cm clientMessage
	if err := json.Unmarshal(data, &cm); err != nil {
		return Unrecognized{}
	}
	if cm.Token != nil {
		var tok string
		if err := json.Unmarshal(cm.Token, &tok); err != nil {
			return AuthToken{}
		}
		return AuthToken{Token: tok}
	}
	if cm.Move != nil {
		var mv string
		if err := json.Unmarshal(cm.Move, &mv); err != nil {
			return Unrecognized{}
		}
		switch m := Move(mv); m {
		case MoveUp, MoveDown, MoveStop:
			return MoveCommand{Move: m}
		}
	}
	return Unrecognized{}
}

// Outbound is the closed set of server message variants.
type Outbound interface{ isOutbound() }

type MatchAnnouncement struct {
	RoomID        string   `json:"room_id"`
	UserNicknames []string `json:"user_nicknames"`
	Player        int      `json:"player"`
	MatchNumber   int      `json:"match_number,omitempty"`
	BracketID     string   `json:"bracket_id,omitempty"`
}

type SystemMessage struct {
	Message string `json:"message"`
	Winner  string `json:"winner,omitempty"`
	Score   []int  `json:"score,omitempty"`
}

// Terminal reports whether the room is finished once this message is relayed.
func (m SystemMessage) Terminal() bool {
	return m.Message == MsgGameEnd || m.Message == MsgMatchTimeout
}

// GameStatus carries an arena snapshot that is written to clients untouched.
type GameStatus struct {
	Payload json.RawMessage
}

func (g GameStatus) MarshalJSON() ([]byte, error) {
	if len(g.Payload) == 0 {
		return []byte("null"), nil
	}
	return g.Payload, nil
}

type ErrorMessage struct {
	Error string `json:"error"`
}

func (MatchAnnouncement) isOutbound() {}
func (SystemMessage) isOutbound()     {}
func (GameStatus) isOutbound()        {}
func (ErrorMessage) isOutbound()      {}
