// Package store persists tournament brackets.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBracketNotFound = errors.New("bracket not found")
	ErrInvalidMatch    = errors.New("match number must be 1 or 2")
)

// Bracket is one four-player tournament: Player1 v Player2 is match 1,
// Player3 v Player4 is match 2.
type Bracket struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Player1   string    `gorm:"size:64;not null" json:"player1"`
	Player2   string    `gorm:"size:64;not null" json:"player2"`
	Player3   string    `gorm:"size:64;not null" json:"player3"`
	Player4   string    `gorm:"size:64;not null" json:"player4"`
	Winner1   *string   `gorm:"size:64" json:"winner1,omitempty"` // nil until match 1 ends
	Winner2   *string   `gorm:"size:64" json:"winner2,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (Bracket) TableName() string { return "brackets" }

func (b Bracket) Players() [4]string {
	return [4]string{b.Player1, b.Player2, b.Player3, b.Player4}
}

type Brackets interface {
	CreateBracket(ctx context.Context, players [4]string) (uuid.UUID, error)
	GetBracket(ctx context.Context, id uuid.UUID) (Bracket, error)
	RecordWinner(ctx context.Context, id uuid.UUID, matchNumber int, nickname string) error
	Close() error
}

func winnerColumn(matchNumber int) (string, error) {
	switch matchNumber {
	case 1:
		return "winner1", nil
	case 2:
		return "winner2", nil
	default:
		return "", ErrInvalidMatch
	}
}
