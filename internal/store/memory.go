package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory keeps brackets for the life of the process. Used when no database
// is configured.
type Memory struct {
	mu       sync.RWMutex
	brackets map[uuid.UUID]Bracket
}

func NewMemory() *Memory {
	return &Memory{brackets: make(map[uuid.UUID]Bracket)}
}

func (m *Memory) CreateBracket(_ context.Context, players [4]string) (uuid.UUID, error) {
	b := Bracket{
		ID:        uuid.New(),
		Player1:   players[0],
		Player2:   players[1],
		Player3:   players[2],
		Player4:   players[3],
		CreatedAt: time.Now(),
	}
	m.mu.Lock()
	m.brackets[b.ID] = b
	m.mu.Unlock()
	return b.ID, nil
}

func (m *Memory) GetBracket(_ context.Context, id uuid.UUID) (Bracket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.brackets[id]
	if !ok {
		return Bracket{}, ErrBracketNotFound
	}
	return b, nil
}

func (m *Memory) RecordWinner(_ context.Context, id uuid.UUID, matchNumber int, nickname string) error {
	if _, err := winnerColumn(matchNumber); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.brackets[id]
	if !ok {
		return ErrBracketNotFound
	}
	w := nickname
	if matchNumber == 1 {
		b.Winner1 = &w
	} else {
		b.Winner2 = &w
	}
	m.brackets[id] = b
	return nil
}

func (m *Memory) Close() error { return nil }
