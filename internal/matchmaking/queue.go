// Package matchmaking buffers authenticated connections until a batch is
// complete and then fans the batch out into session rooms.
package matchmaking

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/DoyleJ11/pong-matchmaking/internal/auth"
	"github.com/DoyleJ11/pong-matchmaking/internal/conn"
	"github.com/DoyleJ11/pong-matchmaking/pkg/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrBracketPersist = errors.New("bracket persist failed")

type Entrant struct {
	Conn     conn.Conn
	Identity auth.Identity
}

type Queue interface {
	Join(ctx context.Context, e Entrant) error
	Leave(connID string)
	Len() int
}

// formFunc receives a complete batch in arrival order. An error leaves the
// batch queued for the next arrival to retry.
type formFunc func(ctx context.Context, batch []Entrant) error

// maxFormAttempts bounds how often the same head batch is retried before it
// is told the match failed and dropped, so later arrivals get their turn.
const maxFormAttempts = 3

// queue is the shared core of both variants. Insert, threshold check and
// removal happen under one lock so a batch forms exactly once.
type queue struct {
	mu      sync.Mutex
	size    int
	order   []string // connection ids, arrival order
	entries map[string]Entrant
	form    formFunc
	newID   func() string
	logger  *zap.Logger

	failedHead string // ids of the batch that last failed to form
	failures   int
}

func newQueue(size int, logger *zap.Logger) *queue {
	return &queue{
		size:    size,
		entries: make(map[string]Entrant),
		newID:   uuid.NewString,
		logger:  logger,
	}
}

// Join inserts or refreshes the entrant. Re-joining with the same connection
// keeps the original position. The returned error means a complete batch is
// still waiting on a retry.
func (q *queue) Join(ctx context.Context, e Entrant) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := e.Conn.ID()
	if _, ok := q.entries[id]; !ok {
		q.order = append(q.order, id)
	}
	q.entries[id] = e

	var formErr error
	for len(q.order) >= q.size {
		batch := make([]Entrant, q.size)
		for i, id := range q.order[:q.size] {
			batch[i] = q.entries[id]
		}
		err := q.form(ctx, batch)
		if err == nil {
			q.failedHead, q.failures = "", 0
			q.popHead()
			continue
		}

		formErr = err
		head := strings.Join(q.order[:q.size], ",")
		if head != q.failedHead {
			q.failedHead, q.failures = head, 0
		}
		q.failures++
		q.logger.Error("match formation failed",
			zap.Int("queued", len(q.order)),
			zap.Int("attempt", q.failures),
			zap.Error(err))
		if q.failures < maxFormAttempts {
			return formErr
		}

		q.logger.Warn("dropping batch that keeps failing to form", zap.Strings("players", nicknames(batch)))
		for _, e := range batch {
			_ = e.Conn.Send(types.ErrorMessage{Error: types.ErrTextMatchFailed})
			e.Conn.Close(conn.MatchFailed)
		}
		q.failedHead, q.failures = "", 0
		q.popHead()
		formErr = nil
	}
	return formErr
}

// popHead removes the first batch. Callers hold mu.
func (q *queue) popHead() {
	for _, id := range q.order[:q.size] {
		delete(q.entries, id)
	}
	q.order = append([]string(nil), q.order[q.size:]...)
}

func (q *queue) Leave(connID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.entries[connID]; !ok {
		return
	}
	delete(q.entries, connID)
	for i, id := range q.order {
		if id == connID {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}

func (q *queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}

func nicknames(batch []Entrant) []string {
	out := make([]string, len(batch))
	for i, e := range batch {
		out[i] = e.Identity.Nickname
	}
	return out
}
