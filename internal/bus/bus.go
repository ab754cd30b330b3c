// Package bus is the in-process Broadcast Bus: named topics whose current
// members receive every message published to the topic.
package bus

import (
	"sync"

	"github.com/DoyleJ11/pong-matchmaking/internal/conn"
	"github.com/DoyleJ11/pong-matchmaking/pkg/types"
	"go.uber.org/zap"
)

// Unauthenticated holds every waiting-endpoint connection that has not yet
// presented a valid token.
const Unauthenticated = "unauthenticated"

type Bus interface {
	Join(topic string, c conn.Conn)
	Leave(topic string, connID string)
	Publish(topic string, msg types.Outbound) int
	Count(topic string) int
}

type Memory struct {
	mu     sync.RWMutex
	topics map[string]map[string]conn.Conn // topic -> connID -> conn
	logger *zap.Logger
}

func NewMemory(logger *zap.Logger) *Memory {
	return &Memory{
		topics: make(map[string]map[string]conn.Conn),
		logger: logger,
	}
}

func (b *Memory) Join(topic string, c conn.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	members := b.topics[topic]
	if members == nil {
		members = make(map[string]conn.Conn)
		b.topics[topic] = members
	}
	members[c.ID()] = c
}

func (b *Memory) Leave(topic string, connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	members, ok := b.topics[topic]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(b.topics, topic)
	}
}

// Publish hands msg to every member and returns how many accepted it.
func (b *Memory) Publish(topic string, msg types.Outbound) int {
	b.mu.RLock()
	members := make([]conn.Conn, 0, len(b.topics[topic]))
	for _, c := range b.topics[topic] {
		members = append(members, c)
	}
	b.mu.RUnlock()

	delivered := 0
	for _, c := range members {
		if err := c.Send(msg); err != nil {
			b.logger.Debug("publish skipped member",
				zap.String("topic", topic),
				zap.String("conn_id", c.ID()),
				zap.Error(err))
			continue
		}
		delivered++
	}
	return delivered
}

func (b *Memory) Count(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}
