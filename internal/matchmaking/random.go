package matchmaking

import (
	"context"

	"github.com/DoyleJ11/pong-matchmaking/pkg/types"
	"go.uber.org/zap"
)

const RandomBatchSize = 2

// RandomMatchQueue pairs the first two arrivals into one room.
type RandomMatchQueue struct {
	*queue
}

func NewRandom(logger *zap.Logger) *RandomMatchQueue {
	q := &RandomMatchQueue{queue: newQueue(RandomBatchSize, logger.Named("random_queue"))}
	q.form = q.formRoom
	return q
}

func (q *RandomMatchQueue) formRoom(_ context.Context, batch []Entrant) error {
	roomID := q.newID()
	names := nicknames(batch)

	for i, e := range batch {
		msg := types.MatchAnnouncement{
			RoomID:        roomID,
			UserNicknames: names,
			Player:        i + 1,
		}
		if err := e.Conn.Send(msg); err != nil {
			q.logger.Warn("announcement not delivered",
				zap.String("room_id", roomID),
				zap.String("conn_id", e.Conn.ID()),
				zap.Error(err))
		}
	}

	q.logger.Info("random match formed", zap.String("room_id", roomID), zap.Strings("players", names))
	return nil
}
