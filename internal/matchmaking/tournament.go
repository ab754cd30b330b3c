package matchmaking

import (
	"context"
	"fmt"

	"github.com/DoyleJ11/pong-matchmaking/internal/session"
	"github.com/DoyleJ11/pong-matchmaking/pkg/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const TournamentBatchSize = 4

type BracketCreator interface {
	CreateBracket(ctx context.Context, players [4]string) (uuid.UUID, error)
}

// RoomTagger records which bracket match a room plays.
type RoomTagger interface {
	Tag(roomID string, tag session.Tag)
}

// TournamentMatchQueue turns four arrivals into a bracket and two rooms:
// arrivals 0 and 1 play match 1, arrivals 2 and 3 play match 2.
type TournamentMatchQueue struct {
	*queue
	brackets BracketCreator
	tagger   RoomTagger
}

func NewTournament(brackets BracketCreator, tagger RoomTagger, logger *zap.Logger) *TournamentMatchQueue {
	q := &TournamentMatchQueue{
		queue:    newQueue(TournamentBatchSize, logger.Named("tournament_queue")),
		brackets: brackets,
		tagger:   tagger,
	}
	q.form = q.formRooms
	return q
}

func (q *TournamentMatchQueue) formRooms(ctx context.Context, batch []Entrant) error {
	names := nicknames(batch)

	bracketID, err := q.brackets.CreateBracket(ctx, [4]string{names[0], names[1], names[2], names[3]})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBracketPersist, err)
	}

	roomID := q.newID()
	matchNumber := 1
	q.tagger.Tag(roomID, session.Tag{BracketID: bracketID, MatchNumber: matchNumber})

	for i, e := range batch {
		if i == 2 {
			roomID = q.newID()
			matchNumber = 2
			q.tagger.Tag(roomID, session.Tag{BracketID: bracketID, MatchNumber: matchNumber})
		}
		msg := types.MatchAnnouncement{
			RoomID:        roomID,
			UserNicknames: names,
			Player:        i + 1,
			MatchNumber:   matchNumber,
			BracketID:     bracketID.String(),
		}
		if err := e.Conn.Send(msg); err != nil {
			q.logger.Warn("announcement not delivered",
				zap.String("room_id", roomID),
				zap.String("conn_id", e.Conn.ID()),
				zap.Error(err))
		}
	}

	q.logger.Info("tournament formed", zap.Stringer("bracket_id", bracketID), zap.Strings("players", names))
	return nil
}
