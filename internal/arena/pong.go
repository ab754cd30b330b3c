package arena

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/DoyleJ11/pong-matchmaking/pkg/types"
	"go.uber.org/zap"
)

type game struct {
	conns   [2]string
	dirs    [2]Direction
	running bool
	forfeit chan int
}

// Pong runs one ticker goroutine per started game.
type Pong struct {
	mu     sync.Mutex
	games  map[string]*game
	tick   time.Duration
	rules  Rules
	logger *zap.Logger
}

func NewPong(tickRate, scoreLimit int, logger *zap.Logger) *Pong {
	if tickRate <= 0 {
		tickRate = 30
	}
	return &Pong{
		games:  make(map[string]*game),
		tick:   time.Second / time.Duration(tickRate),
		rules:  DefaultRules(scoreLimit),
		logger: logger,
	}
}

func (p *Pong) CreateGame(roomID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.games[roomID]; ok {
		return ErrGameExists
	}
	p.games[roomID] = &game{forfeit: make(chan int, 1)}
	return nil
}

func (p *Pong) EnrollPlayer(roomID string, slot int, connID string) error {
	if slot < 1 || slot > 2 {
		return ErrInvalidSlot
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	g, ok := p.games[roomID]
	if !ok {
		return ErrUnknownGame
	}
	g.conns[slot-1] = connID
	return nil
}

func (p *Pong) StartGame(ctx context.Context, roomID string, nicknames [2]string, relay Relay) error {
	p.mu.Lock()
	g, ok := p.games[roomID]
	switch {
	case !ok:
		p.mu.Unlock()
		return ErrUnknownGame
	case g.conns[0] == "" || g.conns[1] == "":
		p.mu.Unlock()
		return ErrMissingPlayer
	case g.running:
		p.mu.Unlock()
		return ErrGameExists
	}
	g.running = true
	p.mu.Unlock()

	log := p.logger.With(zap.String("room_id", roomID))
	log.Debug("game started", zap.Duration("tick", p.tick))

	w := NewWorld(p.rules)
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case loser := <-g.forfeit:
			winner := 1 - loser
			log.Info("game forfeited", zap.Int("winner_slot", winner+1))
			relay.SystemMessage(gameEnd(nicknames[winner], w.Score))
			return nil

		case <-ticker.C:
			p.mu.Lock()
			w.Dirs = g.dirs
			p.mu.Unlock()

			var ev Event
			w, ev = Step(w, p.rules)

			payload, err := json.Marshal(snapshot(w))
			if err != nil {
				return err
			}
			relay.GameStatus(payload)

			if ev.Type == EvtGameOver {
				log.Info("game over", zap.Int("winner_slot", ev.Player+1), zap.Ints("score", w.Score[:]))
				relay.SystemMessage(gameEnd(nicknames[ev.Player], w.Score))
				return nil
			}
		}
	}
}

func (p *Pong) SetDirection(roomID, connID string, dir Direction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	g, ok := p.games[roomID]
	if !ok {
		return
	}
	for i, c := range g.conns {
		if c == connID {
			g.dirs[i] = dir
		}
	}
}

func (p *Pong) Forfeit(roomID, connID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	g, ok := p.games[roomID]
	if !ok {
		return
	}
	for i, c := range g.conns {
		if c == connID {
			select {
			case g.forfeit <- i:
			default: // first forfeit wins
			}
			return
		}
	}
}

func (p *Pong) RemoveGame(roomID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.games, roomID)
}

func snapshot(w World) types.Snapshot {
	return types.Snapshot{
		Type:    "game_status",
		Tick:    w.Tick,
		Ball:    types.Point{X: w.Ball.X, Y: w.Ball.Y},
		Paddles: w.Paddles,
		Score:   w.Score,
	}
}

func gameEnd(winner string, score [2]int) types.SystemMessage {
	return types.SystemMessage{
		Message: types.MsgGameEnd,
		Winner:  winner,
		Score:   []int{score[0], score[1]},
	}
}
