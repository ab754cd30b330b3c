package arena

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/DoyleJ11/pong-matchmaking/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestStep_PaddlesClampToField(t *testing.T) {
	r := DefaultRules(5)
	w := NewWorld(r)
	w.Dirs = [2]Direction{Up, Down}

	for i := 0; i < 100; i++ {
		w, _ = Step(w, r)
		w.Vel = Vec{} // park the ball
		w.Ball = Vec{X: r.Width / 2, Y: r.Height / 2}
	}
	assert.Equal(t, r.PaddleHeight/2, w.Paddles[0])
	assert.Equal(t, r.Height-r.PaddleHeight/2, w.Paddles[1])
}

func TestStep_WallBounce(t *testing.T) {
	r := DefaultRules(5)
	w := World{Ball: Vec{X: 50, Y: 0.5}, Vel: Vec{X: 1, Y: -1}, Paddles: [2]float64{30, 30}}

	w, ev := Step(w, r)
	assert.Equal(t, EvtNone, ev.Type)
	assert.InDelta(t, 0.5, w.Ball.Y, 1e-9)
	assert.Equal(t, 1.0, w.Vel.Y)
}

func TestStep_PaddleHitReflects(t *testing.T) {
	r := DefaultRules(5)
	w := World{Ball: Vec{X: r.PaddleInset + 0.5, Y: 30}, Vel: Vec{X: -1, Y: 0}, Paddles: [2]float64{30, 30}}

	w, ev := Step(w, r)
	assert.Equal(t, Event{Type: EvtPaddle, Player: 0}, ev)
	assert.Greater(t, w.Vel.X, 0.0)
	assert.Equal(t, r.PaddleInset, w.Ball.X)
	assert.Equal(t, [2]int{0, 0}, w.Score)
}

func TestStep_MissScoresForOpponent(t *testing.T) {
	r := DefaultRules(5)
	right := r.Width - r.PaddleInset
	w := World{Ball: Vec{X: right - 0.5, Y: 5}, Vel: Vec{X: 1, Y: 0}, Paddles: [2]float64{30, 50}}

	w, ev := Step(w, r)
	assert.Equal(t, Event{Type: EvtPoint, Player: 0}, ev)
	assert.Equal(t, [2]int{1, 0}, w.Score)
	// Served back toward the side that conceded.
	assert.Equal(t, Vec{X: r.Width / 2, Y: r.Height / 2}, w.Ball)
	assert.Greater(t, w.Vel.X, 0.0)
}

func TestStep_GameOverAtLimit(t *testing.T) {
	r := DefaultRules(3)
	w := World{Ball: Vec{X: r.PaddleInset + 0.5, Y: 55}, Vel: Vec{X: -1, Y: 0}, Paddles: [2]float64{10, 30}, Score: [2]int{1, 2}}

	w, ev := Step(w, r)
	assert.Equal(t, Event{Type: EvtGameOver, Player: 1}, ev)
	assert.Equal(t, [2]int{1, 3}, w.Score)
}

type recordingRelay struct {
	mu       sync.Mutex
	statuses []json.RawMessage
	system   chan types.SystemMessage
}

func newRelay() *recordingRelay {
	return &recordingRelay{system: make(chan types.SystemMessage, 4)}
}

func (r *recordingRelay) GameStatus(payload json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, payload)
}

func (r *recordingRelay) SystemMessage(msg types.SystemMessage) { r.system <- msg }

func (r *recordingRelay) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.statuses)
}

func newTestPong(t *testing.T, scoreLimit int) *Pong {
	p := NewPong(1000, scoreLimit, zaptest.NewLogger(t))
	require.NoError(t, p.CreateGame("room"))
	require.NoError(t, p.EnrollPlayer("room", 1, "A"))
	require.NoError(t, p.EnrollPlayer("room", 2, "B"))
	return p
}

func TestPong_LifecycleErrors(t *testing.T) {
	p := NewPong(30, 5, zaptest.NewLogger(t))
	ctx := context.Background()

	assert.ErrorIs(t, p.EnrollPlayer("room", 1, "A"), ErrUnknownGame)
	assert.ErrorIs(t, p.StartGame(ctx, "room", [2]string{}, newRelay()), ErrUnknownGame)

	require.NoError(t, p.CreateGame("room"))
	assert.ErrorIs(t, p.CreateGame("room"), ErrGameExists)
	assert.ErrorIs(t, p.EnrollPlayer("room", 0, "A"), ErrInvalidSlot)
	assert.ErrorIs(t, p.EnrollPlayer("room", 3, "A"), ErrInvalidSlot)

	require.NoError(t, p.EnrollPlayer("room", 1, "A"))
	assert.ErrorIs(t, p.StartGame(ctx, "room", [2]string{"a", ""}, newRelay()), ErrMissingPlayer)

	p.RemoveGame("room")
	assert.NoError(t, p.CreateGame("room"))

	// Unknown rooms are ignored.
	p.SetDirection("nope", "A", Up)
	p.Forfeit("nope", "A")
}

func TestPong_PlaysToScoreLimit(t *testing.T) {
	p := newTestPong(t, 1)
	p.rules.PaddleHeight = 0 // every serve is a miss

	relay := newRelay()
	err := p.StartGame(context.Background(), "room", [2]string{"alice", "bob"}, relay)
	require.NoError(t, err)

	end := <-relay.system
	assert.Equal(t, types.MsgGameEnd, end.Message)
	assert.Equal(t, "alice", end.Winner)
	assert.Equal(t, []int{1, 0}, end.Score)
	assert.Positive(t, relay.count())

	var snap types.Snapshot
	relay.mu.Lock()
	require.NoError(t, json.Unmarshal(relay.statuses[0], &snap))
	relay.mu.Unlock()
	assert.Equal(t, "game_status", snap.Type)
	assert.Equal(t, 1, snap.Tick)
}

func TestPong_ForfeitAwardsOtherPlayer(t *testing.T) {
	p := newTestPong(t, 5)
	relay := newRelay()

	errc := make(chan error, 1)
	go func() { errc <- p.StartGame(context.Background(), "room", [2]string{"alice", "bob"}, relay) }()

	p.Forfeit("room", "A")
	p.Forfeit("room", "B") // ignored, first forfeit wins

	select {
	case end := <-relay.system:
		assert.Equal(t, types.MsgGameEnd, end.Message)
		assert.Equal(t, "bob", end.Winner)
	case <-time.After(time.Second):
		t.Fatal("no game end after forfeit")
	}
	assert.NoError(t, <-errc)
}

func TestPong_DirectionsReachPaddles(t *testing.T) {
	p := newTestPong(t, 5)
	p.SetDirection("room", "B", Down)

	relay := newRelay()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- p.StartGame(ctx, "room", [2]string{"alice", "bob"}, relay) }()

	deadline := time.Now().Add(time.Second)
	for relay.count() < 5 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)

	relay.mu.Lock()
	last := relay.statuses[len(relay.statuses)-1]
	relay.mu.Unlock()
	var snap types.Snapshot
	require.NoError(t, json.Unmarshal(last, &snap))
	assert.Equal(t, p.rules.Height/2, snap.Paddles[0])
	assert.Greater(t, snap.Paddles[1], p.rules.Height/2)
}

func TestPong_StartTwiceRejected(t *testing.T) {
	p := newTestPong(t, 5)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- p.StartGame(ctx, "room", [2]string{"a", "b"}, newRelay()) }()
	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.games["room"].running
	}, time.Second, time.Millisecond)

	assert.ErrorIs(t, p.StartGame(ctx, "room", [2]string{"a", "b"}, newRelay()), ErrGameExists)
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
}

func TestDirectionOf(t *testing.T) {
	assert.Equal(t, Up, DirectionOf(types.MoveUp))
	assert.Equal(t, Down, DirectionOf(types.MoveDown))
	assert.Equal(t, Stop, DirectionOf(types.MoveStop))
}
