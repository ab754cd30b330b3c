package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/DoyleJ11/pong-matchmaking/internal/arena"
	"github.com/DoyleJ11/pong-matchmaking/internal/auth"
	"github.com/DoyleJ11/pong-matchmaking/internal/bus"
	"github.com/DoyleJ11/pong-matchmaking/internal/conn"
	"github.com/DoyleJ11/pong-matchmaking/pkg/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrRoomFull   = errors.New("room full")
	ErrRoomClosed = errors.New("room closed")
)

type State string

const (
	StateCreated     State = "created"
	StateWaitPlayer2 State = "wait_player2"
	StateWaitAuth    State = "wait_auth"
	StateActive      State = "active"
	StateClosed      State = "closed"
)

// Tag links a room to one match of a tournament bracket.
type Tag struct {
	BracketID   uuid.UUID
	MatchNumber int
}

type WinnerRecorder interface {
	RecordWinner(ctx context.Context, bracketID uuid.UUID, matchNumber int, nickname string) error
}

// Deps are shared by every room of a registry.
type Deps struct {
	Bus         bus.Bus
	Engine      arena.Engine
	Winners     WinnerRecorder // may be nil
	WaitTimeout time.Duration  // 0 disables
	Logger      *zap.Logger
}

type Msg interface{ isRoomMsg() }

// Connect asks for a player slot.
type Connect struct {
	Conn  conn.Conn
	Reply chan JoinResult
}

type JoinResult struct {
	Slot int // 1 or 2
	Err  error
}

// Authenticated is sent once the connection's token has been verified.
type Authenticated struct {
	ConnID   string
	Identity auth.Identity
}

// Unauthorized is a token-bearing message whose token was rejected.
type Unauthorized struct {
	ConnID string
}

type MoveInput struct {
	ConnID string
	Move   types.Move
}

// Unrecognized is any other inbound message.
type Unrecognized struct {
	ConnID string
}

type Disconnect struct {
	ConnID string
}

type GetState struct {
	Reply chan View
}

type engineStatus struct{ payload json.RawMessage }
type engineSystem struct{ msg types.SystemMessage }
type waitExpired struct{}

func (Connect) isRoomMsg()       {}
func (Authenticated) isRoomMsg() {}
func (Unauthorized) isRoomMsg()  {}
func (MoveInput) isRoomMsg()     {}
func (Unrecognized) isRoomMsg()  {}
func (Disconnect) isRoomMsg()    {}
func (GetState) isRoomMsg()      {}
func (engineStatus) isRoomMsg()  {}
func (engineSystem) isRoomMsg()  {}
func (waitExpired) isRoomMsg()   {}

// View is a race-free copy of the room for tests and stats.
type View struct {
	ID      string
	State   State
	Tag     *Tag
	Players [2]PlayerView
}

type PlayerView struct {
	ConnID    string
	Nickname  string
	Direction arena.Direction
	Left      bool
}

type slot struct {
	conn     conn.Conn
	nickname string
	dir      arena.Direction
	left     bool
}

func (s *slot) free() bool { return s.conn == nil }

// Room owns two player slots. All state is touched only by loop.
type Room struct {
	id    string
	tag   *Tag
	inbox chan Msg
	state State
	slots [2]slot

	gameCreated bool
	gameCancel  context.CancelFunc
	forfeiter   int // slot index of the first mid-game leaver, or -1
	waitTimer   *time.Timer

	deps     Deps
	logger   *zap.Logger
	onClosed func(*Room)

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRoom starts a room. onClosed runs on the room goroutine once the room
// reaches CLOSED; it may be nil.
func NewRoom(parent context.Context, id string, tag *Tag, deps Deps, onClosed func(*Room)) *Room {
	ctx, cancel := context.WithCancel(parent)

	r := &Room{
		id:        id,
		tag:       tag,
		inbox:     make(chan Msg, 64),
		state:     StateCreated,
		forfeiter: -1,
		deps:      deps,
		logger:    deps.Logger.With(zap.String("room_id", id)),
		onClosed:  onClosed,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	if deps.WaitTimeout > 0 {
		r.waitTimer = time.AfterFunc(deps.WaitTimeout, func() { r.Post(waitExpired{}) })
	}

	go r.loop()
	return r
}

func (r *Room) ID() string { return r.id }

// Done is closed when the room goroutine has exited.
func (r *Room) Done() <-chan struct{} { return r.done }

// Post hands m to the room. It reports false if the room is already gone.
func (r *Room) Post(m Msg) bool {
	select {
	case r.inbox <- m:
		return true
	case <-r.ctx.Done():
		return false
	}
}

// Join enrolls c as player 1 or 2. A third connection gets ErrRoomFull and
// has already been told and closed.
func (r *Room) Join(ctx context.Context, c conn.Conn) (int, error) {
	reply := make(chan JoinResult, 1)
	if !r.Post(Connect{Conn: c, Reply: reply}) {
		return 0, ErrRoomClosed
	}
	select {
	case res := <-reply:
		return res.Slot, res.Err
	case <-r.ctx.Done():
		return 0, ErrRoomClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (r *Room) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if !r.Post(GetState{Reply: reply}) {
		return View{}, ErrRoomClosed
	}
	select {
	case v := <-reply:
		return v, nil
	case <-r.ctx.Done():
		return View{}, ErrRoomClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// GameStatus and SystemMessage make the room the engine's arena.Relay.
func (r *Room) GameStatus(payload json.RawMessage) { r.Post(engineStatus{payload: payload}) }

func (r *Room) SystemMessage(msg types.SystemMessage) { r.Post(engineSystem{msg: msg}) }

func (r *Room) loop() {
	defer close(r.done)

	for {
		select {
		case <-r.ctx.Done():
			r.teardown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Connect:
				msg.Reply <- r.connect(msg.Conn)

			case Authenticated:
				r.authenticated(msg.ConnID, msg.Identity)

			case Unauthorized:
				r.unauthorized(msg.ConnID)

			case Unrecognized:
				r.unauthorized(msg.ConnID)

			case MoveInput:
				r.move(msg.ConnID, msg.Move)

			case Disconnect:
				r.disconnect(msg.ConnID)

			case engineStatus:
				if r.state == StateActive {
					r.deps.Bus.Publish(r.id, types.GameStatus{Payload: msg.payload})
				}

			case engineSystem:
				r.deps.Bus.Publish(r.id, msg.msg)
				if msg.msg.Message == types.MsgGameEnd {
					r.recordWinner(msg.msg.Winner)
					r.close()
				}

			case waitExpired:
				if r.state != StateActive {
					r.logger.Info("room timed out before play started", zap.String("state", string(r.state)))
					r.deps.Bus.Publish(r.id, types.SystemMessage{Message: types.MsgMatchTimeout})
					r.close()
				}

			case GetState:
				msg.Reply <- r.view()
			}
		}

		if r.state == StateClosed {
			return
		}
	}
}

func (r *Room) slotOf(connID string) int {
	for i := range r.slots {
		if r.slots[i].conn != nil && r.slots[i].conn.ID() == connID {
			return i
		}
	}
	return -1
}

func (r *Room) connect(c conn.Conn) JoinResult {
	if i := r.slotOf(c.ID()); i >= 0 {
		return JoinResult{Slot: i + 1}
	}

	i := -1
	for j := range r.slots {
		if r.slots[j].free() {
			i = j
			break
		}
	}
	if i < 0 {
		r.logger.Info("rejecting connection, room full", zap.String("conn_id", c.ID()))
		_ = c.Send(types.ErrorMessage{Error: types.ErrTextFullRoom})
		c.Close(conn.FullRoom)
		return JoinResult{Err: ErrRoomFull}
	}

	if !r.gameCreated {
		if err := r.deps.Engine.CreateGame(r.id); err != nil {
			r.logger.Error("create game failed", zap.Error(err))
			return JoinResult{Err: err}
		}
		r.gameCreated = true
	}
	if err := r.deps.Engine.EnrollPlayer(r.id, i+1, c.ID()); err != nil {
		r.logger.Error("enroll failed", zap.Int("slot", i+1), zap.Error(err))
		return JoinResult{Err: err}
	}

	r.slots[i] = slot{conn: c}
	r.deps.Bus.Join(r.id, c)
	r.recompute()

	r.logger.Info("player enrolled",
		zap.String("conn_id", c.ID()),
		zap.Int("slot", i+1),
		zap.String("state", string(r.state)))
	return JoinResult{Slot: i + 1}
}

func (r *Room) recompute() {
	if r.state == StateActive || r.state == StateClosed {
		return
	}
	n := 0
	for i := range r.slots {
		if !r.slots[i].free() {
			n++
		}
	}
	switch n {
	case 0:
		r.state = StateCreated
	case 1:
		r.state = StateWaitPlayer2
	default:
		r.state = StateWaitAuth
	}
}

func (r *Room) preActive() bool {
	return r.state == StateWaitPlayer2 || r.state == StateWaitAuth
}

func (r *Room) authenticated(connID string, id auth.Identity) {
	if !r.preActive() {
		return
	}
	i := r.slotOf(connID)
	if i < 0 || r.slots[i].left || r.slots[i].nickname != "" {
		return
	}
	if id.Nickname == "" {
		r.unauthorized(connID)
		return
	}
	r.slots[i].nickname = id.Nickname
	r.logger.Debug("player identified", zap.Int("slot", i+1), zap.String("nickname", id.Nickname))

	if r.slots[0].nickname != "" && r.slots[1].nickname != "" {
		r.activate()
	}
}

// unauthorized covers any non-token message from a slot that still owes one.
func (r *Room) unauthorized(connID string) {
	if !r.preActive() {
		return
	}
	i := r.slotOf(connID)
	if i < 0 || r.slots[i].left || r.slots[i].nickname != "" {
		return
	}
	r.deps.Bus.Publish(r.id, types.SystemMessage{Message: types.MsgSomeoneUnauthorized})
}

func (r *Room) activate() {
	r.state = StateActive
	if r.waitTimer != nil {
		r.waitTimer.Stop()
	}

	gameCtx, cancel := context.WithCancel(r.ctx)
	r.gameCancel = cancel
	names := [2]string{r.slots[0].nickname, r.slots[1].nickname}

	r.logger.Info("match active", zap.Strings("players", names[:]))
	go func() {
		if err := r.deps.Engine.StartGame(gameCtx, r.id, names, r); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("arena game failed", zap.Error(err))
		}
	}()
}

func (r *Room) move(connID string, m types.Move) {
	if r.state != StateActive {
		r.unauthorized(connID)
		return
	}
	i := r.slotOf(connID)
	if i < 0 || r.slots[i].left {
		return
	}
	dir := arena.DirectionOf(m)
	r.slots[i].dir = dir
	r.deps.Engine.SetDirection(r.id, connID, dir)
}

// disconnect never frees a slot: a room enrolls at most two distinct
// connections over its lifetime.
func (r *Room) disconnect(connID string) {
	r.deps.Bus.Leave(r.id, connID)

	i := r.slotOf(connID)
	if i < 0 || r.slots[i].left {
		return
	}
	r.slots[i].left = true

	if r.state == StateActive {
		r.logger.Info("player left mid-game, forfeiting", zap.Int("slot", i+1))
		if r.forfeiter < 0 {
			r.forfeiter = i
		}
		r.deps.Engine.Forfeit(r.id, connID)
	} else {
		r.logger.Info("player left before start", zap.Int("slot", i+1), zap.String("state", string(r.state)))
	}

	for j := range r.slots {
		if !r.slots[j].free() && !r.slots[j].left {
			return
		}
	}
	// Nobody is left to receive the forfeit's Game End; settle it here.
	if r.state == StateActive && r.forfeiter >= 0 {
		r.recordWinner(r.slots[1-r.forfeiter].nickname)
	}
	r.close()
}

func (r *Room) recordWinner(winner string) {
	if r.tag == nil || winner == "" || r.deps.Winners == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.deps.Winners.RecordWinner(ctx, r.tag.BracketID, r.tag.MatchNumber, winner); err != nil {
		r.logger.Error("recording bracket winner failed",
			zap.Stringer("bracket_id", r.tag.BracketID),
			zap.Int("match_number", r.tag.MatchNumber),
			zap.Error(err))
	}
}

// close moves to CLOSED. Connections close themselves when they see the
// terminal system message; the room only lets go of them.
func (r *Room) close() {
	if r.state == StateClosed {
		return
	}
	r.state = StateClosed
	r.release()
	if r.onClosed != nil {
		r.onClosed(r)
	}
	r.cancel()
	r.logger.Info("room closed")
}

// teardown is the shutdown path: connections are closed by the room.
func (r *Room) teardown() {
	if r.state == StateClosed {
		return
	}
	r.state = StateClosed
	for i := range r.slots {
		if c := r.slots[i].conn; c != nil && !r.slots[i].left {
			c.Close(conn.NormalEnd)
		}
	}
	r.release()
}

func (r *Room) release() {
	if r.waitTimer != nil {
		r.waitTimer.Stop()
	}
	if r.gameCancel != nil {
		r.gameCancel()
	}
	for i := range r.slots {
		if c := r.slots[i].conn; c != nil {
			r.deps.Bus.Leave(r.id, c.ID())
		}
	}
	if r.gameCreated {
		r.deps.Engine.RemoveGame(r.id)
	}
}

func (r *Room) view() View {
	v := View{ID: r.id, State: r.state}
	if r.tag != nil {
		t := *r.tag
		v.Tag = &t
	}
	for i, s := range r.slots {
		if s.conn != nil {
			v.Players[i].ConnID = s.conn.ID()
		}
		v.Players[i].Nickname = s.nickname
		v.Players[i].Direction = s.dir
		v.Players[i].Left = s.left
	}
	return v
}
