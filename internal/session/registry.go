package session

import (
	"context"
	"errors"
	"time"

	"github.com/DoyleJ11/pong-matchmaking/internal/conn"
	"go.uber.org/zap"
)

type RegistryMsg interface{ isRegistryMsg() }

// EnsureRoom returns the room for RoomID, creating it on first use.
type EnsureRoom struct {
	RoomID string
	Reply  chan *Room
}

type GetRoom struct {
	RoomID string
	Reply  chan *Room
}

// RemoveRoom only removes Room if it is still the one registered.
type RemoveRoom struct {
	Room *Room
}

type TagRoom struct {
	RoomID string
	Tag    Tag
}

type CountRooms struct {
	Reply chan int
}

type ShutdownRegistry struct {
	Done chan struct{}
}

// expireTag drops a tag whose room was never opened. gen guards against a
// newer tag for the same id.
type expireTag struct {
	roomID string
	gen    uint64
}

type countTags struct {
	reply chan int
}

func (EnsureRoom) isRegistryMsg()       {}
func (GetRoom) isRegistryMsg()          {}
func (RemoveRoom) isRegistryMsg()       {}
func (TagRoom) isRegistryMsg()          {}
func (CountRooms) isRegistryMsg()       {}
func (ShutdownRegistry) isRegistryMsg() {}
func (expireTag) isRegistryMsg()        {}
func (countTags) isRegistryMsg()        {}

// defaultTagTTL applies when rooms have no wait timeout of their own.
const defaultTagTTL = time.Hour

type pendingTag struct {
	tag   Tag
	gen   uint64
	timer *time.Timer
}

// Registry maps room ids to live rooms. It is the single writer of that map.
type Registry struct {
	inbox  chan RegistryMsg
	rooms  map[string]*Room
	tags   map[string]pendingTag
	tagGen uint64
	tagTTL time.Duration
	deps   Deps
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRegistry(parent context.Context, deps Deps) *Registry {
	ctx, cancel := context.WithCancel(parent)
	h := &Registry{
		inbox:  make(chan RegistryMsg, 64),
		rooms:  make(map[string]*Room),
		tags:   make(map[string]pendingTag),
		tagTTL: deps.WaitTimeout,
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if h.tagTTL <= 0 {
		h.tagTTL = defaultTagTTL
	}
	go h.loop()
	return h
}

func (h *Registry) post(m RegistryMsg) bool {
	select {
	case h.inbox <- m:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Registry) Ensure(ctx context.Context, roomID string) (*Room, error) {
	reply := make(chan *Room, 1)
	if !h.post(EnsureRoom{RoomID: roomID, Reply: reply}) {
		return nil, ErrRoomClosed
	}
	select {
	case r := <-reply:
		return r, nil
	case <-h.ctx.Done():
		return nil, ErrRoomClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Join enrolls c in roomID. A room that closed between lookup and join has
// already queued its own removal, so one more lookup yields a fresh room.
func (h *Registry) Join(ctx context.Context, roomID string, c conn.Conn) (*Room, int, error) {
	for attempt := 0; attempt < 3; attempt++ {
		r, err := h.Ensure(ctx, roomID)
		if err != nil {
			return nil, 0, err
		}
		slot, err := r.Join(ctx, c)
		if errors.Is(err, ErrRoomClosed) {
			continue
		}
		return r, slot, err
	}
	return nil, 0, ErrRoomClosed
}

func (h *Registry) Tag(roomID string, tag Tag) {
	h.post(TagRoom{RoomID: roomID, Tag: tag})
}

func (h *Registry) Count(ctx context.Context) int {
	reply := make(chan int, 1)
	if !h.post(CountRooms{Reply: reply}) {
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-h.ctx.Done():
		return 0
	case <-ctx.Done():
		return 0
	}
}

func (h *Registry) Get(ctx context.Context, roomID string) *Room {
	reply := make(chan *Room, 1)
	if !h.post(GetRoom{RoomID: roomID, Reply: reply}) {
		return nil
	}
	select {
	case r := <-reply:
		return r
	case <-h.ctx.Done():
		return nil
	case <-ctx.Done():
		return nil
	}
}

// Shutdown tears every room down and waits for them to exit.
func (h *Registry) Shutdown(ctx context.Context) {
	done := make(chan struct{})
	if h.post(ShutdownRegistry{Done: done}) {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}
	select {
	case <-h.done:
	case <-ctx.Done():
	}
}

func (h *Registry) loop() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.drain(nil)
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case EnsureRoom:
				if r := h.rooms[msg.RoomID]; r != nil {
					msg.Reply <- r
					break
				}
				var tag *Tag
				if t, ok := h.tags[msg.RoomID]; ok {
					tag = &t.tag
					delete(h.tags, msg.RoomID)
				}
				r := NewRoom(h.ctx, msg.RoomID, tag, h.deps, h.roomClosed)
				h.rooms[msg.RoomID] = r
				msg.Reply <- r

			case GetRoom:
				msg.Reply <- h.rooms[msg.RoomID] // May be nil

			case RemoveRoom:
				if h.rooms[msg.Room.ID()] == msg.Room {
					delete(h.rooms, msg.Room.ID())
				}

			case TagRoom:
				if r := h.rooms[msg.RoomID]; r != nil {
					h.deps.Logger.Warn("tag for a room that is already open is ignored", zap.String("room_id", msg.RoomID))
					break
				}
				h.addTag(msg.RoomID, msg.Tag)

			case expireTag:
				if p, ok := h.tags[msg.roomID]; ok && p.gen == msg.gen {
					h.deps.Logger.Info("dropping tag for a room nobody opened",
						zap.String("room_id", msg.roomID),
						zap.Stringer("bracket_id", p.tag.BracketID),
						zap.Int("match_number", p.tag.MatchNumber))
					delete(h.tags, msg.roomID)
				}

			case countTags:
				msg.reply <- len(h.tags)

			case CountRooms:
				msg.Reply <- len(h.rooms)

			case ShutdownRegistry:
				h.drain(msg.Done)
				return
			}
		}
	}
}

func (h *Registry) drain(done chan struct{}) {
	h.cancel()
	for _, r := range h.rooms {
		<-r.Done()
	}
	clear(h.rooms)
	for _, p := range h.tags {
		p.timer.Stop()
	}
	clear(h.tags)
	if done != nil {
		close(done)
	}
}

func (h *Registry) addTag(roomID string, tag Tag) {
	if old, ok := h.tags[roomID]; ok {
		old.timer.Stop()
	}
	h.tagGen++
	gen := h.tagGen
	timer := time.AfterFunc(h.tagTTL, func() {
		h.post(expireTag{roomID: roomID, gen: gen})
	})
	h.tags[roomID] = pendingTag{tag: tag, gen: gen, timer: timer}
}

// pendingTags reports how many tags are waiting for their room to open.
func (h *Registry) pendingTags(ctx context.Context) int {
	reply := make(chan int, 1)
	if !h.post(countTags{reply: reply}) {
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-h.ctx.Done():
		return 0
	case <-ctx.Done():
		return 0
	}
}

// roomClosed runs on the room's goroutine.
func (h *Registry) roomClosed(r *Room) {
	h.post(RemoveRoom{Room: r})
}
