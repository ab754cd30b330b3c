package session

import (
	"context"
	"sync"

	"github.com/DoyleJ11/pong-matchmaking/internal/arena"
)

type enrollment struct {
	slot   int
	connID string
}

type fakeEngine struct {
	mu         sync.Mutex
	created    []string
	enrolled   map[string][]enrollment
	directions map[string]arena.Direction
	setCalls   int
	forfeits   []string
	removed    []string
	relays     map[string]arena.Relay
	started    chan [2]string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		enrolled:   map[string][]enrollment{},
		directions: map[string]arena.Direction{},
		relays:     map[string]arena.Relay{},
		started:    make(chan [2]string, 4),
	}
}

func (f *fakeEngine) CreateGame(roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, roomID)
	return nil
}

func (f *fakeEngine) EnrollPlayer(roomID string, slot int, connID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enrolled[roomID] = append(f.enrolled[roomID], enrollment{slot: slot, connID: connID})
	return nil
}

func (f *fakeEngine) StartGame(ctx context.Context, roomID string, nicknames [2]string, relay arena.Relay) error {
	f.mu.Lock()
	f.relays[roomID] = relay
	f.mu.Unlock()
	f.started <- nicknames
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeEngine) SetDirection(_ string, connID string, dir arena.Direction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls++
	f.directions[connID] = dir
}

func (f *fakeEngine) Forfeit(_ string, connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forfeits = append(f.forfeits, connID)
}

func (f *fakeEngine) RemoveGame(roomID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, roomID)
}

func (f *fakeEngine) relay(roomID string) arena.Relay {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.relays[roomID]
}

func (f *fakeEngine) snapshot() (setCalls int, dirs map[string]arena.Direction, forfeits, removed []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dirs = make(map[string]arena.Direction, len(f.directions))
	for k, v := range f.directions {
		dirs[k] = v
	}
	return f.setCalls, dirs, append([]string(nil), f.forfeits...), append([]string(nil), f.removed...)
}
