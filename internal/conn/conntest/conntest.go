// Package conntest provides an in-memory conn.Conn for tests.
package conntest

import (
	"sync"
	"testing"
	"time"

	"github.com/DoyleJ11/pong-matchmaking/internal/conn"
	"github.com/DoyleJ11/pong-matchmaking/pkg/types"
)

// Recorder captures everything sent to it.
type Recorder struct {
	id  string
	out chan types.Outbound

	mu     sync.Mutex
	sent   []types.Outbound
	closed bool
	reason conn.CloseReason
}

func New(id string) *Recorder {
	return &Recorder{id: id, out: make(chan types.Outbound, 256)}
}

func (r *Recorder) ID() string { return r.id }

func (r *Recorder) Send(msg types.Outbound) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return conn.ErrClosed
	}
	r.sent = append(r.sent, msg)
	select {
	case r.out <- msg:
	default:
	}
	return nil
}

func (r *Recorder) Close(reason conn.CloseReason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.reason = reason
}

// Closed reports whether Close was called and with which reason.
func (r *Recorder) Closed() (bool, conn.CloseReason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed, r.reason
}

// Sent returns a copy of every message accepted so far.
func (r *Recorder) Sent() []types.Outbound {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Outbound(nil), r.sent...)
}

// Recv waits for the next message so tests never hang.
func (r *Recorder) Recv(t *testing.T, within time.Duration) types.Outbound {
	t.Helper()
	select {
	case m := <-r.out:
		return m
	case <-time.After(within):
		t.Fatalf("%s: timed out waiting for message", r.id)
		return nil
	}
}

// RecvNone asserts nothing arrives within the window.
func (r *Recorder) RecvNone(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case m := <-r.out:
		t.Fatalf("%s: expected no message within %v, got %#v", r.id, within, m)
	case <-time.After(within):
	}
}

// WaitClosed polls until the recorder is closed.
func (r *Recorder) WaitClosed(t *testing.T, within time.Duration) conn.CloseReason {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if ok, reason := r.Closed(); ok {
			return reason
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("%s: not closed within %v", r.id, within)
	return 0
}
