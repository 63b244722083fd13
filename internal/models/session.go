// -----------------------------------------------------------------------
// Session - One isolated automation context with a persistent profile
// -----------------------------------------------------------------------

package models

import (
	"context"
	"sync"
)

// Session is an isolated browser automation context bound 1:1 to an
// on-disk profile directory. Identified by a worker key ("default" or
// "w<N>"). It owns exactly one open page at a time; callers serialize
// their own use of a given key.
//
// Ctx is the live browser context; run automation actions against it.
// The owning pool watches the context and drops the session from its
// registry when the browser dies, so a later acquire relaunches.
type Session struct {
	WorkerKey  string          `json:"worker_key"`
	ProfileDir string          `json:"profile_dir"`
	Ctx        context.Context `json:"-"`
	Dialogs    *DialogLog      `json:"-"`
}

// NewSession wraps a live browser context with its identity and an empty
// dialog log.
func NewSession(workerKey, profileDir string, ctx context.Context) *Session {
	return &Session{
		WorkerKey:  workerKey,
		ProfileDir: profileDir,
		Ctx:        ctx,
		Dialogs:    &DialogLog{},
	}
}

// DialogLog accumulates the text of native JavaScript dialogs raised by
// the session's page. The filing protocol drains it after every filing
// round trip.
type DialogLog struct {
	mu       sync.Mutex
	messages []string
}

// Record appends one dialog text.
func (l *DialogLog) Record(message string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, message)
}

// Drain returns and clears the recorded texts.
func (l *DialogLog) Drain() []string {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.messages
	l.messages = nil
	return out
}

// Alive reports whether the underlying browser context is still usable.
func (s *Session) Alive() bool {
	if s == nil || s.Ctx == nil {
		return false
	}
	select {
	case <-s.Ctx.Done():
		return false
	default:
		return true
	}
}
