package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrUnknownSession = errors.New("unknown or expired session")

// IdleTimer fires onIdle after timeout without a Touch.
type IdleTimer struct {
	mu      sync.Mutex
	timeout time.Duration
	timer   *time.Timer
	stopped bool
}

func NewIdleTimer(timeout time.Duration, onIdle func()) *IdleTimer {
	it := &IdleTimer{timeout: timeout}
	it.timer = time.AfterFunc(timeout, func() {
		it.mu.Lock()
		if it.stopped {
			it.mu.Unlock()
			return
		}
		it.stopped = true
		it.mu.Unlock()
		onIdle()
	})
	return it
}

// Touch restarts the countdown. It reports false once the timer has fired
// or been stopped.
func (it *IdleTimer) Touch() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.touchLocked()
}

func (it *IdleTimer) touchLocked() bool {
	if it.stopped {
		return false
	}
	// Stop fails once the callback is running; that session is already gone.
	if !it.timer.Stop() {
		return false
	}
	it.timer.Reset(it.timeout)
	return true
}

func (it *IdleTimer) Stop() {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.stopped = true
	it.timer.Stop()
}

// Session is one signed-in caller.
type Session struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
}

// Manager tracks live sessions and ends each one after it has been idle
// for the configured timeout.
type Manager struct {
	timeout time.Duration
	onEnd   func(Session)

	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	session Session
	idle    *IdleTimer
}

// NewManager returns a Manager. onEnd, if not nil, runs after a session
// expires or is closed.
func NewManager(timeout time.Duration, onEnd func(Session)) *Manager {
	return &Manager{timeout: timeout, onEnd: onEnd, sessions: make(map[string]*entry)}
}

func (m *Manager) Open(user string) Session {
	s := Session{ID: uuid.NewString(), User: user, CreatedAt: time.Now()}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = &entry{
		session: s,
		idle:    NewIdleTimer(m.timeout, func() { m.end(s.ID) }),
	}
	return s
}

// Touch records activity on id.
func (m *Manager) Touch(id string) (Session, error) {
	m.mu.Lock()
	e, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok || !e.idle.Touch() {
		return Session{}, ErrUnknownSession
	}
	return e.session, nil
}

func (m *Manager) Close(id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return ErrUnknownSession
	}
	e.idle.Stop()
	m.end(id)
	return nil
}

func (m *Manager) end(id string) {
	m.mu.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok && m.onEnd != nil {
		m.onEnd(e.session)
	}
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown stops every timer without running onEnd.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.sessions {
		e.idle.Stop()
		delete(m.sessions, id)
	}
}
