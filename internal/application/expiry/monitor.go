// Package expiry turns "remote session no longer valid" signals into a single
// user-facing alert per episode.
package expiry

import (
	"sync"

	"github.com/pmaschool/authcore/internal/shared/logger"
)

type State int

const (
	StateIdle State = iota
	StatePending
	StateAlerted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateAlerted:
		return "alerted"
	default:
		return "unknown"
	}
}

// Alerter shows the session-expired alert. ShowSessionExpired must return
// promptly; ack may be called later from any goroutine, once the user
// acknowledges.
type Alerter interface {
	ShowSessionExpired(ack func())
}

// SessionClearer drops the in-memory session.
type SessionClearer interface {
	Clear()
}

// Monitor is the expiry state machine: idle, pending until the UI is ready,
// or alerted until acknowledged. It never returns to idle on a timer.
type Monitor struct {
	mu          sync.Mutex
	state       State
	episode     uint64
	readiness   *Readiness
	sessions    SessionClearer
	alerter     Alerter
	logger      logger.Interface
	unsubscribe func()
}

func NewMonitor(readiness *Readiness, sessions SessionClearer, alerter Alerter, logger logger.Interface) *Monitor {
	m := &Monitor{
		readiness: readiness,
		sessions:  sessions,
		alerter:   alerter,
		logger:    logger,
	}
	m.unsubscribe = readiness.Subscribe(m.onReadiness)
	return m
}

// Notify reports that the remote session is unauthorized. Calls while an
// alert is pending or outstanding collapse into it.
func (m *Monitor) Notify() {
	m.mu.Lock()
	if m.state != StateIdle {
		m.mu.Unlock()
		m.logger.Debugw("session expiry already handled", "state", m.state.String())
		return
	}
	if !m.readiness.IsReady() {
		m.state = StatePending
		m.mu.Unlock()
		m.logger.Infow("session expired before ui ready, deferring alert")
		return
	}
	episode := m.raise()
	m.mu.Unlock()

	m.fire(episode)
}

// Reset forgets any pending or outstanding alert. Called after a successful login.
func (m *Monitor) Reset() {
	m.mu.Lock()
	m.state = StateIdle
	m.episode++
	m.mu.Unlock()
}

func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Close detaches the monitor from the readiness signal.
func (m *Monitor) Close() {
	m.unsubscribe()
}

func (m *Monitor) onReadiness(ready bool) {
	if !ready {
		return
	}
	m.mu.Lock()
	if m.state != StatePending {
		m.mu.Unlock()
		return
	}
	episode := m.raise()
	m.mu.Unlock()

	m.fire(episode)
}

// raise must be called with mu held.
func (m *Monitor) raise() uint64 {
	m.state = StateAlerted
	m.episode++
	return m.episode
}

func (m *Monitor) fire(episode uint64) {
	m.sessions.Clear()
	m.logger.Warnw("session expired, alerting user")
	m.alerter.ShowSessionExpired(func() { m.acknowledge(episode) })
}

// acknowledge is a no-op for an alert of an earlier episode.
func (m *Monitor) acknowledge(episode uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateAlerted && m.episode == episode {
		m.state = StateIdle
	}
}
