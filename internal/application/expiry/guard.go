package expiry

import (
	"sync"
	"time"

	"github.com/pmaschool/authcore/internal/domain/session"
	"github.com/pmaschool/authcore/internal/shared/goroutine"
	"github.com/pmaschool/authcore/internal/shared/logger"
)

// SessionSource is the session holder as seen by the guard.
type SessionSource interface {
	Current() *session.Session
	Subscribe(fn func(*session.Session))
}

// Snapshot is the state the guard acts on once a burst has settled.
type Snapshot struct {
	Ready         bool
	Authenticated bool
}

// Guard coalesces bursts of readiness and session changes into one call of
// its action, delay after the last change.
type Guard struct {
	mu        sync.Mutex
	delay     time.Duration
	timer     *time.Timer
	stopped   bool
	readiness *Readiness
	sessions  SessionSource
	action    func(Snapshot)
	logger    logger.Interface
	unsub     func()
}

func NewGuard(readiness *Readiness, sessions SessionSource, delay time.Duration, action func(Snapshot), logger logger.Interface) *Guard {
	g := &Guard{
		delay:     delay,
		readiness: readiness,
		sessions:  sessions,
		action:    action,
		logger:    logger,
	}
	g.unsub = readiness.Subscribe(func(bool) { g.Trigger() })
	sessions.Subscribe(func(*session.Session) { g.Trigger() })
	return g
}

// Trigger (re)starts the debounce window.
func (g *Guard) Trigger() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return
	}
	if g.timer != nil {
		g.timer.Stop()
	}
	g.timer = time.AfterFunc(g.delay, g.fire)
}

// Stop cancels a pending action and ignores later changes.
func (g *Guard) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopped = true
	if g.timer != nil {
		g.timer.Stop()
	}
	g.unsub()
}

func (g *Guard) fire() {
	defer goroutine.Recover(g.logger, "navigation-guard")

	g.mu.Lock()
	stopped := g.stopped
	g.mu.Unlock()
	if stopped {
		return
	}

	g.action(Snapshot{
		Ready:         g.readiness.IsReady(),
		Authenticated: g.sessions.Current() != nil,
	})
}
