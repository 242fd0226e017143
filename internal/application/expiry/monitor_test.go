package expiry

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmaschool/authcore/internal/domain/session"
	"github.com/pmaschool/authcore/internal/shared/logger"
)

type recordingAlerter struct {
	mu   sync.Mutex
	acks []func()
}

func (a *recordingAlerter) ShowSessionExpired(ack func()) {
	a.mu.Lock()
	a.acks = append(a.acks, ack)
	a.mu.Unlock()
}

func (a *recordingAlerter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.acks)
}

func (a *recordingAlerter) ack(i int) {
	a.mu.Lock()
	fn := a.acks[i]
	a.mu.Unlock()
	fn()
}

func newHolderWithSession(t *testing.T) *session.Holder {
	t.Helper()
	h := session.NewHolder()
	s, err := session.NewSession("tok", session.User{ID: 7, Username: "maria"}, session.RoleTeacher, "android-1", time.Now())
	require.NoError(t, err)
	h.Commit(s, "pw")
	return h
}

func TestMonitor_NotifyWhenReadyAlertsAndClearsSession(t *testing.T) {
	holder := newHolderWithSession(t)
	alerter := &recordingAlerter{}
	m := NewMonitor(NewReadiness(true), holder, alerter, logger.NewNop())

	m.Notify()

	assert.Equal(t, 1, alerter.count())
	assert.Equal(t, StateAlerted, m.State())
	assert.False(t, holder.IsAuthenticated())
}

func TestMonitor_ConcurrentNotifiesProduceOneAlert(t *testing.T) {
	alerter := &recordingAlerter{}
	m := NewMonitor(NewReadiness(true), session.NewHolder(), alerter, logger.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Notify()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, alerter.count())
	assert.Equal(t, StateAlerted, m.State())
}

func TestMonitor_AcknowledgeReturnsToIdle(t *testing.T) {
	alerter := &recordingAlerter{}
	m := NewMonitor(NewReadiness(true), session.NewHolder(), alerter, logger.NewNop())

	m.Notify()
	m.Notify()
	require.Equal(t, 1, alerter.count())

	alerter.ack(0)
	assert.Equal(t, StateIdle, m.State())

	m.Notify()
	assert.Equal(t, 2, alerter.count())
}

func TestMonitor_PendingUntilReady(t *testing.T) {
	readiness := NewReadiness(false)
	holder := newHolderWithSession(t)
	alerter := &recordingAlerter{}
	m := NewMonitor(readiness, holder, alerter, logger.NewNop())

	m.Notify()
	m.Notify()

	assert.Equal(t, 0, alerter.count())
	assert.Equal(t, StatePending, m.State())
	assert.True(t, holder.IsAuthenticated())

	readiness.Set(true)

	assert.Equal(t, 1, alerter.count())
	assert.Equal(t, StateAlerted, m.State())
	assert.False(t, holder.IsAuthenticated())

	readiness.Set(false)
	readiness.Set(true)
	assert.Equal(t, 1, alerter.count())
}

func TestMonitor_ReadinessWithoutPendingDoesNothing(t *testing.T) {
	readiness := NewReadiness(false)
	alerter := &recordingAlerter{}
	NewMonitor(readiness, session.NewHolder(), alerter, logger.NewNop())

	readiness.Set(true)
	assert.Equal(t, 0, alerter.count())
}

func TestMonitor_ResetAndStaleAck(t *testing.T) {
	alerter := &recordingAlerter{}
	m := NewMonitor(NewReadiness(true), session.NewHolder(), alerter, logger.NewNop())

	m.Notify()
	m.Reset()
	assert.Equal(t, StateIdle, m.State())

	m.Notify()
	require.Equal(t, 2, alerter.count())

	// the first alert's ack belongs to an earlier episode
	alerter.ack(0)
	assert.Equal(t, StateAlerted, m.State())

	alerter.ack(1)
	assert.Equal(t, StateIdle, m.State())
}

func TestMonitor_CloseDetachesReadiness(t *testing.T) {
	readiness := NewReadiness(false)
	alerter := &recordingAlerter{}
	m := NewMonitor(readiness, session.NewHolder(), alerter, logger.NewNop())

	m.Notify()
	m.Close()
	readiness.Set(true)

	assert.Equal(t, 0, alerter.count())
	assert.Equal(t, StatePending, m.State())
}

func TestReadiness_SubscribeAndUnsubscribe(t *testing.T) {
	r := NewReadiness(false)
	var calls atomic.Int32
	unsub := r.Subscribe(func(bool) { calls.Add(1) })

	r.Set(true)
	r.Set(true)
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, r.IsReady())

	unsub()
	unsub()
	r.Set(false)
	assert.Equal(t, int32(1), calls.Load())
}
