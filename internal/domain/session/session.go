// Package session models the short-lived authenticated context held by the
// running app.
package session

import (
	"fmt"
	"sync"
	"time"
)

type User struct {
	ID              int64  `json:"id" yaml:"id"`
	Username        string `json:"username" yaml:"username"`
	DisplayName     string `json:"display_name" yaml:"display_name"`
	Email           string `json:"email,omitempty" yaml:"email,omitempty"`
	ProfileImageRef string `json:"profile_image_ref,omitempty" yaml:"profile_image_ref,omitempty"`
	RemoteRole      string `json:"remote_role" yaml:"remote_role"`
}

// Session is only ever built from a successful session verification.
type Session struct {
	Token         string    `json:"-" yaml:"-"`
	User          User      `json:"user" yaml:"user"`
	Role          Role      `json:"role" yaml:"role"`
	DeviceID      string    `json:"device_id" yaml:"device_id"`
	EstablishedAt time.Time `json:"established_at" yaml:"established_at"`
}

func NewSession(token string, user User, role Role, deviceID string, now time.Time) (*Session, error) {
	if token == "" {
		return nil, fmt.Errorf("session token is required")
	}
	if user.Username == "" {
		return nil, fmt.Errorf("session user is required")
	}
	return &Session{
		Token:         token,
		User:          user,
		Role:          role,
		DeviceID:      deviceID,
		EstablishedAt: now.UTC(),
	}, nil
}

// Holder keeps the single process-wide session together with the password
// that established it, which enabling biometrics needs.
type Holder struct {
	mu          sync.RWMutex
	current     *Session
	secret      string
	subscribers []func(*Session)
}

func NewHolder() *Holder {
	return &Holder{}
}

// Commit replaces the current session. secret may be empty.
func (h *Holder) Commit(s *Session, secret string) {
	h.mu.Lock()
	h.current = s
	h.secret = secret
	subs := h.snapshotSubscribers()
	h.mu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
}

// Clear drops the session. Safe to call when nothing is held.
func (h *Holder) Clear() {
	h.mu.Lock()
	had := h.current != nil
	h.current = nil
	h.secret = ""
	subs := h.snapshotSubscribers()
	h.mu.Unlock()

	if !had {
		return
	}
	for _, fn := range subs {
		fn(nil)
	}
}

func (h *Holder) Current() *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

func (h *Holder) IsAuthenticated() bool {
	return h.Current() != nil
}

// Secret returns the password of the current session.
func (h *Holder) Secret() (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.current == nil || h.secret == "" {
		return "", false
	}
	return h.secret, true
}

// UpdateProfileImage refreshes the image reference of the current user.
func (h *Holder) UpdateProfileImage(ref string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current != nil {
		h.current.User.ProfileImageRef = ref
	}
}

// Subscribe registers fn for every commit and clear. fn receives nil on clear.
func (h *Holder) Subscribe(fn func(*Session)) {
	h.mu.Lock()
	h.subscribers = append(h.subscribers, fn)
	h.mu.Unlock()
}

func (h *Holder) snapshotSubscribers() []func(*Session) {
	subs := make([]func(*Session), len(h.subscribers))
	copy(subs, h.subscribers)
	return subs
}
