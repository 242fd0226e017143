// Package devauthority is an in-memory school backend used for development
// and end-to-end tests. It keeps accounts, sessions, device trust records and
// the authentication log.
package devauthority

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pmaschool/authcore/internal/domain/device"
	"github.com/pmaschool/authcore/internal/shared/biztime"
	"github.com/pmaschool/authcore/internal/shared/config"
	"github.com/pmaschool/authcore/internal/shared/logger"
)

var (
	ErrAccessDenied     = errors.New("access denied")
	ErrSessionExpired   = errors.New("session expired")
	ErrDeviceNotFound   = errors.New("device not found")
	ErrUserExists       = errors.New("user already exists")
	ErrDeviceRevoked    = errors.New("device is revoked")
	ErrInvalidUserInput = errors.New("invalid user")
)

type Account struct {
	ID           int64
	Username     string
	Name         string
	Email        string
	Role         string
	ProfileImage string
	passwordHash string
}

type serverSession struct {
	id         string
	userID     int64
	deviceUUID string
	expiresAt  time.Time
	ended      bool
}

// AuthLogEntry is one row of the authentication log.
type AuthLogEntry struct {
	UserID        int64     `json:"user_id"`
	SessionID     string    `json:"session_id"`
	DeviceUUID    string    `json:"device_uuid,omitempty"`
	TrustRecordID string    `json:"trust_record_id,omitempty"`
	Method        string    `json:"method"`
	Success       bool      `json:"success"`
	ErrorCode     string    `json:"error_code,omitempty"`
	DurationMs    int64     `json:"duration_ms"`
	At            time.Time `json:"at"`
}

// Validation is the answer to validate_device.
type Validation struct {
	Valid         bool
	Record        *device.TrustRecord
	CanReactivate bool
	Message       string
}

type Authority struct {
	hasher *BcryptPasswordHasher
	tokens *TokenService
	clock  biztime.Clock
	logger logger.Interface

	mu       sync.RWMutex
	nextUID  int64
	accounts map[string]*Account
	byID     map[int64]*Account
	sessions map[string]*serverSession
	devices  map[string]*device.TrustRecord
	logs     []AuthLogEntry
}

func New(cfg config.DevAuthorityConfig, clock biztime.Clock, logger logger.Interface) *Authority {
	return &Authority{
		hasher:   NewBcryptPasswordHasher(cfg.BcryptCost),
		tokens:   NewTokenService(cfg.JWTSecret, cfg.SessionTTL(), clock),
		clock:    clock,
		logger:   logger,
		nextUID:  1,
		accounts: make(map[string]*Account),
		byID:     make(map[int64]*Account),
		sessions: make(map[string]*serverSession),
		devices:  make(map[string]*device.TrustRecord),
	}
}

// AddUser creates an account. An empty role is allowed and models an account
// that can authenticate but has no role.
func (a *Authority) AddUser(username, password, name, role string) (*Account, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || password == "" {
		return nil, ErrInvalidUserInput
	}
	hash, err := a.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.accounts[username]; exists {
		return nil, ErrUserExists
	}
	acc := &Account{
		ID:           a.nextUID,
		Username:     username,
		Name:         name,
		Role:         role,
		passwordHash: hash,
	}
	a.nextUID++
	a.accounts[username] = acc
	a.byID[acc.ID] = acc
	a.logger.Infow("account created", "username", username, "role", role)
	return acc, nil
}

// SetPassword rotates a password. Existing sessions stay valid.
func (a *Authority) SetPassword(username, password string) error {
	hash, err := a.hasher.Hash(password)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	acc, ok := a.accounts[strings.ToLower(username)]
	if !ok {
		return ErrInvalidUserInput
	}
	acc.passwordHash = hash
	return nil
}

func (a *Authority) SetProfileImage(userID int64, image string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if acc, ok := a.byID[userID]; ok {
		acc.ProfileImage = image
	}
}

// Authenticate opens a session and returns its token.
func (a *Authority) Authenticate(login, password string) (string, *Account, error) {
	a.mu.RLock()
	acc, ok := a.accounts[strings.ToLower(strings.TrimSpace(login))]
	a.mu.RUnlock()
	if !ok {
		return "", nil, ErrAccessDenied
	}
	if err := a.hasher.Verify(password, acc.passwordHash); err != nil {
		return "", nil, ErrAccessDenied
	}

	sid := uuid.NewString()
	token, exp, err := a.tokens.Issue(acc.ID, acc.Username, sid)
	if err != nil {
		return "", nil, err
	}

	a.mu.Lock()
	a.sessions[sid] = &serverSession{id: sid, userID: acc.ID, expiresAt: exp}
	a.mu.Unlock()

	a.logger.Infow("session opened", "username", acc.Username, "session_id", sid)
	copied := *acc
	return token, &copied, nil
}

// SessionInfo resolves a token to its account.
func (a *Authority) SessionInfo(token string) (*Account, time.Time, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	sess, acc, err := a.resolve(token)
	if err != nil {
		return nil, time.Time{}, err
	}
	copied := *acc
	return &copied, sess.expiresAt, nil
}

// Destroy ends the session of token. Unknown tokens are ignored.
func (a *Authority) Destroy(token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if sess, _, err := a.resolve(token); err == nil {
		sess.ended = true
	}
}

// RegisterDevice creates or re-enrolls the trust record of identity for the
// session's user and binds the session to the device.
func (a *Authority) RegisterDevice(token string, identity device.Identity, kind, label string) (*device.TrustRecord, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	sess, acc, err := a.resolve(token)
	if err != nil {
		return nil, err
	}
	sess.deviceUUID = identity.DeviceID
	now := a.clock.Now()

	if rec, ok := a.devices[identity.DeviceID]; ok && rec.Username == acc.Username {
		if err := rec.Reenroll(identity, kind, label, now); err != nil {
			return nil, ErrDeviceRevoked
		}
		copied := *rec
		return &copied, nil
	}

	rec := &device.TrustRecord{
		ID:             uuid.NewString(),
		DeviceID:       identity.DeviceID,
		Username:       acc.Username,
		State:          device.TrustActive,
		Identity:       identity,
		BiometricKind:  kind,
		BiometricLabel: label,
		EnrolledAt:     now,
	}
	a.devices[identity.DeviceID] = rec
	a.logger.Infow("device registered", "username", acc.Username, "device_id", identity.DeviceID, "trust_id", rec.ID)
	copied := *rec
	return &copied, nil
}

// ValidateDevice reports whether deviceID may be used for biometric login by
// the session's user.
func (a *Authority) ValidateDevice(token, deviceID string) (*Validation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	sess, acc, err := a.resolve(token)
	if err != nil {
		return nil, err
	}
	sess.deviceUUID = deviceID

	rec, ok := a.devices[deviceID]
	if !ok || rec.Username != acc.Username {
		return &Validation{Message: "Device is not registered"}, nil
	}

	copied := *rec
	switch rec.State {
	case device.TrustActive:
		now := a.clock.Now()
		rec.LastUsedAt = &now
		return &Validation{Valid: true, Record: &copied, Message: "Device is active"}, nil
	case device.TrustDisabled:
		return &Validation{Record: &copied, CanReactivate: true, Message: "Device is disabled"}, nil
	default:
		return &Validation{Record: &copied, Message: "Device has been revoked"}, nil
	}
}

// SetDeviceState applies an administrative transition by trust record id.
func (a *Authority) SetDeviceState(trustID string, next device.TrustState) (*device.TrustRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, rec := range a.devices {
		if rec.ID != trustID {
			continue
		}
		if err := rec.Transition(next); err != nil {
			return nil, err
		}
		a.logger.Infow("device state changed", "trust_id", trustID, "state", next)
		copied := *rec
		return &copied, nil
	}
	return nil, ErrDeviceNotFound
}

// SetDeviceStateAsUser is SetDeviceState restricted to the session user's devices.
func (a *Authority) SetDeviceStateAsUser(token, trustID string, next device.TrustState) (*device.TrustRecord, error) {
	a.mu.RLock()
	_, acc, err := a.resolve(token)
	owned := false
	if err == nil {
		for _, rec := range a.devices {
			if rec.ID == trustID && rec.Username == acc.Username {
				owned = true
			}
		}
	}
	a.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, ErrDeviceNotFound
	}
	return a.SetDeviceState(trustID, next)
}

// Devices lists trust records ordered by enrollment.
func (a *Authority) Devices() []device.TrustRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]device.TrustRecord, 0, len(a.devices))
	for _, rec := range a.devices {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EnrolledAt.Before(out[j].EnrolledAt) })
	return out
}

// LogAuth appends to the authentication log and binds the session to the device.
func (a *Authority) LogAuth(token string, entry AuthLogEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	sess, acc, err := a.resolve(token)
	if err != nil {
		return err
	}
	if entry.DeviceUUID != "" {
		sess.deviceUUID = entry.DeviceUUID
	}
	entry.UserID = acc.ID
	entry.SessionID = sess.id
	entry.At = a.clock.Now()
	a.logs = append(a.logs, entry)
	return nil
}

func (a *Authority) AuthLogs() []AuthLogEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]AuthLogEntry(nil), a.logs...)
}

// EndSession ends the user's sessions bound to deviceUUID and the calling
// session itself. Sessions on other devices are untouched.
func (a *Authority) EndSession(token, deviceUUID string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	current, acc, err := a.resolve(token)
	if err != nil {
		return 0, err
	}
	if current.deviceUUID != "" && current.deviceUUID != deviceUUID {
		return 0, fmt.Errorf("session belongs to another device")
	}

	ended := 0
	for _, sess := range a.sessions {
		if sess.userID != acc.ID || sess.ended {
			continue
		}
		if sess == current || sess.deviceUUID == deviceUUID {
			sess.ended = true
			ended++
		}
	}
	a.logger.Infow("device sessions ended", "username", acc.Username, "device_id", deviceUUID, "count", ended)
	return ended, nil
}

// ProfileImage returns the stored image of userID.
func (a *Authority) ProfileImage(userID int64) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	acc, ok := a.byID[userID]
	if !ok {
		return "", false
	}
	return acc.ProfileImage, true
}

// resolve must be called with mu held.
func (a *Authority) resolve(token string) (*serverSession, *Account, error) {
	claims, err := a.tokens.Verify(token)
	if err != nil {
		return nil, nil, ErrSessionExpired
	}
	sess, ok := a.sessions[claims.SessionID]
	if !ok || sess.ended {
		return nil, nil, ErrSessionExpired
	}
	acc, ok := a.byID[sess.userID]
	if !ok {
		return nil, nil, ErrSessionExpired
	}
	return sess, acc, nil
}
