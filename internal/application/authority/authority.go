// Package authority defines the contract of the remote school backend that
// owns accounts, sessions and device trust records.
package authority

import (
	"context"
	"errors"
	"time"

	"github.com/pmaschool/authcore/internal/domain/device"
	"github.com/pmaschool/authcore/internal/domain/session"
)

var (
	// ErrUnauthorized means the current remote session is no longer valid.
	// Implementations also notify the expiry monitor when they return it.
	ErrUnauthorized = errors.New("remote session unauthorized")
	// ErrInvalidCredentials is a definitive rejection of username and secret.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNoRoleAssigned means the credentials are valid but the account has no role.
	ErrNoRoleAssigned = errors.New("no role assigned")
	// ErrUnreachable covers transport failures and unhealthy servers.
	ErrUnreachable = errors.New("authority unreachable")
)

type LoginResult struct {
	Token      string
	User       session.User
	RemoteRole string
}

// SessionInfo is what the authority reports for the current token.
type SessionInfo struct {
	User       session.User
	RemoteRole string
	ExpiresAt  time.Time
}

type DeviceValidation struct {
	Valid         bool
	TrustRecordID string
	State         device.TrustState
	CanReactivate bool
	Message       string
}

type RegisterDeviceRequest struct {
	Identity       device.Identity
	BiometricKind  string
	BiometricLabel string
	DeviceInfoJSON string
}

type AuthMethod string

const (
	MethodTraditional AuthMethod = "traditional"
	MethodBiometric   AuthMethod = "biometric"
)

// AuthEvent is the audit record of one login attempt.
type AuthEvent struct {
	TrustRecordID string        `json:"trust_record_id,omitempty"`
	DeviceID      string        `json:"device_id,omitempty"`
	Method        AuthMethod    `json:"method"`
	Success       bool          `json:"success"`
	ErrorCode     string        `json:"error_code,omitempty"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	SessionID     string        `json:"session_id,omitempty"`
	Duration      time.Duration `json:"-"`
}

// DurationMs is the wire form of Duration.
func (e AuthEvent) DurationMs() int64 {
	return e.Duration.Milliseconds()
}

// RemoteAuthority is the remote backend. Every call may fail with
// ErrUnauthorized; PasswordLogin additionally distinguishes
// ErrInvalidCredentials and ErrNoRoleAssigned.
type RemoteAuthority interface {
	CheckHealth(ctx context.Context) error
	PasswordLogin(ctx context.Context, username, secret string) (*LoginResult, error)
	VerifySession(ctx context.Context) (*SessionInfo, error)
	ValidateDevice(ctx context.Context, deviceID string) (*DeviceValidation, error)
	RegisterDevice(ctx context.Context, req RegisterDeviceRequest) (*device.TrustRecord, error)
	RevokeDevice(ctx context.Context, trustRecordID string) error
	LogAuthEvent(ctx context.Context, event AuthEvent) error
	// EndSession terminates only the session bound to deviceID.
	EndSession(ctx context.Context, deviceID string) error
	FetchProfileImage(ctx context.Context, userID int64) (string, error)
	// Reset drops any locally cached remote session token.
	Reset(ctx context.Context) error
}

// UnauthorizedNotifier receives the "session no longer valid" signal.
type UnauthorizedNotifier interface {
	Notify()
}

// NotifierFunc adapts a function to UnauthorizedNotifier.
type NotifierFunc func()

func (f NotifierFunc) Notify() { f() }
