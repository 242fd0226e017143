package device

import (
	"strings"
	"time"

	"github.com/pmaschool/authcore/internal/shared/errors"
)

// TrustState is the server-side authorization state of a device.
type TrustState string

const (
	TrustActive   TrustState = "active"
	TrustDisabled TrustState = "disabled"
	TrustRevoked  TrustState = "revoked"
)

// ParseTrustState normalizes a remote status string. Anything not recognized
// is treated as revoked.
func ParseTrustState(raw string) TrustState {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "active", "activo":
		return TrustActive
	case "disabled", "inactive", "deshabilitado", "inactivo":
		return TrustDisabled
	default:
		return TrustRevoked
	}
}

func (s TrustState) String() string { return string(s) }

// IsTerminal is true only for revoked.
func (s TrustState) IsTerminal() bool {
	return s == TrustRevoked
}

// CanTransitionTo reports whether an administrator may move a record from s to next.
func (s TrustState) CanTransitionTo(next TrustState) bool {
	if s.IsTerminal() || s == next {
		return false
	}
	switch next {
	case TrustActive, TrustDisabled, TrustRevoked:
		return true
	}
	return false
}

// TrustRecord is owned by the remote authority.
type TrustRecord struct {
	ID             string     `json:"id"`
	DeviceID       string     `json:"device_id"`
	Username       string     `json:"username"`
	State          TrustState `json:"state"`
	Identity       Identity   `json:"identity"`
	BiometricKind  string     `json:"biometric_type"`
	BiometricLabel string     `json:"biometric_type_display"`
	EnrolledAt     time.Time  `json:"enrolled_at"`
	LastUsedAt     *time.Time `json:"last_used_at,omitempty"`
}

// Transition applies an administrative state change.
func (r *TrustRecord) Transition(next TrustState) error {
	if !r.State.CanTransitionTo(next) {
		return errors.NewValidationError("invalid device state transition",
			string(r.State)+" -> "+string(next))
	}
	r.State = next
	return nil
}

// Reenroll reactivates a non-revoked record on a fresh registration.
func (r *TrustRecord) Reenroll(identity Identity, kind, label string, now time.Time) error {
	if r.State.IsTerminal() {
		return errors.NewValidationError("device is revoked", r.DeviceID)
	}
	r.Identity = identity
	r.BiometricKind = kind
	r.BiometricLabel = label
	r.State = TrustActive
	r.LastUsedAt = &now
	return nil
}
