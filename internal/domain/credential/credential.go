// Package credential defines the single biometric-login credential a device
// may hold.
package credential

import (
	"strings"
	"time"

	"github.com/pmaschool/authcore/internal/domain/device"
	"github.com/pmaschool/authcore/internal/shared/errors"
)

// BiometricCredential is stored encrypted on the device. At most one exists.
type BiometricCredential struct {
	Username        string          `json:"username"`
	Secret          string          `json:"secret"`
	DisplayName     string          `json:"display_name"`
	ProfileImageRef string          `json:"profile_image_ref,omitempty"`
	Enabled         bool            `json:"enabled"`
	EnrolledAt      time.Time       `json:"enrolled_at"`
	LastUsedAt      *time.Time      `json:"last_used_at,omitempty"`
	DeviceSnapshot  device.Identity `json:"device_snapshot"`
}

func NewBiometricCredential(username, secret, displayName string, snapshot device.Identity, now time.Time) (*BiometricCredential, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.NewValidationError("username is required")
	}
	if secret == "" {
		return nil, errors.NewValidationError("secret is required")
	}
	if displayName == "" {
		displayName = username
	}
	return &BiometricCredential{
		Username:       username,
		Secret:         secret,
		DisplayName:    displayName,
		Enabled:        true,
		EnrolledAt:     now.UTC(),
		DeviceSnapshot: snapshot,
	}, nil
}

// IsConsistent is the integrity rule applied on every read.
func (c *BiometricCredential) IsConsistent() bool {
	return c != nil && c.Username != "" && c.Secret != "" && c.Enabled
}

func (c *BiometricCredential) Touch(now time.Time) {
	t := now.UTC()
	c.LastUsedAt = &t
}

// Rotate replaces the secret after a password change. Only the same user may
// rotate the stored credential.
func (c *BiometricCredential) Rotate(username, secret, displayName string) error {
	if !strings.EqualFold(strings.TrimSpace(username), c.Username) {
		return errors.NewValidationError("credential belongs to another user", c.Username)
	}
	if secret == "" {
		return errors.NewValidationError("secret is required")
	}
	c.Secret = secret
	if displayName != "" {
		c.DisplayName = displayName
	}
	return nil
}

// Enrollment is the non-secret projection shown on a devices screen.
type Enrollment struct {
	Username        string          `json:"username" yaml:"username"`
	DisplayName     string          `json:"display_name" yaml:"display_name"`
	ProfileImageRef string          `json:"profile_image_ref,omitempty" yaml:"profile_image_ref,omitempty"`
	EnrolledAt      time.Time       `json:"enrolled_at" yaml:"enrolled_at"`
	LastUsedAt      *time.Time      `json:"last_used_at,omitempty" yaml:"last_used_at,omitempty"`
	Device          device.Identity `json:"device" yaml:"device"`
}

func (c *BiometricCredential) Enrollment() *Enrollment {
	return &Enrollment{
		Username:        c.Username,
		DisplayName:     c.DisplayName,
		ProfileImageRef: c.ProfileImageRef,
		EnrolledAt:      c.EnrolledAt,
		LastUsedAt:      c.LastUsedAt,
		Device:          c.DeviceSnapshot,
	}
}
