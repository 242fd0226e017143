// Package vault keeps the single biometric-login credential of this device
// in the encrypted store.
package vault

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pmaschool/authcore/internal/domain/credential"
	"github.com/pmaschool/authcore/internal/domain/device"
	"github.com/pmaschool/authcore/internal/shared/biztime"
	"github.com/pmaschool/authcore/internal/shared/logger"
)

const (
	KeyCredential = "biometric_credentials"
	KeyEnabled    = "biometric_enabled"
)

type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Vault is single-writer by convention: auth flows never run concurrently.
type Vault struct {
	store  Store
	clock  biztime.Clock
	logger logger.Interface
}

func New(store Store, clock biztime.Clock, logger logger.Interface) *Vault {
	return &Vault{
		store:  store,
		clock:  clock,
		logger: logger,
	}
}

// Save overwrites any stored credential and marks biometrics enabled.
func (v *Vault) Save(ctx context.Context, username, secret, displayName string, snapshot device.Identity) error {
	cred, err := credential.NewBiometricCredential(username, secret, displayName, snapshot, v.clock.Now())
	if err != nil {
		return err
	}
	if err := v.write(ctx, cred); err != nil {
		return err
	}
	v.logger.Infow("biometric credential saved", "username", cred.Username, "device_id", snapshot.DeviceID)
	return nil
}

// Read returns the stored credential including its secret, or nil when none
// exists. An inconsistent record is deleted and reported as absent. Only the
// biometric gate reads through here, after the platform prompt succeeded.
func (v *Vault) Read(ctx context.Context) (*credential.BiometricCredential, error) {
	blob, found, err := v.store.Get(ctx, KeyCredential)
	if err != nil {
		return nil, fmt.Errorf("read credential: %w", err)
	}
	if !found {
		return nil, nil
	}

	var cred credential.BiometricCredential
	if err := json.Unmarshal([]byte(blob), &cred); err != nil {
		v.heal(ctx, "unreadable credential")
		return nil, nil
	}

	flag, _, err := v.store.Get(ctx, KeyEnabled)
	if err != nil {
		return nil, fmt.Errorf("read enabled flag: %w", err)
	}
	if !cred.IsConsistent() || flag != "true" {
		v.heal(ctx, "inconsistent credential")
		return nil, nil
	}
	return &cred, nil
}

// Clear removes the credential and the enabled flag. Idempotent.
func (v *Vault) Clear(ctx context.Context) error {
	if err := v.store.Delete(ctx, KeyCredential, KeyEnabled); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	v.logger.Infow("biometric credential cleared")
	return nil
}

// IsEnabled is true only when a consistent credential is stored.
func (v *Vault) IsEnabled(ctx context.Context) bool {
	cred, err := v.Read(ctx)
	if err != nil {
		v.logger.Warnw("failed to check biometric state", "error", err)
		return false
	}
	return cred != nil
}

// EnabledFlag reads only the enabled flag, without the integrity check.
func (v *Vault) EnabledFlag(ctx context.Context) (bool, error) {
	flag, _, err := v.store.Get(ctx, KeyEnabled)
	if err != nil {
		return false, fmt.Errorf("read enabled flag: %w", err)
	}
	return flag == "true", nil
}

// Enrollment returns the non-secret view of the stored credential.
func (v *Vault) Enrollment(ctx context.Context) (*credential.Enrollment, error) {
	cred, err := v.Read(ctx)
	if err != nil || cred == nil {
		return nil, err
	}
	return cred.Enrollment(), nil
}

// TouchLastUsed stamps lastUsedAt. No-op without a credential.
func (v *Vault) TouchLastUsed(ctx context.Context) error {
	return v.update(ctx, func(c *credential.BiometricCredential) error {
		c.Touch(v.clock.Now())
		return nil
	})
}

// Refresh rotates the stored secret and display name after a password login
// by the same user. No-op without a credential.
func (v *Vault) Refresh(ctx context.Context, username, secret, displayName string) error {
	return v.update(ctx, func(c *credential.BiometricCredential) error {
		return c.Rotate(username, secret, displayName)
	})
}

// UpdateProfileImage stores the latest profile image reference.
func (v *Vault) UpdateProfileImage(ctx context.Context, ref string) error {
	return v.update(ctx, func(c *credential.BiometricCredential) error {
		c.ProfileImageRef = ref
		return nil
	})
}

func (v *Vault) update(ctx context.Context, mutate func(*credential.BiometricCredential) error) error {
	cred, err := v.Read(ctx)
	if err != nil || cred == nil {
		return err
	}
	if err := mutate(cred); err != nil {
		return err
	}
	return v.write(ctx, cred)
}

func (v *Vault) write(ctx context.Context, cred *credential.BiometricCredential) error {
	blob, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	if err := v.store.Set(ctx, KeyCredential, string(blob)); err != nil {
		return fmt.Errorf("write credential: %w", err)
	}
	if err := v.store.Set(ctx, KeyEnabled, "true"); err != nil {
		return fmt.Errorf("write enabled flag: %w", err)
	}
	return nil
}

func (v *Vault) heal(ctx context.Context, reason string) {
	v.logger.Warnw("purging biometric credential", "reason", reason)
	if err := v.store.Delete(ctx, KeyCredential, KeyEnabled); err != nil {
		v.logger.Errorw("failed to purge biometric credential", "error", err)
	}
}
