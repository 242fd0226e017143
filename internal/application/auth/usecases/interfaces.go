package usecases

import (
	"context"

	"github.com/pmaschool/authcore/internal/domain/biometric"
	"github.com/pmaschool/authcore/internal/domain/credential"
	"github.com/pmaschool/authcore/internal/domain/device"
	"github.com/pmaschool/authcore/internal/domain/session"
)

// CredentialVault is the vault without its secret-exposing read.
type CredentialVault interface {
	Save(ctx context.Context, username, secret, displayName string, snapshot device.Identity) error
	Clear(ctx context.Context) error
	IsEnabled(ctx context.Context) bool
	Enrollment(ctx context.Context) (*credential.Enrollment, error)
	TouchLastUsed(ctx context.Context) error
	Refresh(ctx context.Context, username, secret, displayName string) error
	UpdateProfileImage(ctx context.Context, ref string) error
}

type BiometricGate interface {
	CheckAvailability(ctx context.Context) biometric.Availability
	Label(ctx context.Context) string
	Authenticate(ctx context.Context, cfg biometric.PromptConfig) biometric.Outcome
	Confirm(ctx context.Context, cfg biometric.PromptConfig) biometric.Outcome
}

type IdentityProvider interface {
	Get(ctx context.Context) (device.Identity, error)
}

// SessionHolder is the process-wide session holder.
type SessionHolder interface {
	Commit(s *session.Session, secret string)
	Clear()
	Current() *session.Session
	Secret() (string, bool)
	UpdateProfileImage(ref string)
}
