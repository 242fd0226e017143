// Package auth orchestrates login, logout and biometric opt-in on top of the
// device identity, the credential vault, the biometric gate and the remote
// authority.
package auth

import (
	"context"

	"github.com/pmaschool/authcore/internal/application/auth/helpers"
	"github.com/pmaschool/authcore/internal/application/auth/usecases"
	"github.com/pmaschool/authcore/internal/application/authority"
	"github.com/pmaschool/authcore/internal/domain/biometric"
	"github.com/pmaschool/authcore/internal/domain/credential"
	"github.com/pmaschool/authcore/internal/domain/session"
	"github.com/pmaschool/authcore/internal/shared/biztime"
	"github.com/pmaschool/authcore/internal/shared/logger"
)

// Service is the UI-facing surface. Flows are not reentrant: callers run one
// at a time.
type Service struct {
	loginWithPasswordUC   *usecases.LoginWithPasswordUseCase
	loginWithBiometricsUC *usecases.LoginWithBiometricsUseCase
	logoutUC              *usecases.LogoutUseCase
	enableBiometricsUC    *usecases.EnableBiometricsUseCase
	disableBiometricsUC   *usecases.DisableBiometricsUseCase
	holder                usecases.SessionHolder
	vault                 usecases.CredentialVault
	gate                  usecases.BiometricGate
	logger                logger.Interface
}

func NewService(
	remote authority.RemoteAuthority,
	holder usecases.SessionHolder,
	vault usecases.CredentialVault,
	gate usecases.BiometricGate,
	identities usecases.IdentityProvider,
	expiry helpers.ExpiryResetter,
	clock biztime.Clock,
	logger logger.Interface,
) *Service {
	sessions := helpers.NewSessionHelper(remote, holder, expiry, clock, logger.Named("session"))
	return &Service{
		loginWithPasswordUC:   usecases.NewLoginWithPasswordUseCase(remote, sessions, vault, identities, logger),
		loginWithBiometricsUC: usecases.NewLoginWithBiometricsUseCase(remote, sessions, holder, vault, gate, identities, logger),
		logoutUC:              usecases.NewLogoutUseCase(remote, holder, identities, logger),
		enableBiometricsUC:    usecases.NewEnableBiometricsUseCase(remote, holder, vault, gate, identities, logger),
		disableBiometricsUC:   usecases.NewDisableBiometricsUseCase(vault, logger),
		holder:                holder,
		vault:                 vault,
		gate:                  gate,
		logger:                logger,
	}
}

func (s *Service) Login(ctx context.Context, username, password string) (*session.Session, error) {
	return s.loginWithPasswordUC.Execute(ctx, usecases.LoginWithPasswordCommand{
		Username: username,
		Password: password,
	})
}

// LoginWithBiometrics returns an error for which errors.IsSilent is true when
// the user canceled the prompt.
func (s *Service) LoginWithBiometrics(ctx context.Context, prompt biometric.PromptConfig) (*session.Session, error) {
	return s.loginWithBiometricsUC.Execute(ctx, usecases.LoginWithBiometricsCommand{Prompt: prompt})
}

func (s *Service) Logout(ctx context.Context) {
	s.logoutUC.Execute(ctx)
}

func (s *Service) EnableBiometrics(ctx context.Context, prompt biometric.PromptConfig) (*credential.Enrollment, error) {
	return s.enableBiometricsUC.Execute(ctx, usecases.EnableBiometricsCommand{Prompt: prompt})
}

func (s *Service) DisableBiometrics(ctx context.Context) error {
	return s.disableBiometricsUC.Execute(ctx)
}

func (s *Service) IsBiometricAvailable(ctx context.Context) biometric.Availability {
	return s.gate.CheckAvailability(ctx)
}

func (s *Service) IsBiometricEnabled(ctx context.Context) bool {
	return s.vault.IsEnabled(ctx)
}

// BiometricLabel names the available biometric for buttons and prompts.
func (s *Service) BiometricLabel(ctx context.Context) string {
	return s.gate.Label(ctx)
}

// CurrentEnrollment is the stored credential without its secret, or nil.
func (s *Service) CurrentEnrollment(ctx context.Context) (*credential.Enrollment, error) {
	return s.vault.Enrollment(ctx)
}

func (s *Service) CurrentSession() *session.Session {
	return s.holder.Current()
}
