package usecases

import (
	"context"
	"errors"
	"fmt"

	"github.com/pmaschool/authcore/internal/application/auth/helpers"
	"github.com/pmaschool/authcore/internal/application/authority"
	"github.com/pmaschool/authcore/internal/domain/biometric"
	"github.com/pmaschool/authcore/internal/domain/device"
	"github.com/pmaschool/authcore/internal/domain/session"
	autherrors "github.com/pmaschool/authcore/internal/shared/errors"
	"github.com/pmaschool/authcore/internal/shared/logger"
)

type LoginWithBiometricsCommand struct {
	Prompt biometric.PromptConfig
}

type LoginWithBiometricsUseCase struct {
	authority  authority.RemoteAuthority
	sessions   *helpers.SessionHelper
	holder     SessionHolder
	vault      CredentialVault
	gate       BiometricGate
	identities IdentityProvider
	logger     logger.Interface
}

func NewLoginWithBiometricsUseCase(
	authority authority.RemoteAuthority,
	sessions *helpers.SessionHelper,
	holder SessionHolder,
	vault CredentialVault,
	gate BiometricGate,
	identities IdentityProvider,
	logger logger.Interface,
) *LoginWithBiometricsUseCase {
	return &LoginWithBiometricsUseCase{
		authority:  authority,
		sessions:   sessions,
		holder:     holder,
		vault:      vault,
		gate:       gate,
		identities: identities,
		logger:     logger,
	}
}

// Execute unlocks the stored credential and logs in with it. A rejected
// secret or a revoked device purges the vault; a disabled device keeps it.
func (uc *LoginWithBiometricsUseCase) Execute(ctx context.Context, cmd LoginWithBiometricsCommand) (s *session.Session, err error) {
	defer func() {
		if r := recover(); r != nil {
			uc.logger.Errorw("biometric login aborted", "panic", fmt.Sprintf("%v", r))
			uc.sessions.ForceLogout(ctx, "unexpected failure")
			s, err = nil, autherrors.NewUnexpectedError()
		}
	}()

	started := uc.sessions.Now()

	identity, idErr := uc.identities.Get(ctx)
	if idErr != nil {
		uc.logger.Warnw("device identity unavailable, skipping trust check", "error", idErr)
	}

	outcome := uc.gate.Authenticate(ctx, cmd.Prompt)
	if !outcome.Success {
		if outcome.ErrorKind == biometric.ErrUserCanceled {
			uc.logger.Debugw("biometric login canceled by user")
		} else {
			uc.logger.Infow("biometric authentication failed", "kind", outcome.ErrorKind)
		}
		return nil, outcome.Err()
	}

	if err := uc.sessions.CheckHealth(ctx); err != nil {
		return nil, err
	}

	login, err := uc.sessions.PasswordLogin(ctx, outcome.Username, outcome.Secret)
	if err != nil {
		if autherrors.KindOf(err) == autherrors.ErrorTypeInvalidCredentials {
			uc.logger.Warnw("stored biometric secret rejected, purging vault", "username", outcome.Username)
			if clearErr := uc.vault.Clear(ctx); clearErr != nil {
				uc.logger.Errorw("failed to purge stale credential", "error", clearErr)
			}
			return nil, autherrors.NewInvalidCredentialsError(autherrors.DetailStaleCredentials)
		}
		return nil, err
	}

	s, err = uc.sessions.Verify(ctx, login, identity.DeviceID)
	if err != nil {
		return nil, err
	}

	if err := uc.vault.TouchLastUsed(ctx); err != nil {
		uc.logger.Warnw("failed to update credential last use", "error", err)
	}

	var trustRecordID string
	if idErr == nil {
		trustRecordID, err = uc.checkTrust(ctx, identity)
		if err != nil {
			return nil, err
		}
	}

	uc.sessions.Commit(s, outcome.Secret)

	hooks := []helpers.Hook{{
		Name: "log-auth-event",
		Run: func(ctx context.Context) error {
			return uc.authority.LogAuthEvent(ctx, authority.AuthEvent{
				TrustRecordID: trustRecordID,
				DeviceID:      identity.DeviceID,
				Method:        authority.MethodBiometric,
				Success:       true,
				Duration:      uc.sessions.Now().Sub(started),
			})
		},
	}}
	if trustRecordID != "" {
		hooks = append(hooks, helpers.Hook{
			Name: "refresh-profile-image",
			Run: func(ctx context.Context) error {
				ref, err := uc.authority.FetchProfileImage(ctx, s.User.ID)
				if err != nil || ref == "" {
					return err
				}
				uc.holder.UpdateProfileImage(ref)
				return uc.vault.UpdateProfileImage(ctx, ref)
			},
		})
	}
	helpers.RunBestEffort(ctx, uc.logger, hooks...)

	uc.logger.Infow("user logged in with biometrics", "username", s.User.Username, "device_id", identity.DeviceID)
	return s, nil
}

// checkTrust returns the trust record id of a valid device. Only an
// unreachable validator is swallowed and yields no id; any other failure
// means the fresh session cannot be trusted and is dropped.
func (uc *LoginWithBiometricsUseCase) checkTrust(ctx context.Context, identity device.Identity) (string, error) {
	validation, err := uc.authority.ValidateDevice(ctx, identity.DeviceID)
	if err != nil {
		if errors.Is(err, authority.ErrUnreachable) {
			uc.logger.Warnw("device validation unavailable, continuing", "device_id", identity.DeviceID, "error", err)
			return "", nil
		}
		uc.logger.Warnw("device validation rejected the session", "device_id", identity.DeviceID, "error", err)
		uc.sessions.ForceLogout(ctx, "device validation failed")
		return "", autherrors.NewSessionEstablishError(err.Error())
	}
	if validation.Valid {
		return validation.TrustRecordID, nil
	}

	if validation.State == device.TrustDisabled {
		uc.logger.Warnw("device disabled by administrator", "device_id", identity.DeviceID)
		uc.sessions.ForceLogout(ctx, "device disabled")
		return "", autherrors.NewDeviceDisabledError()
	}

	uc.logger.Warnw("device revoked, purging vault", "device_id", identity.DeviceID, "state", validation.State)
	uc.sessions.ForceLogout(ctx, "device revoked")
	if err := uc.vault.Clear(ctx); err != nil {
		uc.logger.Errorw("failed to purge credential of revoked device", "error", err)
	}
	return "", autherrors.NewDeviceRevokedError()
}
