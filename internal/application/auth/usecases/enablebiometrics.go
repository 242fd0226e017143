package usecases

import (
	"context"
	"encoding/json"

	"github.com/pmaschool/authcore/internal/application/authority"
	"github.com/pmaschool/authcore/internal/domain/biometric"
	"github.com/pmaschool/authcore/internal/domain/credential"
	autherrors "github.com/pmaschool/authcore/internal/shared/errors"
	"github.com/pmaschool/authcore/internal/shared/logger"
)

type EnableBiometricsCommand struct {
	Prompt biometric.PromptConfig
}

type EnableBiometricsUseCase struct {
	authority  authority.RemoteAuthority
	holder     SessionHolder
	vault      CredentialVault
	gate       BiometricGate
	identities IdentityProvider
	logger     logger.Interface
}

func NewEnableBiometricsUseCase(
	authority authority.RemoteAuthority,
	holder SessionHolder,
	vault CredentialVault,
	gate BiometricGate,
	identities IdentityProvider,
	logger logger.Interface,
) *EnableBiometricsUseCase {
	return &EnableBiometricsUseCase{
		authority:  authority,
		holder:     holder,
		vault:      vault,
		gate:       gate,
		identities: identities,
		logger:     logger,
	}
}

// Execute stores the current session's password for biometric login. A fresh
// biometric confirmation is required first, even though the user is signed in.
func (uc *EnableBiometricsUseCase) Execute(ctx context.Context, cmd EnableBiometricsCommand) (*credential.Enrollment, error) {
	current := uc.holder.Current()
	secret, ok := uc.holder.Secret()
	if current == nil || !ok {
		return nil, autherrors.NewSessionExpiredError()
	}

	availability := uc.gate.CheckAvailability(ctx)
	outcome := uc.gate.Confirm(ctx, cmd.Prompt)
	if !outcome.Success {
		uc.logger.Infow("biometric confirmation failed", "kind", outcome.ErrorKind)
		return nil, outcome.Err()
	}

	identity, err := uc.identities.Get(ctx)
	if err != nil {
		uc.logger.Warnw("device identity unavailable for snapshot", "error", err)
	}

	if err := uc.vault.Save(ctx, current.User.Username, secret, current.User.DisplayName, identity); err != nil {
		uc.logger.Errorw("failed to save biometric credential", "username", current.User.Username, "error", err)
		return nil, autherrors.NewUnexpectedError("could not store credential")
	}
	if current.User.ProfileImageRef != "" {
		if err := uc.vault.UpdateProfileImage(ctx, current.User.ProfileImageRef); err != nil {
			uc.logger.Warnw("failed to store profile image reference", "error", err)
		}
	}

	if !identity.IsZero() {
		req := authority.RegisterDeviceRequest{
			Identity:       identity,
			BiometricKind:  string(availability.PrimaryKind()),
			BiometricLabel: uc.gate.Label(ctx),
		}
		if info, err := json.Marshal(identity); err != nil {
			uc.logger.Warnw("failed to encode device info, registering without it", "device_id", identity.DeviceID, "error", err)
		} else {
			req.DeviceInfoJSON = string(info)
		}
		if _, err := uc.authority.RegisterDevice(ctx, req); err != nil {
			uc.logger.Warnw("device registration failed, biometrics stay enabled locally", "device_id", identity.DeviceID, "error", err)
		}
	}

	uc.logger.Infow("biometric login enabled", "username", current.User.Username, "device_id", identity.DeviceID)
	return uc.vault.Enrollment(ctx)
}
