package usecases

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pmaschool/authcore/internal/application/auth/helpers"
	"github.com/pmaschool/authcore/internal/application/authority"
	"github.com/pmaschool/authcore/internal/domain/session"
	autherrors "github.com/pmaschool/authcore/internal/shared/errors"
	"github.com/pmaschool/authcore/internal/shared/logger"
)

type LoginWithPasswordCommand struct {
	Username string `validate:"required,min=3"`
	Password string `validate:"required"`
}

type LoginWithPasswordUseCase struct {
	authority  authority.RemoteAuthority
	sessions   *helpers.SessionHelper
	vault      CredentialVault
	identities IdentityProvider
	validate   *validator.Validate
	logger     logger.Interface
}

func NewLoginWithPasswordUseCase(
	authority authority.RemoteAuthority,
	sessions *helpers.SessionHelper,
	vault CredentialVault,
	identities IdentityProvider,
	logger logger.Interface,
) *LoginWithPasswordUseCase {
	return &LoginWithPasswordUseCase{
		authority:  authority,
		sessions:   sessions,
		vault:      vault,
		identities: identities,
		validate:   validator.New(),
		logger:     logger,
	}
}

// ValidateCommand rejects malformed input before any remote call.
func (uc *LoginWithPasswordUseCase) ValidateCommand(cmd *LoginWithPasswordCommand) error {
	cmd.Username = strings.TrimSpace(cmd.Username)
	if err := uc.validate.Struct(cmd); err != nil {
		return autherrors.NewInvalidCredentialsError("username must have at least 3 characters and password is required")
	}
	return nil
}

func (uc *LoginWithPasswordUseCase) Execute(ctx context.Context, cmd LoginWithPasswordCommand) (*session.Session, error) {
	if err := uc.ValidateCommand(&cmd); err != nil {
		return nil, err
	}
	started := uc.sessions.Now()

	var deviceID string
	if identity, err := uc.identities.Get(ctx); err != nil {
		uc.logger.Warnw("device identity unavailable", "error", err)
	} else {
		deviceID = identity.DeviceID
	}

	if err := uc.sessions.CheckHealth(ctx); err != nil {
		return nil, err
	}

	login, err := uc.sessions.PasswordLogin(ctx, cmd.Username, cmd.Password)
	if err != nil {
		uc.logger.Infow("password login rejected", "username", cmd.Username, "kind", autherrors.KindOf(err))
		return nil, err
	}

	s, err := uc.sessions.Verify(ctx, login, deviceID)
	if err != nil {
		return nil, err
	}
	uc.sessions.Commit(s, cmd.Password)

	helpers.RunBestEffort(ctx, uc.logger,
		helpers.Hook{
			Name: "log-auth-event",
			Run: func(ctx context.Context) error {
				return uc.authority.LogAuthEvent(ctx, authority.AuthEvent{
					DeviceID: deviceID,
					Method:   authority.MethodTraditional,
					Success:  true,
					Duration: uc.sessions.Now().Sub(started),
				})
			},
		},
		helpers.Hook{
			Name: "refresh-biometric-credential",
			Run: func(ctx context.Context) error {
				if !uc.vault.IsEnabled(ctx) {
					return nil
				}
				return uc.vault.Refresh(ctx, s.User.Username, cmd.Password, s.User.DisplayName)
			},
		},
	)

	uc.logger.Infow("user logged in with password", "username", s.User.Username, "device_id", deviceID)
	return s, nil
}
