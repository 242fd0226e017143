package usecases

import (
	"context"

	"github.com/pmaschool/authcore/internal/application/authority"
	"github.com/pmaschool/authcore/internal/shared/logger"
)

type LogoutUseCase struct {
	authority  authority.RemoteAuthority
	holder     SessionHolder
	identities IdentityProvider
	logger     logger.Interface
}

func NewLogoutUseCase(authority authority.RemoteAuthority, holder SessionHolder, identities IdentityProvider, logger logger.Interface) *LogoutUseCase {
	return &LogoutUseCase{
		authority:  authority,
		holder:     holder,
		identities: identities,
		logger:     logger,
	}
}

// Execute ends the remote session of this device only, then always clears the
// local session. The credential vault is left alone.
func (uc *LogoutUseCase) Execute(ctx context.Context) {
	username := ""
	if s := uc.holder.Current(); s != nil {
		username = s.User.Username
	}

	if identity, err := uc.identities.Get(ctx); err != nil {
		uc.logger.Warnw("device identity unavailable, skipping remote end session", "error", err)
	} else if err := uc.authority.EndSession(ctx, identity.DeviceID); err != nil {
		uc.logger.Warnw("failed to end remote session", "device_id", identity.DeviceID, "error", err)
	}

	if err := uc.authority.Reset(ctx); err != nil {
		uc.logger.Warnw("failed to reset remote session", "error", err)
	}
	uc.holder.Clear()

	uc.logger.Infow("user logged out", "username", username)
}
