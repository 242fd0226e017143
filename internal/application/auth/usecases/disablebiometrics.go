package usecases

import (
	"context"

	autherrors "github.com/pmaschool/authcore/internal/shared/errors"
	"github.com/pmaschool/authcore/internal/shared/logger"
)

type DisableBiometricsUseCase struct {
	vault  CredentialVault
	logger logger.Interface
}

func NewDisableBiometricsUseCase(vault CredentialVault, logger logger.Interface) *DisableBiometricsUseCase {
	return &DisableBiometricsUseCase{
		vault:  vault,
		logger: logger,
	}
}

// Execute purges the vault locally. No network call is made.
func (uc *DisableBiometricsUseCase) Execute(ctx context.Context) error {
	if err := uc.vault.Clear(ctx); err != nil {
		uc.logger.Errorw("failed to disable biometric login", "error", err)
		return autherrors.NewUnexpectedError("could not remove stored credential")
	}
	uc.logger.Infow("biometric login disabled")
	return nil
}
