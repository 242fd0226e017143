package usecases

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmaschool/authcore/internal/application/authority"
	"github.com/pmaschool/authcore/internal/domain/biometric"
	"github.com/pmaschool/authcore/internal/domain/device"
	autherrors "github.com/pmaschool/authcore/internal/shared/errors"
)

func TestLoginWithBiometrics_Success(t *testing.T) {
	f := newFixture()
	f.enroll("maria", "s3cret")
	f.authority.FetchProfileImageFunc = func(_ context.Context, userID int64) (string, error) {
		assert.Equal(t, int64(42), userID)
		return "/web/image/res.users/42/image_128", nil
	}

	s, err := f.biometricLogin().Execute(context.Background(), LoginWithBiometricsCommand{})

	require.NoError(t, err)
	assert.Equal(t, "maria", s.User.Username)
	assert.Equal(t, testIdentity.DeviceID, s.DeviceID)
	assert.True(t, f.holder.IsAuthenticated())
	assert.Equal(t, 1, f.expiry.resets)
	assert.Equal(t, []string{testIdentity.DeviceID}, f.authority.validated)

	stored := f.vault.stored()
	require.NotNil(t, stored)
	assert.NotNil(t, stored.LastUsedAt)
	assert.Equal(t, "/web/image/res.users/42/image_128", stored.ProfileImageRef)
	assert.Equal(t, "/web/image/res.users/42/image_128", f.holder.Current().User.ProfileImageRef)

	require.Len(t, f.authority.events, 1)
	assert.Equal(t, authority.MethodBiometric, f.authority.events[0].Method)
	assert.Equal(t, "trust-1", f.authority.events[0].TrustRecordID)
}

func TestLoginWithBiometrics_GateFailures(t *testing.T) {
	tests := []struct {
		name   string
		kind   biometric.ErrorKind
		silent bool
	}{
		{"user canceled", biometric.ErrUserCanceled, true},
		{"system canceled", biometric.ErrSystemCanceled, false},
		{"lockout", biometric.ErrLockout, false},
		{"not enrolled", biometric.ErrNotEnrolled, false},
		{"no stored credential", biometric.ErrNoStoredCredential, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.enroll("maria", "s3cret")
			f.gate.AuthenticateFunc = func(context.Context) biometric.Outcome { return biometric.Failed(tt.kind) }

			_, err := f.biometricLogin().Execute(context.Background(), LoginWithBiometricsCommand{})

			require.Error(t, err)
			assert.Equal(t, tt.kind.ErrorType(), autherrors.KindOf(err))
			assert.Equal(t, tt.silent, autherrors.IsSilent(err))
			assert.Empty(t, f.authority.logins)
			assert.NotNil(t, f.vault.stored())
		})
	}
}

func TestLoginWithBiometrics_NotEnabled(t *testing.T) {
	f := newFixture()

	_, err := f.biometricLogin().Execute(context.Background(), LoginWithBiometricsCommand{})

	assert.Equal(t, autherrors.ErrorTypeBiometricNotEnabled, autherrors.KindOf(err))
}

func TestLoginWithBiometrics_StaleSecretPurgesVaultWithoutRetry(t *testing.T) {
	f := newFixture()
	f.enroll("maria", "old-password")
	f.authority.PasswordLoginFunc = func(context.Context, string, string) (*authority.LoginResult, error) {
		return nil, authority.ErrInvalidCredentials
	}

	_, err := f.biometricLogin().Execute(context.Background(), LoginWithBiometricsCommand{})

	assert.Equal(t, autherrors.ErrorTypeInvalidCredentials, autherrors.KindOf(err))
	assert.Nil(t, f.vault.stored())
	assert.Equal(t, 1, f.vault.clears)
	assert.Len(t, f.authority.logins, 1)
	assert.False(t, f.holder.IsAuthenticated())
	assert.Zero(t, f.expiry.resets)
}

func TestLoginWithBiometrics_ServerUnavailableKeepsVault(t *testing.T) {
	f := newFixture()
	f.enroll("maria", "s3cret")
	f.authority.CheckHealthFunc = func(context.Context) error { return authority.ErrUnreachable }

	_, err := f.biometricLogin().Execute(context.Background(), LoginWithBiometricsCommand{})

	assert.Equal(t, autherrors.ErrorTypeServerUnavailable, autherrors.KindOf(err))
	assert.NotNil(t, f.vault.stored())
	assert.Empty(t, f.authority.logins)
}

func TestLoginWithBiometrics_VerifyFailureKeepsVault(t *testing.T) {
	f := newFixture()
	f.enroll("maria", "s3cret")
	f.authority.VerifySessionFunc = func(context.Context) (*authority.SessionInfo, error) {
		return nil, errors.New("timeout")
	}

	_, err := f.biometricLogin().Execute(context.Background(), LoginWithBiometricsCommand{})

	assert.Equal(t, autherrors.ErrorTypeSessionEstablish, autherrors.KindOf(err))
	assert.False(t, f.holder.IsAuthenticated())
	assert.NotNil(t, f.vault.stored())
	assert.Equal(t, 1, f.authority.resets)
}

func TestLoginWithBiometrics_DeviceTrust(t *testing.T) {
	tests := []struct {
		name   string
		state  device.TrustState
		want   autherrors.ErrorType
		purged bool
	}{
		{"disabled keeps credential", device.TrustDisabled, autherrors.ErrorTypeDeviceDisabled, false},
		{"revoked purges credential", device.TrustRevoked, autherrors.ErrorTypeDeviceRevoked, true},
		{"unrecognized state purges credential", device.ParseTrustState("archived"), autherrors.ErrorTypeDeviceRevoked, true},
		{"missing state purges credential", device.ParseTrustState(""), autherrors.ErrorTypeDeviceRevoked, true},
		{"contradictory active purges credential", device.TrustActive, autherrors.ErrorTypeDeviceRevoked, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.enroll("maria", "s3cret")
			f.authority.ValidateDeviceFunc = func(context.Context, string) (*authority.DeviceValidation, error) {
				return &authority.DeviceValidation{Valid: false, State: tt.state}, nil
			}

			s, err := f.biometricLogin().Execute(context.Background(), LoginWithBiometricsCommand{})

			assert.Nil(t, s)
			assert.Equal(t, tt.want, autherrors.KindOf(err))
			assert.False(t, f.holder.IsAuthenticated())
			assert.Equal(t, 1, f.authority.resets)
			assert.Equal(t, tt.purged, f.vault.stored() == nil)
			assert.Empty(t, f.authority.events)
		})
	}
}

func TestLoginWithBiometrics_ValidationTransportErrorIsSwallowed(t *testing.T) {
	f := newFixture()
	f.enroll("maria", "s3cret")
	f.authority.ValidateDeviceFunc = func(context.Context, string) (*authority.DeviceValidation, error) {
		return nil, authority.ErrUnreachable
	}
	f.authority.FetchProfileImageFunc = func(context.Context, int64) (string, error) {
		t.Error("profile image is refreshed only for a validated device")
		return "", nil
	}

	s, err := f.biometricLogin().Execute(context.Background(), LoginWithBiometricsCommand{})

	require.NoError(t, err)
	assert.Same(t, s, f.holder.Current())
	require.Len(t, f.authority.events, 1)
	assert.Empty(t, f.authority.events[0].TrustRecordID)
	assert.NotNil(t, f.vault.stored())
}

func TestLoginWithBiometrics_ValidationRejectionCommitsNothing(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"session rejected", fmt.Errorf("%w: access denied", authority.ErrUnauthorized)},
		{"server fault", errors.New("could not connect to server")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.enroll("maria", "s3cret")
			f.authority.ValidateDeviceFunc = func(context.Context, string) (*authority.DeviceValidation, error) {
				return nil, tt.err
			}

			s, err := f.biometricLogin().Execute(context.Background(), LoginWithBiometricsCommand{})

			assert.Nil(t, s)
			assert.Equal(t, autherrors.ErrorTypeSessionEstablish, autherrors.KindOf(err))
			assert.Nil(t, f.holder.Current())
			assert.Zero(t, f.expiry.resets)
			assert.Equal(t, 1, f.authority.resets)
			assert.NotNil(t, f.vault.stored())
			assert.Empty(t, f.authority.events)
		})
	}
}

func TestLoginWithBiometrics_ServerFaultOnLoginKeepsVault(t *testing.T) {
	f := newFixture()
	f.enroll("maria", "s3cret")
	f.authority.PasswordLoginFunc = func(context.Context, string, string) (*authority.LoginResult, error) {
		return nil, errors.New("could not connect to server")
	}

	_, err := f.biometricLogin().Execute(context.Background(), LoginWithBiometricsCommand{})

	assert.Equal(t, autherrors.ErrorTypeUnexpected, autherrors.KindOf(err))
	assert.NotNil(t, f.vault.stored())
	assert.Zero(t, f.vault.clears)
	assert.False(t, f.holder.IsAuthenticated())
}

func TestLoginWithBiometrics_WithoutIdentitySkipsTrustCheck(t *testing.T) {
	f := newFixture()
	f.enroll("maria", "s3cret")
	f.identities.err = errors.New("secure store locked")

	s, err := f.biometricLogin().Execute(context.Background(), LoginWithBiometricsCommand{})

	require.NoError(t, err)
	assert.Empty(t, s.DeviceID)
	assert.Empty(t, f.authority.validated)
}

func TestLoginWithBiometrics_PanicCommitsNothing(t *testing.T) {
	f := newFixture()
	f.enroll("maria", "s3cret")
	f.authority.ValidateDeviceFunc = func(context.Context, string) (*authority.DeviceValidation, error) {
		panic("nil map")
	}

	s, err := f.biometricLogin().Execute(context.Background(), LoginWithBiometricsCommand{})

	assert.Nil(t, s)
	assert.Equal(t, autherrors.ErrorTypeUnexpected, autherrors.KindOf(err))
	assert.False(t, f.holder.IsAuthenticated())
}

func TestLoginFlows_ShareDeviceID(t *testing.T) {
	f := newFixture()
	f.enroll("maria", "s3cret")

	byPassword, err := f.passwordLogin().Execute(context.Background(), LoginWithPasswordCommand{Username: "maria", Password: "s3cret"})
	require.NoError(t, err)
	byBiometrics, err := f.biometricLogin().Execute(context.Background(), LoginWithBiometricsCommand{})
	require.NoError(t, err)

	assert.Equal(t, byPassword.DeviceID, byBiometrics.DeviceID)
}
