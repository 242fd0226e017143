package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmaschool/authcore/internal/infrastructure/devauthority"
	"github.com/pmaschool/authcore/internal/shared/biztime"
	sharedConfig "github.com/pmaschool/authcore/internal/shared/config"
	"github.com/pmaschool/authcore/internal/shared/logger"
)

func TestParseSeedUser(t *testing.T) {
	tests := []struct {
		raw     string
		want    sharedConfig.SeedUser
		wantErr bool
	}{
		{raw: "mlopez:pw:docente", want: sharedConfig.SeedUser{Username: "mlopez", Password: "pw", Role: "docente"}},
		{raw: "ana:pw:administrativo:Ana Diaz", want: sharedConfig.SeedUser{Username: "ana", Password: "pw", Role: "administrativo", Name: "Ana Diaz"}},
		{raw: "norole:pw:", want: sharedConfig.SeedUser{Username: "norole", Password: "pw"}},
		{raw: "mlopez:pw", wantErr: true},
		{raw: ":pw:docente", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseSeedUser(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCollectSeedUsers_FlagsOverrideConfig(t *testing.T) {
	configured := []sharedConfig.SeedUser{
		{Username: "mlopez", Password: "old", Role: "docente"},
		{Username: "ana", Password: "pw", Role: "administrativo"},
	}
	users, err := collectSeedUsers(configured, []string{"MLopez:new:docente", "juan:pw:obrero"})
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "new", users[0].Password)
	assert.Equal(t, "ana", users[1].Username)
	assert.Equal(t, "juan", users[2].Username)
}

func TestSeed(t *testing.T) {
	a := devauthority.New(sharedConfig.DevAuthorityConfig{
		JWTSecret:         "test-secret-0123456789",
		SessionTTLMinutes: 60,
		BcryptCost:        4,
		Database:          "school",
	}, biztime.SystemClock(), logger.NewNop())

	require.NoError(t, seed(a, []sharedConfig.SeedUser{{Username: "mlopez", Password: "pw", Role: "docente"}}))
	_, acc, err := a.Authenticate("mlopez", "pw")
	require.NoError(t, err)
	assert.Equal(t, "mlopez", acc.Name)

	err = seed(a, []sharedConfig.SeedUser{{Username: "mlopez", Password: "pw"}})
	assert.ErrorIs(t, err, devauthority.ErrUserExists)
}
