package messages

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	autherrors "github.com/pmaschool/authcore/internal/shared/errors"
)

func TestLoad_LocalesAreComplete(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)
	assert.Empty(t, c.Missing("es"))
}

func TestPrinter_LanguageMatching(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "es", c.Printer("es-CL").Language())
	assert.Equal(t, "en", c.Printer("en-US").Language())
	assert.Equal(t, "en", c.Printer("de").Language())
	assert.Equal(t, "en", c.Printer("").Language())
}

func TestPrinter_Error(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)
	es := c.Printer("es")
	en := c.Printer("en")

	assert.Equal(t, "Usuario o contraseña incorrectos.", es.Error(autherrors.NewInvalidCredentialsError()))
	assert.Equal(t, "Invalid username or password.", en.Error(autherrors.NewInvalidCredentialsError()))
	assert.Equal(t, "Stored credentials are no longer valid. Log in manually.",
		en.Error(autherrors.NewInvalidCredentialsError(autherrors.DetailStaleCredentials)))
	assert.Equal(t, "This device is disabled. An administrator can re-enable it.", en.Error(autherrors.NewDeviceDisabledError()))
	assert.Equal(t, "Something went wrong. Please try again.", en.Error(errors.New("boom")))
	assert.Equal(t, "Too many attempts. Biometrics are locked.",
		en.Error(autherrors.NewBiometricError(autherrors.ErrorTypeBiometricLockout)))

	assert.Empty(t, en.Error(nil))
	assert.Empty(t, en.Error(autherrors.NewBiometricError(autherrors.ErrorTypeBiometricUserCanceled)))
}

func TestPrinter_Sprintf(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Usa Face ID para iniciar sesión", c.Printer("es").Sprintf(KeyPromptLogin, "Face ID"))
	assert.Equal(t, "Welcome, Maria Lopez (student).", c.Printer("en").Sprintf(KeyWelcome, "Maria Lopez", "student"))
}

func TestLoadFromFS_RequiresBaseLocale(t *testing.T) {
	fsys := fstest.MapFS{
		"locales/es.yaml": {Data: []byte("locale: es\nmessages:\n  logout.done: \"Listo\"\n")},
	}
	_, err := LoadFromFS(fsys)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base locale")
}

func TestLoadFromFS_ReportsMissingKeys(t *testing.T) {
	fsys := fstest.MapFS{
		"locales/en.yaml": {Data: []byte("locale: en\nmessages:\n  logout.done: \"Done\"\n  login.welcome: \"Hi %s\"\n")},
		"locales/es.yaml": {Data: []byte("locale: es\nmessages:\n  logout.done: \"Listo\"\n")},
	}
	c, err := LoadFromFS(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"login.welcome"}, c.Missing("es"))
	// Missing translations fall back to the base locale.
	assert.Equal(t, "Hi Ana", c.Printer("es").Sprintf("login.welcome", "Ana"))
}
