package app

import (
	"context"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmaschool/authcore/internal/application/authority"
	appbiometric "github.com/pmaschool/authcore/internal/application/biometric"
	"github.com/pmaschool/authcore/internal/application/expiry"
	"github.com/pmaschool/authcore/internal/application/identity"
	"github.com/pmaschool/authcore/internal/domain/biometric"
	"github.com/pmaschool/authcore/internal/domain/device"
	"github.com/pmaschool/authcore/internal/domain/session"
	"github.com/pmaschool/authcore/internal/infrastructure/config"
	"github.com/pmaschool/authcore/internal/infrastructure/devauthority"
	httpRouter "github.com/pmaschool/authcore/internal/interfaces/http"
	"github.com/pmaschool/authcore/internal/interfaces/messages"
	"github.com/pmaschool/authcore/internal/shared/biztime"
	sharedConfig "github.com/pmaschool/authcore/internal/shared/config"
	autherrors "github.com/pmaschool/authcore/internal/shared/errors"
	"github.com/pmaschool/authcore/internal/shared/logger"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakePrompter struct {
	mu     sync.Mutex
	result appbiometric.PromptResult
	calls  int
}

func (p *fakePrompter) Platform() string { return "android" }

func (p *fakePrompter) Capabilities(context.Context) (appbiometric.Capabilities, error) {
	return appbiometric.Capabilities{
		HasHardware: true,
		IsEnrolled:  true,
		Kinds:       []biometric.Kind{biometric.KindFingerprint},
	}, nil
}

func (p *fakePrompter) Prompt(context.Context, biometric.PromptConfig) (appbiometric.PromptResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.result, nil
}

type staticMetadata struct {
	meta identity.Metadata
}

func (s staticMetadata) Describe(context.Context) (identity.Metadata, error) {
	return s.meta, nil
}

type recordingAlerter struct {
	mu   sync.Mutex
	acks []func()
}

func (a *recordingAlerter) ShowSessionExpired(ack func()) {
	a.mu.Lock()
	a.acks = append(a.acks, ack)
	a.mu.Unlock()
}

func (a *recordingAlerter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.acks)
}

func (a *recordingAlerter) ackLast() {
	a.mu.Lock()
	ack := a.acks[len(a.acks)-1]
	a.mu.Unlock()
	ack()
}

type harness struct {
	authority *devauthority.Authority
	baseURL   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := sharedConfig.DevAuthorityConfig{
		JWTSecret:         "test-secret-0123456789",
		SessionTTLMinutes: 60,
		BcryptCost:        4,
		Database:          "school",
	}
	a := devauthority.New(cfg, biztime.SystemClock(), logger.NewNop())
	_, err := a.AddUser("mlopez", "s3cret-pass", "Maria Lopez", "docente")
	require.NoError(t, err)

	router := httpRouter.NewRouter(a, cfg, logger.NewNop())
	router.SetupRoutes()
	srv := httptest.NewServer(router.Handler())
	t.Cleanup(srv.Close)

	return &harness{authority: a, baseURL: srv.URL}
}

type client struct {
	*Container
	prompter *fakePrompter
	alerter  *recordingAlerter
}

func (h *harness) newClient(t *testing.T, hostname string) *client {
	t.Helper()
	cfg := &config.Config{
		Authority: sharedConfig.AuthorityConfig{BaseURL: h.baseURL, Database: "school", TimeoutSeconds: 5},
		Store:     sharedConfig.StoreConfig{Path: ":memory:", MasterKey: strings.Repeat("ab", 32)},
		Biometric: sharedConfig.BiometricConfig{CancelLabel: "Cancel", DisableDeviceFallback: true},
		Monitor:   sharedConfig.MonitorConfig{GuardDebounceMs: 5},
		UI:        sharedConfig.UIConfig{Language: "en"},
	}
	prompter := &fakePrompter{result: appbiometric.PromptResult{Success: true}}
	alerter := &recordingAlerter{}

	c, err := New(context.Background(), cfg, Options{
		Prompter: prompter,
		Metadata: staticMetadata{meta: identity.Metadata{DisplayName: hostname, Platform: "android", Model: "Pixel 8"}},
		Alerter:  alerter,
	}, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	c.Readiness.Set(true)
	return &client{Container: c, prompter: prompter, alerter: alerter}
}

func (h *harness) trustRecord(t *testing.T, deviceID string) device.TrustRecord {
	t.Helper()
	for _, rec := range h.authority.Devices() {
		if rec.DeviceID == deviceID {
			return rec
		}
	}
	t.Fatalf("no trust record for %s", deviceID)
	return device.TrustRecord{}
}

// enroll logs in with the password, enables biometrics and logs out again.
func (c *client) enroll(t *testing.T) device.Identity {
	t.Helper()
	ctx := context.Background()
	_, err := c.Auth.Login(ctx, "mlopez", "s3cret-pass")
	require.NoError(t, err)
	_, err = c.Auth.EnableBiometrics(ctx, c.PromptConfig(ctx, messages.KeyPromptEnable))
	require.NoError(t, err)
	c.Auth.Logout(ctx)

	id, err := c.Identity.Get(ctx)
	require.NoError(t, err)
	return id
}

func TestContainer_PasswordLoginAndLogout(t *testing.T) {
	h := newHarness(t)
	c := h.newClient(t, "aula-1")
	ctx := context.Background()

	s, err := c.Auth.Login(ctx, "  mlopez ", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, session.RoleTeacher, s.Role)
	assert.Equal(t, "Maria Lopez", s.User.DisplayName)
	assert.True(t, strings.HasPrefix(s.DeviceID, "android-"))
	assert.Eventually(t, func() bool { return c.Screen() == ScreenHome }, time.Second, 5*time.Millisecond)

	logs := h.authority.AuthLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, "traditional", logs[0].Method)
	assert.Equal(t, s.DeviceID, logs[0].DeviceUUID)

	c.Auth.Logout(ctx)
	assert.Nil(t, c.Auth.CurrentSession())
	assert.Empty(t, c.Authority.SessionID(ctx))
	assert.Eventually(t, func() bool { return c.Screen() == ScreenLogin }, time.Second, 5*time.Millisecond)

	_, _, err = h.authority.SessionInfo(s.Token)
	assert.ErrorIs(t, err, devauthority.ErrSessionExpired)
}

func TestContainer_WrongPassword(t *testing.T) {
	h := newHarness(t)
	c := h.newClient(t, "aula-1")

	_, err := c.Auth.Login(context.Background(), "mlopez", "nope")
	require.Error(t, err)
	assert.Equal(t, autherrors.ErrorTypeInvalidCredentials, autherrors.KindOf(err))
	assert.Equal(t, "Invalid username or password.", c.Messages.Error(err))
	assert.Nil(t, c.Auth.CurrentSession())
}

func TestContainer_BiometricLogin(t *testing.T) {
	h := newHarness(t)
	c := h.newClient(t, "aula-1")
	ctx := context.Background()

	id := c.enroll(t)
	rec := h.trustRecord(t, id.DeviceID)
	assert.Equal(t, device.TrustActive, rec.State)
	assert.Equal(t, "Fingerprint", rec.BiometricLabel)
	assert.True(t, c.Auth.IsBiometricEnabled(ctx))

	s, err := c.Auth.LoginWithBiometrics(ctx, c.PromptConfig(ctx, messages.KeyPromptLogin))
	require.NoError(t, err)
	assert.Equal(t, "mlopez", s.User.Username)

	enrollment, err := c.Auth.CurrentEnrollment(ctx)
	require.NoError(t, err)
	require.NotNil(t, enrollment)
	assert.NotNil(t, enrollment.LastUsedAt)
	assert.Equal(t, id.DeviceID, enrollment.Device.DeviceID)

	var biometricLog *devauthority.AuthLogEntry
	for _, entry := range h.authority.AuthLogs() {
		if entry.Method == string(authority.MethodBiometric) {
			entry := entry
			biometricLog = &entry
		}
	}
	require.NotNil(t, biometricLog)
	assert.True(t, biometricLog.Success)
	assert.Equal(t, rec.ID, biometricLog.TrustRecordID)
}

func TestContainer_DisabledDeviceKeepsCredential(t *testing.T) {
	h := newHarness(t)
	c := h.newClient(t, "aula-1")
	ctx := context.Background()

	id := c.enroll(t)
	rec := h.trustRecord(t, id.DeviceID)
	_, err := h.authority.SetDeviceState(rec.ID, device.TrustDisabled)
	require.NoError(t, err)

	_, err = c.Auth.LoginWithBiometrics(ctx, biometric.PromptConfig{})
	require.Error(t, err)
	assert.Equal(t, autherrors.ErrorTypeDeviceDisabled, autherrors.KindOf(err))
	assert.Nil(t, c.Auth.CurrentSession())
	assert.Empty(t, c.Authority.SessionID(ctx))
	assert.True(t, c.Auth.IsBiometricEnabled(ctx))

	_, err = h.authority.SetDeviceState(rec.ID, device.TrustActive)
	require.NoError(t, err)
	_, err = c.Auth.LoginWithBiometrics(ctx, biometric.PromptConfig{})
	require.NoError(t, err)
}

func TestContainer_RevokedDevicePurgesCredential(t *testing.T) {
	h := newHarness(t)
	c := h.newClient(t, "aula-1")
	ctx := context.Background()

	id := c.enroll(t)
	rec := h.trustRecord(t, id.DeviceID)
	_, err := h.authority.SetDeviceState(rec.ID, device.TrustRevoked)
	require.NoError(t, err)

	_, err = c.Auth.LoginWithBiometrics(ctx, biometric.PromptConfig{})
	require.Error(t, err)
	assert.Equal(t, autherrors.ErrorTypeDeviceRevoked, autherrors.KindOf(err))
	assert.Nil(t, c.Auth.CurrentSession())
	assert.False(t, c.Auth.IsBiometricEnabled(ctx))

	// Nothing left to unlock.
	_, err = c.Auth.LoginWithBiometrics(ctx, biometric.PromptConfig{})
	require.Error(t, err)
	assert.Equal(t, autherrors.ErrorTypeBiometricNotEnabled, autherrors.KindOf(err))
}

func TestContainer_StalePasswordPurgesCredential(t *testing.T) {
	h := newHarness(t)
	c := h.newClient(t, "aula-1")
	ctx := context.Background()

	c.enroll(t)
	require.NoError(t, h.authority.SetPassword("mlopez", "rotated-pass"))

	_, err := c.Auth.LoginWithBiometrics(ctx, biometric.PromptConfig{})
	require.Error(t, err)
	assert.Equal(t, autherrors.ErrorTypeInvalidCredentials, autherrors.KindOf(err))
	assert.Equal(t, "Stored credentials are no longer valid. Log in manually.", c.Messages.Error(err))
	assert.False(t, c.Auth.IsBiometricEnabled(ctx))

	// A password login re-establishes the session; biometrics stay off.
	_, err = c.Auth.Login(ctx, "mlopez", "rotated-pass")
	require.NoError(t, err)
	assert.False(t, c.Auth.IsBiometricEnabled(ctx))
}

func TestContainer_CanceledPromptIsSilent(t *testing.T) {
	h := newHarness(t)
	c := h.newClient(t, "aula-1")
	ctx := context.Background()

	c.enroll(t)
	c.prompter.result = appbiometric.PromptResult{Error: "user_cancel"}

	_, err := c.Auth.LoginWithBiometrics(ctx, biometric.PromptConfig{})
	require.Error(t, err)
	assert.True(t, autherrors.IsSilent(err))
	assert.Empty(t, c.Messages.Error(err))
	assert.True(t, c.Auth.IsBiometricEnabled(ctx))
}

func TestContainer_SessionExpiryAlertsOnce(t *testing.T) {
	h := newHarness(t)
	c := h.newClient(t, "aula-1")
	ctx := context.Background()

	s, err := c.Auth.Login(ctx, "mlopez", "s3cret-pass")
	require.NoError(t, err)
	h.authority.Destroy(s.Token)

	_, err = c.Authority.VerifySession(ctx)
	assert.ErrorIs(t, err, authority.ErrUnauthorized)
	_, err = c.Authority.VerifySession(ctx)
	assert.ErrorIs(t, err, authority.ErrUnauthorized)

	assert.Equal(t, 1, c.alerter.count())
	assert.Equal(t, expiry.StateAlerted, c.Monitor.State())
	assert.Nil(t, c.Auth.CurrentSession())
	assert.Eventually(t, func() bool { return c.Screen() == ScreenLogin }, time.Second, 5*time.Millisecond)

	c.alerter.ackLast()
	assert.Equal(t, expiry.StateIdle, c.Monitor.State())

	_, err = c.Auth.Login(ctx, "mlopez", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, 1, c.alerter.count())
}

func TestContainer_ExpiryBeforeReadyIsDeferred(t *testing.T) {
	h := newHarness(t)
	c := h.newClient(t, "aula-1")
	ctx := context.Background()

	s, err := c.Auth.Login(ctx, "mlopez", "s3cret-pass")
	require.NoError(t, err)
	c.Readiness.Set(false)
	h.authority.Destroy(s.Token)

	_, err = c.Authority.VerifySession(ctx)
	assert.ErrorIs(t, err, authority.ErrUnauthorized)
	assert.Equal(t, 0, c.alerter.count())
	assert.Equal(t, expiry.StatePending, c.Monitor.State())

	c.Readiness.Set(true)
	assert.Equal(t, 1, c.alerter.count())
	assert.Nil(t, c.Auth.CurrentSession())
}

func TestContainer_LogoutEndsOnlyThisDevice(t *testing.T) {
	h := newHarness(t)
	phone := h.newClient(t, "phone")
	tablet := h.newClient(t, "tablet")
	ctx := context.Background()

	phoneSession, err := phone.Auth.Login(ctx, "mlopez", "s3cret-pass")
	require.NoError(t, err)
	tabletSession, err := tablet.Auth.Login(ctx, "mlopez", "s3cret-pass")
	require.NoError(t, err)
	require.NotEqual(t, phoneSession.DeviceID, tabletSession.DeviceID)

	phone.Auth.Logout(ctx)

	_, _, err = h.authority.SessionInfo(phoneSession.Token)
	assert.ErrorIs(t, err, devauthority.ErrSessionExpired)

	info, err := tablet.Authority.VerifySession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "mlopez", info.User.Username)
	assert.Equal(t, 0, tablet.alerter.count())
}
