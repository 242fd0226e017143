package usecases

import (
	"context"
	"sync"
	"time"

	"github.com/pmaschool/authcore/internal/application/auth/helpers"
	"github.com/pmaschool/authcore/internal/application/authority"
	"github.com/pmaschool/authcore/internal/domain/biometric"
	"github.com/pmaschool/authcore/internal/domain/credential"
	"github.com/pmaschool/authcore/internal/domain/device"
	"github.com/pmaschool/authcore/internal/domain/session"
	"github.com/pmaschool/authcore/internal/shared/biztime"
	"github.com/pmaschool/authcore/internal/shared/logger"
)

type mockAuthority struct {
	mu sync.Mutex

	CheckHealthFunc       func(ctx context.Context) error
	PasswordLoginFunc     func(ctx context.Context, username, secret string) (*authority.LoginResult, error)
	VerifySessionFunc     func(ctx context.Context) (*authority.SessionInfo, error)
	ValidateDeviceFunc    func(ctx context.Context, deviceID string) (*authority.DeviceValidation, error)
	RegisterDeviceFunc    func(ctx context.Context, req authority.RegisterDeviceRequest) (*device.TrustRecord, error)
	LogAuthEventFunc      func(ctx context.Context, event authority.AuthEvent) error
	EndSessionFunc        func(ctx context.Context, deviceID string) error
	FetchProfileImageFunc func(ctx context.Context, userID int64) (string, error)

	logins     []string
	validated  []string
	registered []authority.RegisterDeviceRequest
	events     []authority.AuthEvent
	ended      []string
	resets     int
}

func (m *mockAuthority) CheckHealth(ctx context.Context) error {
	if m.CheckHealthFunc != nil {
		return m.CheckHealthFunc(ctx)
	}
	return nil
}

func (m *mockAuthority) PasswordLogin(ctx context.Context, username, secret string) (*authority.LoginResult, error) {
	m.mu.Lock()
	m.logins = append(m.logins, username)
	m.mu.Unlock()
	if m.PasswordLoginFunc != nil {
		return m.PasswordLoginFunc(ctx, username, secret)
	}
	return &authority.LoginResult{
		Token:      "sid-1",
		User:       session.User{ID: 42, Username: username, DisplayName: "Maria Perez"},
		RemoteRole: "docente",
	}, nil
}

func (m *mockAuthority) VerifySession(ctx context.Context) (*authority.SessionInfo, error) {
	if m.VerifySessionFunc != nil {
		return m.VerifySessionFunc(ctx)
	}
	return &authority.SessionInfo{}, nil
}

func (m *mockAuthority) ValidateDevice(ctx context.Context, deviceID string) (*authority.DeviceValidation, error) {
	m.mu.Lock()
	m.validated = append(m.validated, deviceID)
	m.mu.Unlock()
	if m.ValidateDeviceFunc != nil {
		return m.ValidateDeviceFunc(ctx, deviceID)
	}
	return &authority.DeviceValidation{Valid: true, TrustRecordID: "trust-1", State: device.TrustActive}, nil
}

func (m *mockAuthority) RegisterDevice(ctx context.Context, req authority.RegisterDeviceRequest) (*device.TrustRecord, error) {
	m.mu.Lock()
	m.registered = append(m.registered, req)
	m.mu.Unlock()
	if m.RegisterDeviceFunc != nil {
		return m.RegisterDeviceFunc(ctx, req)
	}
	return &device.TrustRecord{ID: "trust-1", DeviceID: req.Identity.DeviceID, State: device.TrustActive}, nil
}

func (m *mockAuthority) RevokeDevice(ctx context.Context, trustRecordID string) error {
	return nil
}

func (m *mockAuthority) LogAuthEvent(ctx context.Context, event authority.AuthEvent) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	if m.LogAuthEventFunc != nil {
		return m.LogAuthEventFunc(ctx, event)
	}
	return nil
}

func (m *mockAuthority) EndSession(ctx context.Context, deviceID string) error {
	m.mu.Lock()
	m.ended = append(m.ended, deviceID)
	m.mu.Unlock()
	if m.EndSessionFunc != nil {
		return m.EndSessionFunc(ctx, deviceID)
	}
	return nil
}

func (m *mockAuthority) FetchProfileImage(ctx context.Context, userID int64) (string, error) {
	if m.FetchProfileImageFunc != nil {
		return m.FetchProfileImageFunc(ctx, userID)
	}
	return "", nil
}

func (m *mockAuthority) Reset(ctx context.Context) error {
	m.mu.Lock()
	m.resets++
	m.mu.Unlock()
	return nil
}

// mockVault keeps the credential in memory and counts destructive calls.
type mockVault struct {
	mu      sync.Mutex
	cred    *credential.BiometricCredential
	clears  int
	saves   int
	SaveErr error
}

func (m *mockVault) Save(ctx context.Context, username, secret, displayName string, snapshot device.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	cred, err := credential.NewBiometricCredential(username, secret, displayName, snapshot, time.Now())
	if err != nil {
		return err
	}
	m.cred = cred
	m.saves++
	return nil
}

func (m *mockVault) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = nil
	m.clears++
	return nil
}

func (m *mockVault) IsEnabled(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred != nil
}

func (m *mockVault) Enrollment(ctx context.Context) (*credential.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred == nil {
		return nil, nil
	}
	return m.cred.Enrollment(), nil
}

func (m *mockVault) TouchLastUsed(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred != nil {
		m.cred.Touch(time.Now())
	}
	return nil
}

func (m *mockVault) Refresh(ctx context.Context, username, secret, displayName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred == nil {
		return nil
	}
	return m.cred.Rotate(username, secret, displayName)
}

func (m *mockVault) UpdateProfileImage(ctx context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cred != nil {
		m.cred.ProfileImageRef = ref
	}
	return nil
}

func (m *mockVault) stored() *credential.BiometricCredential {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred
}

// mockGate unlocks whatever the paired vault holds.
type mockGate struct {
	vault            *mockVault
	availability     biometric.Availability
	AuthenticateFunc func(ctx context.Context) biometric.Outcome
	ConfirmFunc      func(ctx context.Context) biometric.Outcome
	confirms         int
	authenticates    int
}

func newMockGate(v *mockVault) *mockGate {
	return &mockGate{
		vault:        v,
		availability: biometric.NewAvailability(true, true, []biometric.Kind{biometric.KindFingerprint}),
	}
}

func (m *mockGate) CheckAvailability(ctx context.Context) biometric.Availability {
	return m.availability
}

func (m *mockGate) Label(ctx context.Context) string {
	return biometric.Label(device.PlatformAndroid, m.availability.SupportedKinds)
}

func (m *mockGate) Authenticate(ctx context.Context, cfg biometric.PromptConfig) biometric.Outcome {
	m.authenticates++
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx)
	}
	cred := m.vault.stored()
	if cred == nil {
		return biometric.Failed(biometric.ErrNotEnabled)
	}
	return biometric.Succeeded(cred.Username, cred.Secret)
}

func (m *mockGate) Confirm(ctx context.Context, cfg biometric.PromptConfig) biometric.Outcome {
	m.confirms++
	if m.ConfirmFunc != nil {
		return m.ConfirmFunc(ctx)
	}
	return biometric.Succeeded("", "")
}

type mockIdentities struct {
	identity device.Identity
	err      error
	calls    int
}

func (m *mockIdentities) Get(ctx context.Context) (device.Identity, error) {
	m.calls++
	return m.identity, m.err
}

type mockExpiry struct {
	resets int
}

func (m *mockExpiry) Reset() { m.resets++ }

var testIdentity = device.Identity{
	DeviceID:    "android-3f1c2b9e",
	DisplayName: "Pixel 8",
	Platform:    device.PlatformAndroid,
	OSVersion:   "14",
	Model:       "Pixel 8",
	Brand:       "Google",
	IsPhysical:  true,
}

type fixture struct {
	authority  *mockAuthority
	vault      *mockVault
	gate       *mockGate
	identities *mockIdentities
	expiry     *mockExpiry
	holder     *session.Holder
	sessions   *helpers.SessionHelper
	log        logger.Interface
}

func newFixture() *fixture {
	v := &mockVault{}
	f := &fixture{
		authority:  &mockAuthority{},
		vault:      v,
		gate:       newMockGate(v),
		identities: &mockIdentities{identity: testIdentity},
		expiry:     &mockExpiry{},
		holder:     session.NewHolder(),
		log:        logger.NewNop(),
	}
	f.sessions = helpers.NewSessionHelper(f.authority, f.holder, f.expiry,
		biztime.NewFixedClock(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)), f.log)
	return f
}

func (f *fixture) passwordLogin() *LoginWithPasswordUseCase {
	return NewLoginWithPasswordUseCase(f.authority, f.sessions, f.vault, f.identities, f.log)
}

func (f *fixture) biometricLogin() *LoginWithBiometricsUseCase {
	return NewLoginWithBiometricsUseCase(f.authority, f.sessions, f.holder, f.vault, f.gate, f.identities, f.log)
}

func (f *fixture) logout() *LogoutUseCase {
	return NewLogoutUseCase(f.authority, f.holder, f.identities, f.log)
}

func (f *fixture) enable() *EnableBiometricsUseCase {
	return NewEnableBiometricsUseCase(f.authority, f.holder, f.vault, f.gate, f.identities, f.log)
}

// enroll stores a credential as if biometrics had been enabled earlier.
func (f *fixture) enroll(username, secret string) {
	_ = f.vault.Save(context.Background(), username, secret, "Maria Perez", testIdentity)
}
