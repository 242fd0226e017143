package biometric

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmaschool/authcore/internal/domain/biometric"
	"github.com/pmaschool/authcore/internal/domain/credential"
	"github.com/pmaschool/authcore/internal/shared/logger"
)

func newTestGate(p *mockPrompter, r *mockCredentialReader) *Gate {
	return NewGate(p, r, biometric.PromptConfig{CancelLabel: "Cancel"}, logger.NewNop())
}

func TestGate_CheckAvailability(t *testing.T) {
	tests := []struct {
		name   string
		caps   Capabilities
		err    error
		reason biometric.Reason
	}{
		{"ok", Capabilities{HasHardware: true, IsEnrolled: true, Kinds: []biometric.Kind{biometric.KindFace}}, nil, biometric.ReasonOK},
		{"no hardware", Capabilities{}, nil, biometric.ReasonNoHardware},
		{"not enrolled", Capabilities{HasHardware: true}, nil, biometric.ReasonNotEnrolled},
		{"platform error", Capabilities{}, errors.New("hal down"), biometric.ReasonNoHardware},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &mockPrompter{CapabilitiesFunc: func(context.Context) (Capabilities, error) { return tt.caps, tt.err }}
			a := newTestGate(p, &mockCredentialReader{}).CheckAvailability(context.Background())
			assert.Equal(t, tt.reason, a.Reason)
			assert.Equal(t, tt.reason == biometric.ReasonOK, a.Available)
		})
	}
}

func TestGate_AuthenticateSuccess(t *testing.T) {
	p := &mockPrompter{}
	g := newTestGate(p, &mockCredentialReader{})

	out := g.Authenticate(context.Background(), biometric.PromptConfig{PromptMessage: "Sign in"})

	require.True(t, out.Success)
	assert.Equal(t, "maria", out.Username)
	assert.Equal(t, "s3cret", out.Secret)
	require.Len(t, p.prompts, 1)
	assert.Equal(t, "Sign in", p.prompts[0].PromptMessage)
	assert.Equal(t, "Cancel", p.prompts[0].CancelLabel)
}

func TestGate_DefaultPromptUsesLabel(t *testing.T) {
	p := &mockPrompter{platform: "ios", CapabilitiesFunc: func(context.Context) (Capabilities, error) {
		return Capabilities{HasHardware: true, IsEnrolled: true, Kinds: []biometric.Kind{biometric.KindFace}}, nil
	}}
	g := newTestGate(p, &mockCredentialReader{})

	g.Confirm(context.Background(), biometric.PromptConfig{})
	require.Len(t, p.prompts, 1)
	assert.Equal(t, "Use Face ID to continue", p.prompts[0].PromptMessage)
	assert.Equal(t, "Face ID", g.Label(context.Background()))
}

func TestGate_AuthenticateFailures(t *testing.T) {
	tests := []struct {
		name     string
		prompter *mockPrompter
		reader   *mockCredentialReader
		want     biometric.ErrorKind
		prompted bool
	}{
		{
			name:     "no hardware",
			prompter: &mockPrompter{CapabilitiesFunc: func(context.Context) (Capabilities, error) { return Capabilities{}, nil }},
			reader:   &mockCredentialReader{},
			want:     biometric.ErrNotAvailable,
		},
		{
			name: "not enrolled",
			prompter: &mockPrompter{CapabilitiesFunc: func(context.Context) (Capabilities, error) {
				return Capabilities{HasHardware: true}, nil
			}},
			reader: &mockCredentialReader{},
			want:   biometric.ErrNotEnrolled,
		},
		{
			name:     "not enabled",
			prompter: &mockPrompter{},
			reader:   &mockCredentialReader{EnabledFlagFunc: func(context.Context) (bool, error) { return false, nil }},
			want:     biometric.ErrNotEnabled,
		},
		{
			name:     "flag set but credential gone",
			prompter: &mockPrompter{},
			reader: &mockCredentialReader{ReadFunc: func(context.Context) (*credential.BiometricCredential, error) {
				return nil, nil
			}},
			want: biometric.ErrNoStoredCredential,
		},
		{
			name: "user canceled",
			prompter: &mockPrompter{PromptFunc: func(context.Context, biometric.PromptConfig) (PromptResult, error) {
				return PromptResult{Error: "user_cancel"}, nil
			}},
			reader:   &mockCredentialReader{},
			want:     biometric.ErrUserCanceled,
			prompted: true,
		},
		{
			name: "system canceled",
			prompter: &mockPrompter{PromptFunc: func(context.Context, biometric.PromptConfig) (PromptResult, error) {
				return PromptResult{Error: "system_cancel"}, nil
			}},
			reader:   &mockCredentialReader{},
			want:     biometric.ErrSystemCanceled,
			prompted: true,
		},
		{
			name: "lockout",
			prompter: &mockPrompter{PromptFunc: func(context.Context, biometric.PromptConfig) (PromptResult, error) {
				return PromptResult{Error: "lockout"}, nil
			}},
			reader:   &mockCredentialReader{},
			want:     biometric.ErrLockout,
			prompted: true,
		},
		{
			name: "context canceled",
			prompter: &mockPrompter{PromptFunc: func(context.Context, biometric.PromptConfig) (PromptResult, error) {
				return PromptResult{}, context.Canceled
			}},
			reader:   &mockCredentialReader{},
			want:     biometric.ErrSystemCanceled,
			prompted: true,
		},
		{
			name: "platform error",
			prompter: &mockPrompter{PromptFunc: func(context.Context, biometric.PromptConfig) (PromptResult, error) {
				return PromptResult{}, errors.New("sensor")
			}},
			reader:   &mockCredentialReader{},
			want:     biometric.ErrFailed,
			prompted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := newTestGate(tt.prompter, tt.reader).Authenticate(context.Background(), biometric.PromptConfig{})

			assert.False(t, out.Success)
			assert.Equal(t, tt.want, out.ErrorKind)
			assert.Empty(t, out.Secret)
			assert.Equal(t, tt.prompted, len(tt.prompter.prompts) == 1)
		})
	}
}

func TestGate_ConfirmDoesNotReadVault(t *testing.T) {
	reader := &mockCredentialReader{
		EnabledFlagFunc: func(context.Context) (bool, error) {
			t.Fatal("confirm must not consult the vault")
			return false, nil
		},
	}
	out := newTestGate(&mockPrompter{}, reader).Confirm(context.Background(), biometric.PromptConfig{})

	assert.True(t, out.Success)
	assert.Empty(t, out.Username)
	assert.Empty(t, out.Secret)
}
