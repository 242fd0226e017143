package biometric

import (
	"context"

	"github.com/pmaschool/authcore/internal/domain/biometric"
	"github.com/pmaschool/authcore/internal/domain/credential"
)

type mockPrompter struct {
	platform         string
	CapabilitiesFunc func(ctx context.Context) (Capabilities, error)
	PromptFunc       func(ctx context.Context, cfg biometric.PromptConfig) (PromptResult, error)
	prompts          []biometric.PromptConfig
}

func (m *mockPrompter) Platform() string {
	if m.platform == "" {
		return "android"
	}
	return m.platform
}

func (m *mockPrompter) Capabilities(ctx context.Context) (Capabilities, error) {
	if m.CapabilitiesFunc != nil {
		return m.CapabilitiesFunc(ctx)
	}
	return Capabilities{HasHardware: true, IsEnrolled: true, Kinds: []biometric.Kind{biometric.KindFingerprint}}, nil
}

func (m *mockPrompter) Prompt(ctx context.Context, cfg biometric.PromptConfig) (PromptResult, error) {
	m.prompts = append(m.prompts, cfg)
	if m.PromptFunc != nil {
		return m.PromptFunc(ctx, cfg)
	}
	return PromptResult{Success: true}, nil
}

type mockCredentialReader struct {
	EnabledFlagFunc func(ctx context.Context) (bool, error)
	ReadFunc        func(ctx context.Context) (*credential.BiometricCredential, error)
}

func (m *mockCredentialReader) EnabledFlag(ctx context.Context) (bool, error) {
	if m.EnabledFlagFunc != nil {
		return m.EnabledFlagFunc(ctx)
	}
	return true, nil
}

func (m *mockCredentialReader) Read(ctx context.Context) (*credential.BiometricCredential, error) {
	if m.ReadFunc != nil {
		return m.ReadFunc(ctx)
	}
	return &credential.BiometricCredential{Username: "maria", Secret: "s3cret", Enabled: true}, nil
}
