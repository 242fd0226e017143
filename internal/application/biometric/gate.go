// Package biometric wraps the platform prompt and normalizes every result
// into the closed outcome set.
package biometric

import (
	"context"
	"errors"
	"fmt"

	"github.com/pmaschool/authcore/internal/domain/biometric"
	"github.com/pmaschool/authcore/internal/domain/credential"
	"github.com/pmaschool/authcore/internal/shared/logger"
)

// Capabilities is what the platform reports about biometric hardware.
type Capabilities struct {
	HasHardware bool
	IsEnrolled  bool
	Kinds       []biometric.Kind
}

// PromptResult is the raw platform answer. Error is the platform's failure
// string and is empty on dismissal without a reason.
type PromptResult struct {
	Success bool
	Error   string
}

// Prompter is the platform biometric API. Prompt blocks until the user or
// the system answers.
type Prompter interface {
	Platform() string
	Capabilities(ctx context.Context) (Capabilities, error)
	Prompt(ctx context.Context, cfg biometric.PromptConfig) (PromptResult, error)
}

// CredentialReader is the vault as seen by the gate.
type CredentialReader interface {
	EnabledFlag(ctx context.Context) (bool, error)
	Read(ctx context.Context) (*credential.BiometricCredential, error)
}

type Gate struct {
	prompter Prompter
	vault    CredentialReader
	defaults biometric.PromptConfig
	logger   logger.Interface
}

func NewGate(prompter Prompter, vault CredentialReader, defaults biometric.PromptConfig, logger logger.Interface) *Gate {
	return &Gate{
		prompter: prompter,
		vault:    vault,
		defaults: defaults,
		logger:   logger,
	}
}

func (g *Gate) CheckAvailability(ctx context.Context) biometric.Availability {
	caps, err := g.prompter.Capabilities(ctx)
	if err != nil {
		g.logger.Warnw("failed to query biometric capabilities", "error", err)
		return biometric.NewAvailability(false, false, nil)
	}
	return biometric.NewAvailability(caps.HasHardware, caps.IsEnrolled, caps.Kinds)
}

// Label is the user-facing name of the available biometric.
func (g *Gate) Label(ctx context.Context) string {
	return biometric.Label(g.prompter.Platform(), g.CheckAvailability(ctx).SupportedKinds)
}

// Authenticate prompts and, on success, returns the unlocked credential.
func (g *Gate) Authenticate(ctx context.Context, cfg biometric.PromptConfig) biometric.Outcome {
	availability := g.CheckAvailability(ctx)
	if kind, ok := unavailable(availability); ok {
		return biometric.Failed(kind)
	}

	enabled, err := g.vault.EnabledFlag(ctx)
	if err != nil {
		g.logger.Errorw("failed to read biometric flag", "error", err)
	}
	if !enabled {
		return biometric.Failed(biometric.ErrNotEnabled)
	}

	cred, err := g.vault.Read(ctx)
	if err != nil {
		g.logger.Errorw("failed to read biometric credential", "error", err)
		return biometric.Failed(biometric.ErrNoStoredCredential)
	}
	if cred == nil {
		return biometric.Failed(biometric.ErrNoStoredCredential)
	}

	if kind, ok := g.prompt(ctx, cfg, availability); !ok {
		return biometric.Failed(kind)
	}

	g.logger.Debugw("biometric authentication succeeded", "username", cred.Username)
	return biometric.Succeeded(cred.Username, cred.Secret)
}

// Confirm proves physical presence without touching the stored credential.
func (g *Gate) Confirm(ctx context.Context, cfg biometric.PromptConfig) biometric.Outcome {
	availability := g.CheckAvailability(ctx)
	if kind, ok := unavailable(availability); ok {
		return biometric.Failed(kind)
	}
	if kind, ok := g.prompt(ctx, cfg, availability); !ok {
		return biometric.Failed(kind)
	}
	return biometric.Succeeded("", "")
}

func (g *Gate) prompt(ctx context.Context, cfg biometric.PromptConfig, availability biometric.Availability) (biometric.ErrorKind, bool) {
	cfg = g.withDefaults(cfg, availability)

	result, err := g.prompter.Prompt(ctx, cfg)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return biometric.ErrSystemCanceled, false
	case err != nil:
		g.logger.Warnw("biometric prompt failed", "error", err)
		return biometric.ErrFailed, false
	case !result.Success:
		kind := biometric.ClassifyPlatformError(result.Error)
		g.logger.Debugw("biometric prompt rejected", "platform_error", result.Error, "kind", kind)
		return kind, false
	}
	return "", true
}

func (g *Gate) withDefaults(cfg biometric.PromptConfig, availability biometric.Availability) biometric.PromptConfig {
	if cfg.PromptMessage == "" {
		cfg.PromptMessage = g.defaults.PromptMessage
	}
	if cfg.PromptMessage == "" {
		label := biometric.Label(g.prompter.Platform(), availability.SupportedKinds)
		cfg.PromptMessage = fmt.Sprintf("Use %s to continue", label)
	}
	if cfg.CancelLabel == "" {
		cfg.CancelLabel = g.defaults.CancelLabel
	}
	if !cfg.DisableDeviceFallback {
		cfg.DisableDeviceFallback = g.defaults.DisableDeviceFallback
	}
	return cfg
}

func unavailable(a biometric.Availability) (biometric.ErrorKind, bool) {
	if a.Available {
		return "", false
	}
	if a.Reason == biometric.ReasonNotEnrolled {
		return biometric.ErrNotEnrolled, true
	}
	return biometric.ErrNotAvailable, true
}
