// Package app assembles the client runtime from configuration.
package app

import (
	"context"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/pmaschool/authcore/internal/application/auth"
	appbiometric "github.com/pmaschool/authcore/internal/application/biometric"
	"github.com/pmaschool/authcore/internal/application/expiry"
	"github.com/pmaschool/authcore/internal/application/identity"
	"github.com/pmaschool/authcore/internal/application/vault"
	"github.com/pmaschool/authcore/internal/domain/biometric"
	"github.com/pmaschool/authcore/internal/domain/session"
	"github.com/pmaschool/authcore/internal/infrastructure/config"
	"github.com/pmaschool/authcore/internal/infrastructure/database"
	"github.com/pmaschool/authcore/internal/infrastructure/migration"
	"github.com/pmaschool/authcore/internal/infrastructure/odoo"
	"github.com/pmaschool/authcore/internal/infrastructure/securestore"
	"github.com/pmaschool/authcore/internal/interfaces/messages"
	"github.com/pmaschool/authcore/internal/shared/biztime"
	"github.com/pmaschool/authcore/internal/shared/logger"
)

// Screen is where the navigation guard last sent the user.
type Screen string

const (
	ScreenSplash Screen = "splash"
	ScreenLogin  Screen = "login"
	ScreenHome   Screen = "home"
)

// Options supplies the host-specific collaborators.
type Options struct {
	Prompter appbiometric.Prompter
	Metadata identity.MetadataSource
	Alerter  expiry.Alerter
	// Clock defaults to the system clock.
	Clock biztime.Clock
	// MigrationStrategy defaults to goose.
	MigrationStrategy string
}

// Container owns every long-lived component of one client process.
type Container struct {
	Config    *config.Config
	DB        *gorm.DB
	Store     *securestore.Store
	Sessions  *session.Holder
	Readiness *expiry.Readiness
	Monitor   *expiry.Monitor
	Authority *odoo.Client
	Identity  *identity.Provider
	Vault     *vault.Vault
	Gate      *appbiometric.Gate
	Auth      *auth.Service
	Messages  *messages.Printer

	guard  *expiry.Guard
	logger logger.Interface

	mu     sync.Mutex
	screen Screen
}

// New opens the local store, migrates it and wires the components. The UI
// starts not ready; call Readiness.Set(true) once alerts can be shown.
func New(ctx context.Context, cfg *config.Config, opts Options, log logger.Interface) (*Container, error) {
	if opts.Prompter == nil || opts.Metadata == nil || opts.Alerter == nil {
		return nil, fmt.Errorf("prompter, metadata source and alerter are required")
	}
	clock := opts.Clock
	if clock == nil {
		clock = biztime.SystemClock()
	}

	catalog, err := messages.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	db, err := database.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := migration.NewManager(opts.MigrationStrategy, log).Migrate(ctx, db); err != nil {
		_ = database.Close(db)
		return nil, err
	}

	cipher, err := securestore.NewCipher(cfg.Store.MasterKey)
	if err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("invalid store key: %w", err)
	}

	c := &Container{
		Config:    cfg,
		DB:        db,
		Store:     securestore.New(db, cipher, log.Named("securestore")),
		Sessions:  session.NewHolder(),
		Readiness: expiry.NewReadiness(false),
		Messages:  catalog.Printer(cfg.UI.Language),
		logger:    log,
		screen:    ScreenSplash,
	}

	c.Monitor = expiry.NewMonitor(c.Readiness, c.Sessions, opts.Alerter, log.Named("expiry"))
	c.Authority = odoo.NewClient(cfg.Authority, c.Store, c.Monitor, log.Named("odoo"))
	c.Identity = identity.NewProvider(c.Store, opts.Metadata, log.Named("identity"))
	c.Vault = vault.New(c.Store, clock, log.Named("vault"))
	c.Gate = appbiometric.NewGate(opts.Prompter, c.Vault, biometric.PromptConfig{
		PromptMessage:         cfg.Biometric.PromptMessage,
		CancelLabel:           cfg.Biometric.CancelLabel,
		DisableDeviceFallback: cfg.Biometric.DisableDeviceFallback,
	}, log.Named("biometric"))
	c.Auth = auth.NewService(c.Authority, c.Sessions, c.Vault, c.Gate, c.Identity, c.Monitor, clock, log.Named("auth"))
	c.guard = expiry.NewGuard(c.Readiness, c.Sessions, cfg.Monitor.GuardDebounce(), c.route, log.Named("guard"))

	return c, nil
}

// Screen reports the guard's latest routing decision.
func (c *Container) Screen() Screen {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.screen
}

func (c *Container) route(s expiry.Snapshot) {
	next := ScreenSplash
	switch {
	case !s.Ready:
	case s.Authenticated:
		next = ScreenHome
	default:
		next = ScreenLogin
	}

	c.mu.Lock()
	prev := c.screen
	c.screen = next
	c.mu.Unlock()

	if prev != next {
		c.logger.Debugw("navigation", "from", string(prev), "to", string(next))
	}
}

// PromptConfig builds the prompt for key, a message taking the biometric
// label as its only argument.
func (c *Container) PromptConfig(ctx context.Context, key string) biometric.PromptConfig {
	return biometric.PromptConfig{
		PromptMessage:         c.Messages.Sprintf(key, c.Auth.BiometricLabel(ctx)),
		CancelLabel:           c.Config.Biometric.CancelLabel,
		DisableDeviceFallback: c.Config.Biometric.DisableDeviceFallback,
	}
}

func (c *Container) Close() error {
	c.guard.Stop()
	c.Monitor.Close()
	return database.Close(c.DB)
}
