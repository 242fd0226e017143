// Package identity resolves the stable per-install device identity.
package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/pmaschool/authcore/internal/domain/device"
	"github.com/pmaschool/authcore/internal/shared/logger"
)

// InstallIDKey lives outside the credential vault so purging the vault keeps
// the device id stable.
const InstallIDKey = "persistent_device_uuid"

type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Metadata is what the host reports about itself.
type Metadata struct {
	DisplayName string
	Platform    string
	OSVersion   string
	Model       string
	Brand       string
	IsPhysical  bool
}

type MetadataSource interface {
	Describe(ctx context.Context) (Metadata, error)
}

// Provider memoizes the identity for the life of the process.
type Provider struct {
	store  Store
	source MetadataSource
	logger logger.Interface

	mu     sync.Mutex
	cached *device.Identity
}

func NewProvider(store Store, source MetadataSource, logger logger.Interface) *Provider {
	return &Provider{
		store:  store,
		source: source,
		logger: logger,
	}
}

// Get derives the identity on first call and returns the cached value after.
func (p *Provider) Get(ctx context.Context) (device.Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil {
		return *p.cached, nil
	}

	meta, err := p.source.Describe(ctx)
	if err != nil {
		return device.Identity{}, fmt.Errorf("describe device: %w", err)
	}

	installID, err := p.installID(ctx)
	if err != nil {
		return device.Identity{}, err
	}

	id := device.Identity{
		DeviceID:    device.BuildDeviceID(meta.Platform, installID),
		DisplayName: meta.DisplayName,
		Platform:    meta.Platform,
		OSVersion:   meta.OSVersion,
		Model:       meta.Model,
		Brand:       meta.Brand,
		IsPhysical:  meta.IsPhysical,
	}
	if err := id.Validate(); err != nil {
		return device.Identity{}, err
	}

	p.cached = &id
	p.logger.Debugw("device identity resolved", "device_id", id.DeviceID)
	return id, nil
}

func (p *Provider) installID(ctx context.Context) (string, error) {
	existing, found, err := p.store.Get(ctx, InstallIDKey)
	if err != nil {
		return "", fmt.Errorf("load install id: %w", err)
	}
	if found && existing != "" {
		return existing, nil
	}

	fresh := uuid.NewString()
	if err := p.store.Set(ctx, InstallIDKey, fresh); err != nil {
		return "", fmt.Errorf("persist install id: %w", err)
	}
	p.logger.Infow("generated install id", "install_id", fresh)
	return fresh, nil
}
