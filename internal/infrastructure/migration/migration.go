// Package migration keeps the local sqlite schema up to date.
package migration

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/pmaschool/authcore/internal/infrastructure/securestore"
	"github.com/pmaschool/authcore/internal/shared/logger"
)

const (
	StrategyGoose       = "goose"
	StrategyAutoMigrate = "gorm_auto_migrate"
)

// Manager handles database migrations with different strategies
type Manager struct {
	strategy Strategy
	logger   logger.Interface
}

// NewManager picks a strategy by name. Unknown names fall back to goose,
// which is what installed clients run.
func NewManager(strategyName string, log logger.Interface) *Manager {
	var strategy Strategy
	switch strings.ToLower(strategyName) {
	case StrategyAutoMigrate:
		strategy = NewGormAutoMigrateStrategy(AutoMigrateModels()...)
	default:
		strategy = NewGooseStrategy(log)
	}
	return NewManagerWithStrategy(strategy, log)
}

// NewManagerWithStrategy creates a new migration manager with a specific strategy
func NewManagerWithStrategy(strategy Strategy, log logger.Interface) *Manager {
	return &Manager{
		strategy: strategy,
		logger:   log.With("component", "migration.manager"),
	}
}

// Migrate executes the configured migration strategy
func (m *Manager) Migrate(ctx context.Context, db *gorm.DB) error {
	m.logger.Debugw("starting database migration", "strategy", m.strategy.GetName())

	if err := m.strategy.Migrate(ctx, db); err != nil {
		m.logger.Errorw("migration failed", "strategy", m.strategy.GetName(), "error", err)
		return fmt.Errorf("migration failed with strategy %s: %w", m.strategy.GetName(), err)
	}

	m.logger.Debugw("database migration completed", "strategy", m.strategy.GetName())
	return nil
}

func (m *Manager) Version(ctx context.Context, db *gorm.DB) (int64, error) {
	return m.strategy.Version(ctx, db)
}

func (m *Manager) GetStrategy() Strategy {
	return m.strategy
}

func AutoMigrateModels() []interface{} {
	return []interface{}{
		&securestore.SecureItemModel{},
	}
}
