package migration

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"

	"github.com/pmaschool/authcore/internal/shared/logger"
)

//go:embed scripts/*.sql
var scripts embed.FS

// Strategy defines the interface for different migration strategies
type Strategy interface {
	Migrate(ctx context.Context, db *gorm.DB) error
	// Version reports the applied schema version, 0 when unknown.
	Version(ctx context.Context, db *gorm.DB) (int64, error)
	GetName() string
}

// GooseStrategy applies the embedded SQL scripts.
type GooseStrategy struct {
	fsys   fs.FS
	logger logger.Interface
}

func NewGooseStrategy(log logger.Interface) *GooseStrategy {
	sub, err := fs.Sub(scripts, "scripts")
	if err != nil {
		// The embed pattern guarantees the directory exists.
		panic(err)
	}
	return &GooseStrategy{
		fsys:   sub,
		logger: log.With("component", "migration.goose"),
	}
}

func (s *GooseStrategy) provider(db *gorm.DB) (*goose.Provider, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, sqlDB, s.fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to create goose provider: %w", err)
	}
	return provider, nil
}

func (s *GooseStrategy) Migrate(ctx context.Context, db *gorm.DB) error {
	provider, err := s.provider(db)
	if err != nil {
		return err
	}

	currentVersion, err := provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if len(results) > 0 {
		finalVersion, err := provider.GetDBVersion(ctx)
		if err != nil {
			return fmt.Errorf("failed to get final version: %w", err)
		}
		s.logger.Infow("migration completed successfully",
			"from_version", currentVersion,
			"to_version", finalVersion,
			"applied", len(results))
	}
	return nil
}

func (s *GooseStrategy) Version(ctx context.Context, db *gorm.DB) (int64, error) {
	provider, err := s.provider(db)
	if err != nil {
		return 0, err
	}
	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get version: %w", err)
	}
	return version, nil
}

func (s *GooseStrategy) GetName() string {
	return StrategyGoose
}

// GormAutoMigrateStrategy derives the schema from the models. Used by tests
// that do not care about versioning.
type GormAutoMigrateStrategy struct {
	models []interface{}
}

func NewGormAutoMigrateStrategy(models ...interface{}) *GormAutoMigrateStrategy {
	return &GormAutoMigrateStrategy{models: models}
}

func (s *GormAutoMigrateStrategy) Migrate(ctx context.Context, db *gorm.DB) error {
	if len(s.models) == 0 {
		return nil
	}
	return db.WithContext(ctx).AutoMigrate(s.models...)
}

func (s *GormAutoMigrateStrategy) Version(context.Context, *gorm.DB) (int64, error) {
	return 0, nil
}

func (s *GormAutoMigrateStrategy) GetName() string {
	return StrategyAutoMigrate
}
