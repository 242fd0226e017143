package migrate

import (
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/pmaschool/authcore/internal/infrastructure/config"
	"github.com/pmaschool/authcore/internal/infrastructure/database"
	"github.com/pmaschool/authcore/internal/infrastructure/migration"
	"github.com/pmaschool/authcore/internal/shared/logger"
)

var (
	configPath string
	strategy   string
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Local store migration tools",
		Long:  `Manage the schema of the local secure store.`,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.PersistentFlags().StringVar(&strategy, "strategy", migration.StrategyGoose, "Migration strategy (goose, gorm_auto_migrate)")

	cmd.AddCommand(
		newUpCommand(),
		newStatusCommand(),
	)

	return cmd
}

func newUpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Run all pending migrations",
		Long:  `Apply all pending migrations to the local store.`,
		RunE:  runUp,
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		Long:  `Display the current schema version of the local store.`,
		RunE:  runStatus,
	}
}

func initEnv() (*gorm.DB, logger.Interface, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&cfg.Logger); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := database.Open(cfg.Store.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return db, logger.NewLogger(), nil
}

func runUp(cmd *cobra.Command, args []string) error {
	db, log, err := initEnv()
	if err != nil {
		return err
	}
	defer database.Close(db)

	log.Infow("running up migrations", "strategy", strategy)

	if err := migration.NewManager(strategy, log).Migrate(cmd.Context(), db); err != nil {
		log.Errorw("migration failed", "error", err)
		return err
	}

	log.Infow("migrations completed successfully")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	db, log, err := initEnv()
	if err != nil {
		return err
	}
	defer database.Close(db)

	manager := migration.NewManager(migration.StrategyGoose, log)
	version, err := manager.Version(cmd.Context(), db)
	if err != nil {
		log.Errorw("failed to get migration version", "error", err)
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nMigration Status:\n")
	fmt.Fprintf(out, "  Strategy:        %s\n", manager.GetStrategy().GetName())
	fmt.Fprintf(out, "  Current Version: %d\n", version)
	return nil
}
