package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/pmaschool/authcore/internal/infrastructure/config"
	"github.com/pmaschool/authcore/internal/infrastructure/devauthority"
	httpRouter "github.com/pmaschool/authcore/internal/interfaces/http"
	"github.com/pmaschool/authcore/internal/shared/biztime"
	sharedConfig "github.com/pmaschool/authcore/internal/shared/config"
	"github.com/pmaschool/authcore/internal/shared/logger"
)

var (
	configPath string
	seedUsers  []string
	release    bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authority",
		Short: "Development authority",
		Long:  `Run an in-memory authority that speaks the school backend's JSON-RPC API.`,
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the development authority",
		Long: `Start the development authority HTTP server. Accounts come from
devauthority.seed_users and from --seed-user flags.`,
		RunE: run,
	}
	serve.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	serve.Flags().StringArrayVar(&seedUsers, "seed-user", nil, "Account to create, as username:password:role[:name] (repeatable)")
	serve.Flags().BoolVar(&release, "release", false, "Run gin in release mode")

	cmd.AddCommand(serve)
	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&cfg.Logger); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.NewLogger()

	ginMode := gin.DebugMode
	if release {
		ginMode = gin.ReleaseMode
	}
	gin.SetMode(ginMode)

	gin.DefaultWriter = io.Discard
	gin.DebugPrintRouteFunc = func(httpMethod, absolutePath, handlerName string, nuHandlers int) {
	}

	users, err := collectSeedUsers(cfg.DevAuthority.SeedUsers, seedUsers)
	if err != nil {
		return err
	}

	authority := devauthority.New(cfg.DevAuthority, biztime.SystemClock(), log.Named("devauthority"))
	if err := seed(authority, users); err != nil {
		return err
	}
	log.Infow("development authority seeded", "accounts", len(users), "database", cfg.DevAuthority.Database)

	router := httpRouter.NewRouter(authority, cfg.DevAuthority, log.Named("http"))
	router.SetupRoutes()

	srv := &http.Server{
		Addr:         cfg.DevAuthority.GetAddr(),
		Handler:      router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infow("server starting", "address", srv.Addr, "mode", ginMode)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-serveErr:
		if ok {
			log.Errorw("failed to start server", "error", err)
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-quit:
	}

	log.Infow("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
		return err
	}

	log.Infow("server exited gracefully")
	return nil
}

// collectSeedUsers merges configured accounts with flag accounts. A flag
// account replaces a configured one with the same username.
func collectSeedUsers(configured []sharedConfig.SeedUser, flags []string) ([]sharedConfig.SeedUser, error) {
	byName := make(map[string]int, len(configured))
	out := make([]sharedConfig.SeedUser, 0, len(configured)+len(flags))
	for _, u := range configured {
		byName[strings.ToLower(u.Username)] = len(out)
		out = append(out, u)
	}

	for _, raw := range flags {
		u, err := parseSeedUser(raw)
		if err != nil {
			return nil, err
		}
		if i, ok := byName[strings.ToLower(u.Username)]; ok {
			out[i] = u
			continue
		}
		byName[strings.ToLower(u.Username)] = len(out)
		out = append(out, u)
	}
	return out, nil
}

func parseSeedUser(raw string) (sharedConfig.SeedUser, error) {
	parts := strings.SplitN(raw, ":", 4)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" {
		return sharedConfig.SeedUser{}, fmt.Errorf("invalid --seed-user %q, want username:password:role[:name]", raw)
	}
	u := sharedConfig.SeedUser{Username: parts[0], Password: parts[1], Role: parts[2]}
	if len(parts) == 4 {
		u.Name = parts[3]
	}
	return u, nil
}

func seed(authority *devauthority.Authority, users []sharedConfig.SeedUser) error {
	for _, u := range users {
		name := u.Name
		if name == "" {
			name = u.Username
		}
		if _, err := authority.AddUser(u.Username, u.Password, name, u.Role); err != nil {
			return fmt.Errorf("seed user %s: %w", u.Username, err)
		}
	}
	return nil
}
