package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/pmaschool/authcore/internal/interfaces/cli/account"
	"github.com/pmaschool/authcore/internal/interfaces/cli/biometrics"
	"github.com/pmaschool/authcore/internal/interfaces/cli/device"
	"github.com/pmaschool/authcore/internal/interfaces/cli/migrate"
	"github.com/pmaschool/authcore/internal/interfaces/cli/server"
	"github.com/pmaschool/authcore/internal/interfaces/cli/terminal"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "authcore",
		Short: "authcore - school app authentication client",
		Long: `authcore signs users in to the school backend with a password or biometrics,
manages device trust for biometric login and ships a development authority.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		account.NewLoginCommand(),
		account.NewLogoutCommand(),
		biometrics.NewCommand(),
		device.NewCommand(),
		server.NewCommand(),
		migrate.NewCommand(),
	)

	// The authority server handles its own signals.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var reported *terminal.ReportedError
		if !errors.As(err, &reported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		stop()
		os.Exit(1)
	}
}
