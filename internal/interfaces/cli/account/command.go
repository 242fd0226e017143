// Package account holds the login and logout commands.
package account

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pmaschool/authcore/internal/domain/session"
	"github.com/pmaschool/authcore/internal/interfaces/app"
	"github.com/pmaschool/authcore/internal/interfaces/cli/terminal"
	"github.com/pmaschool/authcore/internal/interfaces/messages"
)

var (
	configPath string
	username   string
	biometric  bool
)

func NewLoginCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with a password or biometrics",
		Long: `Log in to the school backend. With --user the password is read from the
terminal; with --biometric the stored credential is unlocked instead.`,
		RunE: runLogin,
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().StringVarP(&username, "user", "u", "", "Username for password login")
	cmd.Flags().BoolVar(&biometric, "biometric", false, "Log in with biometrics")
	cmd.MarkFlagsMutuallyExclusive("user", "biometric")
	cmd.MarkFlagsOneRequired("user", "biometric")

	return cmd
}

func NewLogoutCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "End this device's session",
		Long:  `End the remote session of this device. Stored biometric credentials are kept.`,
		RunE:  runLogout,
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	return cmd
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, err := terminal.Open(ctx, configPath)
	if err != nil {
		return err
	}
	defer c.Close()

	var s *session.Session
	if biometric {
		s, err = LoginWithBiometrics(ctx, c)
	} else {
		s, err = LoginWithPassword(ctx, c, username)
	}
	if err != nil {
		return terminal.Fail(cmd.ErrOrStderr(), c.Messages, err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), c.Messages.Sprintf(messages.KeyWelcome, s.User.DisplayName, s.Role))
	return nil
}

// LoginWithPassword reads the password from the terminal and runs the
// password flow.
func LoginWithPassword(ctx context.Context, c *app.Container, user string) (*session.Session, error) {
	password, err := terminal.ReadPassword(os.Stdin, os.Stderr, fmt.Sprintf("Password for %s: ", strings.TrimSpace(user)))
	if err != nil {
		return nil, err
	}
	return c.Auth.Login(ctx, user, password)
}

func LoginWithBiometrics(ctx context.Context, c *app.Container) (*session.Session, error) {
	return c.Auth.LoginWithBiometrics(ctx, c.PromptConfig(ctx, messages.KeyPromptLogin))
}

func runLogout(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, err := terminal.Open(ctx, configPath)
	if err != nil {
		return err
	}
	defer c.Close()

	c.Auth.Logout(ctx)
	fmt.Fprintln(cmd.OutOrStdout(), c.Messages.Sprintf(messages.KeyLoggedOut))
	return nil
}
