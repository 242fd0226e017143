// Package biometrics holds the commands managing biometric login on this device.
package biometrics

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pmaschool/authcore/internal/domain/biometric"
	"github.com/pmaschool/authcore/internal/domain/credential"
	"github.com/pmaschool/authcore/internal/interfaces/cli/account"
	"github.com/pmaschool/authcore/internal/interfaces/cli/terminal"
	"github.com/pmaschool/authcore/internal/interfaces/messages"
)

var (
	configPath string
	username   string
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "biometrics",
		Short: "Manage biometric login",
		Long:  `Enable, disable or inspect biometric login on this device.`,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	cmd.AddCommand(
		newEnableCommand(),
		newDisableCommand(),
		newStatusCommand(),
	)

	return cmd
}

func newEnableCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enable",
		Short: "Enable biometric login",
		Long: `Log in with the password, confirm with biometrics and store the credential
for later biometric logins.`,
		RunE: runEnable,
	}

	cmd.Flags().StringVarP(&username, "user", "u", "", "Username (required)")
	cmd.MarkFlagRequired("user")

	return cmd
}

func newDisableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "disable",
		Short: "Disable biometric login",
		Long:  `Delete the stored credential. The current session is not affected.`,
		RunE:  runDisable,
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show biometric status",
		Long:  `Print hardware availability and the stored enrollment as YAML.`,
		RunE:  runStatus,
	}
}

func runEnable(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, err := terminal.Open(ctx, configPath)
	if err != nil {
		return err
	}
	defer c.Close()

	if _, err := account.LoginWithPassword(ctx, c, username); err != nil {
		return terminal.Fail(cmd.ErrOrStderr(), c.Messages, err)
	}

	enrollment, err := c.Auth.EnableBiometrics(ctx, c.PromptConfig(ctx, messages.KeyPromptEnable))
	if err != nil {
		return terminal.Fail(cmd.ErrOrStderr(), c.Messages, err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), c.Messages.Sprintf(messages.KeyBiometricsOn, c.Auth.BiometricLabel(ctx), enrollment.Username))
	return nil
}

func runDisable(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, err := terminal.Open(ctx, configPath)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Auth.DisableBiometrics(ctx); err != nil {
		return terminal.Fail(cmd.ErrOrStderr(), c.Messages, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), c.Messages.Sprintf(messages.KeyBiometricsOff))
	return nil
}

// status is the document printed by `biometrics status`.
type status struct {
	Label        string                 `yaml:"label"`
	Availability biometric.Availability `yaml:"availability"`
	Enabled      bool                   `yaml:"enabled"`
	Enrollment   *credential.Enrollment `yaml:"enrollment,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, err := terminal.Open(ctx, configPath)
	if err != nil {
		return err
	}
	defer c.Close()

	enrollment, err := c.Auth.CurrentEnrollment(ctx)
	if err != nil {
		return terminal.Fail(cmd.ErrOrStderr(), c.Messages, err)
	}

	return terminal.PrintYAML(cmd.OutOrStdout(), status{
		Label:        c.Auth.BiometricLabel(ctx),
		Availability: c.Auth.IsBiometricAvailable(ctx),
		Enabled:      c.Auth.IsBiometricEnabled(ctx),
		Enrollment:   enrollment,
	})
}
