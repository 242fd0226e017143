// Package device prints this installation's identity.
package device

import (
	"github.com/spf13/cobra"

	"github.com/pmaschool/authcore/internal/interfaces/cli/terminal"
)

var configPath string

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Inspect this device",
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the device identity",
		Long:  `Print the identity this installation reports to the backend as YAML.`,
		RunE:  runShow,
	})

	return cmd
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, err := terminal.Open(ctx, configPath)
	if err != nil {
		return err
	}
	defer c.Close()

	id, err := c.Identity.Get(ctx)
	if err != nil {
		return terminal.Fail(cmd.ErrOrStderr(), c.Messages, err)
	}
	return terminal.PrintYAML(cmd.OutOrStdout(), id)
}
