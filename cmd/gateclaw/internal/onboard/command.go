package onboard

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/gateclaw/cmd/gateclaw/internal"
)

func NewOnboardCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:     "onboard",
		Aliases: []string{"o"},
		Short:   "Initialize gateclaw configuration",
		Args:    cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if configPath == "" {
				configPath = internal.GetConfigPath()
			}
			return onboard(os.Stdin, os.Stdout, configPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Config file path (default: ~/.gateclaw/config.json)")

	return cmd
}
