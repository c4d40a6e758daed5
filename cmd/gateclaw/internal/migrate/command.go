package migrate

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/gateclaw/pkg/migrate"
)

func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate configuration between formats",
		Example: `  gateclaw migrate to-toml
  gateclaw migrate to-toml --dry-run`,
	}

	var tomlOpts migrate.ToTOMLOptions

	toTOMLCmd := &cobra.Command{
		Use:   "to-toml",
		Short: "Convert JSON config to TOML format",
		Args:  cobra.NoArgs,
		Example: `  gateclaw migrate to-toml
  gateclaw migrate to-toml --dry-run
  gateclaw migrate to-toml --config ~/.gateclaw/config.json
  gateclaw migrate to-toml --output ~/.gateclaw/config.toml --force --keep-secrets`,
		RunE: func(_ *cobra.Command, _ []string) error {
			tomlOpts.Out = os.Stdout
			result, err := migrate.RunToTOML(tomlOpts)
			if err != nil {
				return err
			}
			if !tomlOpts.DryRun {
				fmt.Printf("TOML config written to %s\n", result.OutputPath)
			}
			if len(result.Warnings) > 0 {
				fmt.Println("\nWarnings:")
				for _, w := range result.Warnings {
					fmt.Printf("  - %s\n", w)
				}
			}
			return nil
		},
	}

	toTOMLCmd.Flags().StringVar(&tomlOpts.ConfigPath, "config", "",
		"JSON config file path (default: ~/.gateclaw/config.json)")
	toTOMLCmd.Flags().StringVar(&tomlOpts.OutputPath, "output", "",
		"TOML output file path (default: same dir as input, .toml extension)")
	toTOMLCmd.Flags().BoolVar(&tomlOpts.DryRun, "dry-run", false,
		"Print generated TOML without writing")
	toTOMLCmd.Flags().BoolVar(&tomlOpts.Force, "force", false,
		"Overwrite existing output file")
	toTOMLCmd.Flags().BoolVar(&tomlOpts.KeepSecrets, "keep-secrets", false,
		"Copy credentials into the TOML file instead of leaving them to env vars")

	cmd.AddCommand(toTOMLCmd)

	return cmd
}
