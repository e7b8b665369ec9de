package cli

import (
	"github.com/ralt/swidgen/internal/environment"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// newEnvironment resolves the package manager environment for a command
var newEnvironment = func(name string) (environment.Environment, error) {
	return environment.ByName(name, environment.NewExecRunner())
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "swidgen",
		Short: "Generate SWID tags for installed software packages",
		Long: `Swidgen queries the host package manager and generates ISO/IEC 19770-2
software identification (SWID) tags for the installed packages.

Supported package managers:
  - dpkg (Debian, Ubuntu)
  - rpm (Fedora, RHEL, SUSE)
  - pacman (Arch Linux)`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Setup logging
			verbose, _ := cmd.Flags().GetBool("verbose")
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.InfoLevel)
			}

			configPath, _ := cmd.Flags().GetString("config")
			return applyConfigFile(cmd, configPath)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file (default $XDG_CONFIG_HOME/swidgen/config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(NewSwidCmd())
	rootCmd.AddCommand(NewSoftwareIDCmd())

	return rootCmd
}
