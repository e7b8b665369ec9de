package cli

import (
	"github.com/ralt/swidgen/internal/models"
	"github.com/ralt/swidgen/internal/swid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewSoftwareIDCmd creates the software-id command
func NewSoftwareIDCmd() *cobra.Command {
	var config models.TagConfig

	cmd := &cobra.Command{
		Use:   "software-id",
		Short: "Print the software ids of installed packages",
		Long: `Prints the software id (<regid>__<unique-id>) every generated tag would
carry, without building the tags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateTagConfig(&config); err != nil {
				return err
			}

			env, err := newEnvironment(config.Environment)
			if err != nil {
				return err
			}
			logrus.Debugf("Using %s environment", env.Name())

			out := &streamWriter{w: cmd.OutOrStdout(), separator: config.DocSeparator}
			for id, err := range swid.CreateSoftwareIDs(cmd.Context(), env, config.RegID, swid.NewMatcher(config.PackageName, "")) {
				if err != nil {
					return err
				}
				if err := out.write([]byte(id)); err != nil {
					return err
				}
			}
			return out.close()
		},
	}

	cmd.Flags().StringVar(&config.RegID, "regid", models.DefaultRegID, "Registration id of the tag creator entity")
	cmd.Flags().StringVar(&config.PackageName, "package", "", "Only print the software id of this package")
	cmd.Flags().StringVar(&config.Environment, "env", "", "Package manager to query (dpkg, rpm, pacman); autodetected when empty")
	cmd.Flags().StringVar(&config.DocSeparator, "doc-separator", models.DefaultDocSeparator, "Separator between software ids")

	return cmd
}
