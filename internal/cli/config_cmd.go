package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewConfigCommand creates the config command.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after applying --config over the defaults.

The text format is YAML and can be used as a starting config file.

Example:
  readmeplay config > readmeplay.yaml
  readmeplay config -c readmeplay.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			data, err := cfg.Marshal()
			if err != nil {
				return WrapExitError(ExitFailure, "failed to encode config", err)
			}
			return rootOpts.formatter(cmd).Result(cfg, func(w io.Writer) {
				fmt.Fprint(w, string(data))
			})
		},
	}
}
