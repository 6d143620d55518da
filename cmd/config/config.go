package configcmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/sthembisoo/reportit/config"
)

var (
	flagFile    string
	flagBridge  string
	flagEnabled bool
)

func NewCmdConfig() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the resolved reporting configuration",
		Long: `Print the resolved reporting configuration as TOML.

Values are resolved from the defaults, the environment
(CURSOR_EXCEPTION_REPORTING, REPORTIT_*), an optional config file and the
flags, in that order.

Examples:
  reportit config
  reportit config --file reportit.yaml --bridge both`,
		RunE: func(cmd *cobra.Command, args []string) error {
			o := config.Overrides{
				File:   flagFile,
				Bridge: config.BridgeType(flagBridge),
			}
			if cmd.Flags().Changed("enabled") {
				o.Enabled = config.Bool(flagEnabled)
			}
			return show(os.Stdout, o)
		},
	}

	cmd.Flags().StringVarP(&flagFile, "file", "f", "", "TOML or YAML config file")
	cmd.Flags().StringVarP(&flagBridge, "bridge", "b", "", "Bridge type override")
	cmd.Flags().BoolVar(&flagEnabled, "enabled", false, "Enablement override")

	return cmd
}

func show(out io.Writer, o config.Overrides) error {
	cfg, err := config.Resolve(o)
	if err != nil {
		return err
	}

	encoded, err := config.Encode(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	_, err = io.WriteString(out, encoded)
	return err
}
