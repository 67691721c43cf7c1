package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/graftwork/graft/pkg/config"
)

func newPayloadsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payloads",
		Short: "List the configured payloads",
		Long: `Print each payload the configuration declares, in declaration order,
with its acquisition method and environment tag.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tMETHOD\tENVIRONMENT")
			for _, name := range cfg.PayloadNames() {
				section := config.PayloadSection(name)
				method := cfg.Value(section, "acquire_method")
				if method == "" {
					method = "(missing)"
				}
				environment := cfg.Value(section, "environment")
				if environment == "" {
					environment = "production"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", name, method, environment)
			}
			return w.Flush()
		},
	}

	return cmd
}
