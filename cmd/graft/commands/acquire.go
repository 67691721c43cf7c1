package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/graftwork/graft/pkg/payload"
)

func newAcquireCommand() *cobra.Command {
	var dest string

	cmd := &cobra.Command{
		Use:   "acquire [payload...]",
		Short: "Acquire payloads without deploying them",
		Long: `Fetch the named payloads (or all configured payloads) into a local
directory and stop. Nothing is deployed and the directory is kept, so
the acquired contents can be inspected.`,
		Example: `  # Acquire everything the configuration names
  graft acquire -c ./graft.ini

  # Acquire one payload into a chosen directory
  graft acquire web --dest /tmp/inspect`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			registry, err := payload.NewRegistry(cfg, dest)
			if err != nil {
				return err
			}

			var selected []*payload.Payload
			if len(args) == 0 {
				selected = registry.All()
			} else {
				for _, name := range args {
					p := registry.Get(name)
					if p == nil {
						return fmt.Errorf("payload %s is not configured", name)
					}
					selected = append(selected, p)
				}
			}

			for _, p := range selected {
				if err := p.Acquire(ctx); err != nil {
					return err
				}
				log.Info().Str("payload", p.Name()).Str("dir", p.Directory()).Msg("payload acquired")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dest, "dest", "./graft-payloads", "directory payloads are acquired under")

	return cmd
}
