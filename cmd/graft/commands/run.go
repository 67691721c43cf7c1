package commands

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/graftwork/graft/pkg/environ"
	"github.com/graftwork/graft/pkg/runtime"
)

func newRunCommand(version string) *cobra.Command {
	var installPrereqs bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Acquire and deploy every configured payload",
		Long: `Run the full payload lifecycle: acquire every configured payload,
evaluate the loaded policies over the planned work, then deploy each
payload's step list in order. This is what the stage-1 stub invokes on
first boot.

Both phases stop at the first failure. Acquired payload contents live
in a scratch directory that is removed when the run finishes, whatever
the outcome.`,
		Example: `  # First-boot run against /etc/graft.ini
  graft run

  # Run against a local configuration, installing missing tools first
  graft run -c ./graft.ini --install-prereqs`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if err := environ.CheckPrerequisites(ctx, installPrereqs); err != nil {
				return err
			}

			r, err := runtime.New(ctx, cfg, version)
			if err != nil {
				return err
			}
			defer func() {
				if err := r.Close(ctx); err != nil {
					log.Warn().Err(err).Msg("cleanup failed")
				}
			}()

			return r.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&installPrereqs, "install-prereqs", false, "install missing prerequisite tools before running")

	return cmd
}
