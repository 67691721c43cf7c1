package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/graftwork/graft/pkg/config"
	"github.com/graftwork/graft/pkg/journal"
)

func newHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded runs from the journal",
		Long: `Read the run journal and print past runs, newest first. With a run id,
print that run's payload phases and deployment steps instead.`,
		Example: `  # Recent runs
  graft history

  # One run in detail
  graft history 2f1c9a7e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			stateCfg, err := cfg.State()
			if err != nil {
				return err
			}
			if stateCfg.Journal == config.Disabled {
				return fmt.Errorf("journal is disabled in the configuration")
			}
			j, err := journal.Open(ctx, stateCfg.Journal)
			if err != nil {
				return err
			}
			defer j.Close()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				runs, err := j.Runs(ctx, limit)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tSTATUS\tSTARTED\tERROR")
				for _, run := range runs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
						run.ID, run.Status, run.StartedAt.Format(time.RFC3339), run.Error)
				}
				return w.Flush()
			}

			runID := args[0]
			phases, err := j.PayloadRuns(ctx, runID)
			if err != nil {
				return err
			}
			steps, err := j.Steps(ctx, runID)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PAYLOAD\tPHASE\tSTATUS\tDURATION\tERROR")
			for _, phase := range phases {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					phase.Payload, phase.Phase, phase.Status, phase.Duration, phase.Error)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if len(steps) > 0 {
				fmt.Fprintln(out)
				w = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "PAYLOAD\tHANDLER\tSOURCE\tSTATUS\tDURATION")
				for _, step := range steps {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
						step.Payload, step.Handler, step.Source, step.Status, step.Duration)
				}
				return w.Flush()
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")

	return cmd
}
