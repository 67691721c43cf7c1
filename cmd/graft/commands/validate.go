package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/graftwork/graft/pkg/deploy"
	"github.com/graftwork/graft/pkg/payload"
	"github.com/graftwork/graft/pkg/policy"
)

func newValidateCommand() *cobra.Command {
	var (
		payloadDir  string
		environment string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration without executing anything",
		Long: `Parse the configuration, resolve every payload's acquirer, and compile
the loaded policies. Nothing is fetched and nothing runs.

With --payload-dir, additionally build the step list of a local payload
directory (parsing its step files and checking handler schemas) and
evaluate the policies against it.`,
		Example: `  # Validate the instance configuration
  graft validate -c ./graft.ini

  # Validate a payload working copy too
  graft validate -c ./graft.ini --payload-dir ./web`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			registry, err := payload.NewRegistry(cfg, "unused")
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "configuration ok: %d payload(s)\n", registry.Len())

			policyCfg, err := cfg.Policy()
			if err != nil {
				return err
			}
			engine, err := policy.NewEngine(ctx, policyCfg.Dir, policyCfg.Builtin)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "policies ok: %d module(s)\n", len(engine.Sources()))

			if payloadDir == "" {
				return nil
			}

			dir, err := filepath.Abs(payloadDir)
			if err != nil {
				return err
			}
			p := deploy.NewStaticPayload(filepath.Base(dir), dir, environment)
			d, err := deploy.NewDeployer(p)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "steps ok: %d step(s) in %s\n", len(d.Steps()), dir)

			input := &policy.Input{Payloads: []policy.PayloadInput{{
				Name:        p.Name(),
				Environment: p.Environment(),
				Steps:       []policy.StepInput{},
			}}}
			for _, step := range d.Steps() {
				input.Payloads[0].Steps = append(input.Payloads[0].Steps,
					policy.StepInput{Handler: step.Handler, Value: step.Value})
			}
			result, err := engine.Evaluate(ctx, input)
			if err != nil {
				return err
			}
			for _, warning := range result.Warnings {
				fmt.Fprintf(out, "policy warning: %s\n", warning)
			}
			if result.Denied() {
				for _, denial := range result.Denials {
					fmt.Fprintf(out, "policy denial: %s\n", denial)
				}
				return fmt.Errorf("policy denied the payload")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&payloadDir, "payload-dir", "", "payload directory to validate")
	cmd.Flags().StringVar(&environment, "environment", "production", "environment tag used for validation")

	return cmd
}
