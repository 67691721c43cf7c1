package commands

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/graftwork/graft/pkg/deploy"
)

func newDeployCommand() *cobra.Command {
	var (
		payloadDir  string
		name        string
		environment string
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy an already-materialized payload directory",
		Long: `Build and run the step list of a payload directory that is already on
disk, skipping acquisition entirely. Meant for payload authoring: point
it at a working copy and watch the steps run.

No instance configuration is read; the payload's name and environment
tag come from flags.`,
		Example: `  # Deploy the working copy in the current directory
  graft deploy --payload-dir .

  # Deploy with an explicit environment tag
  graft deploy --payload-dir ./web --environment staging`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := filepath.Abs(payloadDir)
			if err != nil {
				return err
			}
			if name == "" {
				name = filepath.Base(dir)
			}

			p := deploy.NewStaticPayload(name, dir, environment)
			d, err := deploy.NewDeployer(p)
			if err != nil {
				return err
			}
			return d.Deploy(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&payloadDir, "payload-dir", ".", "payload directory to deploy")
	cmd.Flags().StringVar(&name, "name", "", "payload name (default: directory basename)")
	cmd.Flags().StringVar(&environment, "environment", "production", "environment tag exported to steps")

	return cmd
}
