package commands

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/graftwork/graft/pkg/deploy"
)

// devDebounce coalesces the event bursts editors produce on save.
const devDebounce = 500 * time.Millisecond

func newDevCommand() *cobra.Command {
	var (
		payloadDir  string
		environment string
	)

	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Watch a payload directory and redeploy on change",
		Long: `Payload-author inner loop: watch a payload working copy and, every time
it changes, deploy a fresh scratch copy of it. The working copy itself
is never touched; each round deploys into a new temporary directory
that is removed afterwards.`,
		Example: `  # Iterate on a payload
  graft dev --payload-dir ./web

  # Iterate with the production environment tag
  graft dev --payload-dir ./web --environment production`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := filepath.Abs(payloadDir)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			name := filepath.Base(dir)

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return err
			}
			defer watcher.Close()
			if err := watchTree(watcher, dir); err != nil {
				return err
			}

			devDeploy(ctx, name, dir, environment)

			var timer *time.Timer
			var pending <-chan time.Time
			for {
				select {
				case <-ctx.Done():
					return nil
				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					log.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("change detected")
					if event.Op.Has(fsnotify.Create) {
						if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
							_ = watchTree(watcher, event.Name)
						}
					}
					if timer == nil {
						timer = time.NewTimer(devDebounce)
					} else {
						timer.Reset(devDebounce)
					}
					pending = timer.C
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					log.Warn().Err(err).Msg("watch error")
				case <-pending:
					pending = nil
					devDeploy(ctx, name, dir, environment)
				}
			}
		},
	}

	cmd.Flags().StringVar(&payloadDir, "payload-dir", ".", "payload directory to watch")
	cmd.Flags().StringVar(&environment, "environment", "development", "environment tag exported to steps")

	return cmd
}

// watchTree adds root and every directory under it to the watcher.
func watchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

// devDeploy copies the working tree to a scratch directory and deploys
// the copy. Failures are logged, not fatal: the loop keeps watching.
func devDeploy(ctx context.Context, name, dir, environment string) {
	scratch, err := os.MkdirTemp("", "graft-dev-")
	if err != nil {
		log.Error().Err(err).Msg("cannot create scratch directory")
		return
	}
	defer os.RemoveAll(scratch)

	copyDir := filepath.Join(scratch, name)
	if err := os.CopyFS(copyDir, os.DirFS(dir)); err != nil {
		log.Error().Err(err).Msg("cannot copy payload")
		return
	}

	p := deploy.NewStaticPayload(name, copyDir, environment)
	d, err := deploy.NewDeployer(p)
	if err != nil {
		log.Error().Err(err).Msg("step configuration invalid")
		return
	}

	start := time.Now()
	if err := d.Deploy(ctx); err != nil {
		log.Error().Err(err).Msg("deployment failed")
		return
	}
	log.Info().
		Int("steps", len(d.Steps())).
		Dur("took", time.Since(start)).
		Msg("deployment succeeded, watching for changes")
}
