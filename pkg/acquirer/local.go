package acquirer

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/graftwork/graft/pkg/config"
)

func init() {
	Registry.MustRegister("local", newLocal)
}

// localAcquirer copies a payload from a directory already on the host,
// for image-baked payloads and development.
type localAcquirer struct {
	section string
	path    string
}

func newLocal(cfg *config.Config, section string) (Acquirer, error) {
	opts, err := cfg.Absorb(section, []string{"path"}, nil)
	if err != nil {
		return nil, err
	}
	return &localAcquirer{section: section, path: opts["path"]}, nil
}

func (a *localAcquirer) Fetch(ctx context.Context, dir string) error {
	log.Info().Str("path", a.path).Str("dir", dir).Msg("copying local payload")

	info, err := os.Stat(a.path)
	if err != nil {
		return &AcquisitionError{Method: "local", Section: a.section, Reason: "cannot read source path", Err: err}
	}
	if !info.IsDir() {
		return &AcquisitionError{Method: "local", Section: a.section, Reason: "source path is not a directory"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &AcquisitionError{Method: "local", Section: a.section, Reason: "cannot create payload directory", Err: err}
	}
	if err := os.CopyFS(dir, os.DirFS(a.path)); err != nil {
		return &AcquisitionError{Method: "local", Section: a.section, Reason: "copy failed", Err: err}
	}
	return nil
}
