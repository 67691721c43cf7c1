package acquirer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/graftwork/graft/pkg/config"
	"github.com/graftwork/graft/pkg/environ"
)

func init() {
	Registry.MustRegister("git", newGit)
}

// gitAcquirer clones a repository and checks out a revision, shelling
// out to the git CLI.
type gitAcquirer struct {
	section    string
	repository string
	revision   string
}

func newGit(cfg *config.Config, section string) (Acquirer, error) {
	opts, err := cfg.Absorb(section,
		[]string{"repository"},
		map[string]string{"revision": "HEAD"})
	if err != nil {
		return nil, err
	}
	return &gitAcquirer{
		section:    section,
		repository: opts["repository"],
		revision:   opts["revision"],
	}, nil
}

// Fetch clones the repository into dir. Any revision other than HEAD is
// checked out detached afterwards, so branches, tags and commit hashes
// all work the same way.
func (a *gitAcquirer) Fetch(ctx context.Context, dir string) error {
	log.Info().
		Str("repository", a.repository).
		Str("revision", a.revision).
		Str("dir", dir).
		Msg("cloning payload repository")

	runner := &environ.Runner{}
	out, code, err := runner.Output(ctx, "", []string{"git", "clone", "--quiet", a.repository, dir})
	if err != nil {
		return &AcquisitionError{Method: "git", Section: a.section, Reason: "git could not run", Err: err}
	}
	if code != 0 {
		return &AcquisitionError{
			Method:  "git",
			Section: a.section,
			Reason:  fmt.Sprintf("git clone exited with status %d", code),
			Output:  out,
		}
	}

	if a.revision == "HEAD" {
		return nil
	}
	out, code, err = runner.Output(ctx, "", []string{"git", "-C", dir, "checkout", "--quiet", "--detach", a.revision})
	if err != nil {
		return &AcquisitionError{Method: "git", Section: a.section, Reason: "git could not run", Err: err}
	}
	if code != 0 {
		return &AcquisitionError{
			Method:  "git",
			Section: a.section,
			Reason:  fmt.Sprintf("git checkout %s exited with status %d", a.revision, code),
			Output:  out,
		}
	}
	return nil
}
