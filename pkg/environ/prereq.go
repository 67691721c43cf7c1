package environ

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog/log"
)

// requiredTools maps each external tool the orchestrator shells out to
// onto the package providing it, per distribution family.
var requiredTools = map[string]map[Family]string{
	"git": {
		FamilyDebian: "git",
		FamilyRHEL:   "git",
	},
}

// CheckPrerequisites verifies the external tools graft depends on are
// present on PATH. With install set, missing tools are installed through
// the distribution package manager; otherwise a missing tool is an
// EnvironmentError.
func CheckPrerequisites(ctx context.Context, install bool) error {
	distro, err := Detect()
	if err != nil {
		return err
	}

	var missing []string
	for tool, packages := range requiredTools {
		if _, err := exec.LookPath(tool); err == nil {
			continue
		}
		if !install {
			return &EnvironmentError{
				Op:     "prereq",
				Distro: distro.ID,
				Reason: fmt.Sprintf("required tool %q not found on PATH", tool),
			}
		}
		pkg, ok := packages[distro.Family()]
		if !ok {
			return &EnvironmentError{
				Op:     "prereq",
				Distro: distro.ID,
				Reason: fmt.Sprintf("don't know how to install %s on %s", tool, distro.ID),
			}
		}
		missing = append(missing, pkg)
	}

	if len(missing) > 0 {
		log.Info().Strs("packages", missing).Msg("installing missing prerequisites")
		return InstallPackages(ctx, missing)
	}
	return nil
}
