package environ

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ResolvePackages interprets a declarative package value for the given
// distribution. A string names one package, a list names several, and a
// mapping selects a per-distribution value keyed by lowercase
// distribution id. A mapping without a key for the distribution is an
// EnvironmentError.
func ResolvePackages(value any, distro string) ([]string, error) {
	switch v := value.(type) {
	case string:
		return []string{v}, nil
	case []any:
		pkgs := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, &EnvironmentError{
					Op:     "install",
					Distro: distro,
					Reason: fmt.Sprintf("package list contains non-string element %v", item),
				}
			}
			pkgs = append(pkgs, s)
		}
		return pkgs, nil
	case []string:
		return v, nil
	case map[string]any:
		selected, ok := v[distro]
		if !ok {
			return nil, &EnvironmentError{
				Op:     "install",
				Distro: distro,
				Reason: fmt.Sprintf("don't know how to install %v on %s", value, distro),
			}
		}
		return ResolvePackages(selected, distro)
	}
	return nil, &EnvironmentError{
		Op:     "install",
		Distro: distro,
		Reason: fmt.Sprintf("unsupported package value of type %T", value),
	}
}

// InstallPackages installs pkgs through the distribution's package
// manager, non-interactively. An unrecognized distribution is an
// EnvironmentError, as is a failed installation (with the manager's
// output captured for diagnosis).
func InstallPackages(ctx context.Context, pkgs []string) error {
	if len(pkgs) == 0 {
		return nil
	}
	distro, err := Detect()
	if err != nil {
		return err
	}

	var argv, extra []string
	switch distro.Family() {
	case FamilyDebian:
		argv = append([]string{
			"apt-get", "-q", "-y",
			"-o", "DPkg::Options::=--force-confdef",
			"-o", "DPkg::Options::=--force-confold",
			"install",
		}, pkgs...)
		extra = []string{
			"APT_LISTCHANGES_FRONTEND=none",
			"DEBIAN_FRONTEND=noninteractive",
		}
	case FamilyRHEL:
		argv = append([]string{"yum", "-d", "0", "-e", "0", "-y", "install"}, pkgs...)
	default:
		return &EnvironmentError{
			Op:     "install",
			Distro: distro.ID,
			Reason: fmt.Sprintf("don't know how to install packages on %s", distro.ID),
		}
	}

	log.Info().Strs("packages", pkgs).Str("distro", distro.ID).Msg("installing packages")

	runner := &Runner{}
	out, code, err := runner.Output(ctx, "", argv, extra...)
	if err != nil {
		return &EnvironmentError{Op: "install", Distro: distro.ID, Reason: "package manager could not run", Err: err}
	}
	if code != 0 {
		return &EnvironmentError{
			Op:     "install",
			Distro: distro.ID,
			Reason: fmt.Sprintf("package manager exited with status %d", code),
			Output: out,
		}
	}
	return nil
}
