package deploy

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/graftwork/graft/pkg/environ"
)

func init() {
	Registry.MustRegister("packages", newPackagesHandler)
}

// packagesHandler installs system packages through the host's package
// manager. The package list resolves against the detected distribution
// at deploy time, not at configure time, so a step file written for
// several distributions configures everywhere.
type packagesHandler struct {
	payload PayloadInfo
	value   any
}

func newPackagesHandler(d *Deployer, value any) (Handler, error) {
	return &packagesHandler{payload: d.Payload(), value: value}, nil
}

// Deploy resolves the declared packages for the running distribution and
// installs them. An empty resolution is a no-op, not an error.
func (h *packagesHandler) Deploy(ctx context.Context) error {
	distro, err := environ.Detect()
	if err != nil {
		return &DeploymentError{
			Payload: h.payload.Name(),
			Step:    "packages",
			Reason:  "cannot detect distribution",
			Err:     err,
		}
	}

	pkgs, err := environ.ResolvePackages(h.value, distro.ID)
	if err != nil {
		return &DeploymentError{
			Payload: h.payload.Name(),
			Step:    "packages",
			Command: displayValue(h.value),
			Reason:  "cannot resolve package list",
			Err:     err,
		}
	}
	if len(pkgs) == 0 {
		log.Debug().Str("payload", h.payload.Name()).Msg("no packages to install for this distribution")
		return nil
	}

	if err := environ.InstallPackages(ctx, pkgs); err != nil {
		return &DeploymentError{
			Payload: h.payload.Name(),
			Step:    "packages",
			Command: displayValue(pkgs),
			Reason:  "package installation failed",
			Err:     err,
		}
	}
	return nil
}
