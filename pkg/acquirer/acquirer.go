// Package acquirer fetches payload contents into local directories. Each
// acquisition method is a plugin resolved by name through the package
// registry; the builtin methods (git, sftp, http, local) register
// themselves at startup.
package acquirer

import (
	"context"

	"github.com/graftwork/graft/pkg/config"
	"github.com/graftwork/graft/pkg/plugin"
)

// Acquirer materializes a payload's contents from its source.
type Acquirer interface {
	// Fetch populates dir with the payload contents. The parent of dir
	// exists; dir itself may need creating. Fetch failures are
	// AcquisitionErrors carrying any captured tool output.
	Fetch(ctx context.Context, dir string) error
}

// Factory constructs an acquirer from its configuration section.
// Construction absorbs the section's options, so a misconfigured
// payload fails before anything is fetched.
type Factory func(cfg *config.Config, section string) (Acquirer, error)

// Registry holds the registered acquisition methods.
var Registry = plugin.NewRegistry[Factory]("acquirer")

// New resolves method through the registry and constructs the acquirer
// from its configuration section.
func New(cfg *config.Config, method, section string) (Acquirer, error) {
	factory, err := Registry.Lookup(method)
	if err != nil {
		return nil, err
	}
	return factory(cfg, section)
}
