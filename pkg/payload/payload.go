// Package payload ties a configured payload's lifecycle together:
// acquisition of its contents, construction of its deployment step list,
// and the hook scripts it may carry.
package payload

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/graftwork/graft/pkg/acquirer"
	"github.com/graftwork/graft/pkg/config"
	"github.com/graftwork/graft/pkg/deploy"
)

// DefaultEnvironment tags payloads that do not declare one.
const DefaultEnvironment = "production"

// Payload is one configured payload. It implements the deploy package's
// payload view.
type Payload struct {
	name        string
	environment string
	method      string
	dir         string

	acq      acquirer.Acquirer
	acquired bool
	deployer *deploy.Deployer
}

// NewPayload resolves the payload's declaration section and constructs
// its acquirer. The payload directory is not created here; Acquire does
// that.
func NewPayload(cfg *config.Config, name, payloadsDir string) (*Payload, error) {
	section := config.PayloadSection(name)
	opts, err := cfg.Absorb(section,
		[]string{"acquire_method"},
		map[string]string{"environment": DefaultEnvironment})
	if err != nil {
		return nil, err
	}

	p := &Payload{
		name:        name,
		environment: opts["environment"],
		method:      opts["acquire_method"],
		dir:         filepath.Join(payloadsDir, name),
	}

	p.acq, err = acquirer.New(cfg, p.method, config.MethodSection(name, p.method))
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Name returns the payload's configured name.
func (p *Payload) Name() string { return p.name }

// Directory returns the payload's working directory under the run's
// payloads directory.
func (p *Payload) Directory() string { return p.dir }

// Environment returns the payload's environment tag.
func (p *Payload) Environment() string { return p.environment }

// Method returns the payload's acquisition method name.
func (p *Payload) Method() string { return p.method }

// Acquired reports whether Acquire has succeeded.
func (p *Payload) Acquired() bool { return p.acquired }

// Acquire fetches the payload's contents into its directory.
func (p *Payload) Acquire(ctx context.Context) error {
	log.Info().
		Str("payload", p.name).
		Str("method", p.method).
		Msg("acquiring payload")
	if err := p.acq.Fetch(ctx, p.dir); err != nil {
		return err
	}
	p.acquired = true
	return nil
}

// Deployer builds, and caches, the payload's ordered step list. The
// payload must have been acquired first; its step configuration does not
// exist before then.
func (p *Payload) Deployer() (*deploy.Deployer, error) {
	if !p.acquired {
		return nil, &deploy.DeploymentError{
			Payload: p.name,
			Reason:  "payload has not been acquired",
		}
	}
	if p.deployer == nil {
		d, err := deploy.NewDeployer(p)
		if err != nil {
			return nil, err
		}
		p.deployer = d
	}
	return p.deployer, nil
}

// Deploy runs the payload's steps in order.
func (p *Payload) Deploy(ctx context.Context) error {
	d, err := p.Deployer()
	if err != nil {
		return err
	}
	log.Info().
		Str("payload", p.name).
		Int("steps", len(d.Steps())).
		Msg("deploying payload")
	return d.Deploy(ctx)
}
