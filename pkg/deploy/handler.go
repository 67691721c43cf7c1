// Package deploy builds and executes the ordered deployment steps of an
// acquired payload. Steps are declared in the payload's .graft directory
// as YAML or JSON documents, Starlark programs, or plain executables;
// each declaration names a deployment handler resolved through the
// package registry.
package deploy

import (
	"context"

	"github.com/graftwork/graft/pkg/plugin"
)

// PayloadInfo is the narrow view of a payload that handlers may read:
// enough to know where to run and under which environment tag, nothing
// that would let a step reach back into the orchestrator.
type PayloadInfo interface {
	// Name is the payload's configured name.
	Name() string

	// Directory is the payload's acquired working directory.
	Directory() string

	// Environment is the payload's environment tag, exported to child
	// processes as GRAFT_ENVIRONMENT.
	Environment() string
}

// Handler executes one configured deployment step.
type Handler interface {
	// Deploy performs the step. A non-zero result from whatever the
	// step runs is a DeploymentError carrying the literal failing value.
	Deploy(ctx context.Context) error
}

// Factory constructs a handler from its declarative value. Construction
// is the configure phase: a value the handler cannot interpret fails
// here, before any step has run.
type Factory func(d *Deployer, value any) (Handler, error)

// Registry holds the registered deployment handlers: the builtins plus
// whatever the plugin directory contributed at startup.
var Registry = plugin.NewRegistry[Factory]("deployment handler")

// newHandler resolves name and constructs its handler, validating the
// declarative value against the handler's schema first.
func newHandler(name string, d *Deployer, value any) (Handler, error) {
	factory, err := Registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	if err := validateValue(name, value); err != nil {
		return nil, &DeploymentError{
			Payload: d.payload.Name(),
			Step:    name,
			Reason:  "declarative value rejected by schema",
			Err:     err,
		}
	}
	return factory(d, value)
}

// StaticPayload is a PayloadInfo for payloads that were not acquired by
// the runtime: the deploy and dev commands operate on a directory the
// operator already has.
type StaticPayload struct {
	name string
	dir  string
	env  string
}

// NewStaticPayload describes an already-materialized payload directory.
func NewStaticPayload(name, dir, env string) StaticPayload {
	return StaticPayload{name: name, dir: dir, env: env}
}

// Name implements PayloadInfo.
func (p StaticPayload) Name() string { return p.name }

// Directory implements PayloadInfo.
func (p StaticPayload) Directory() string { return p.dir }

// Environment implements PayloadInfo.
func (p StaticPayload) Environment() string { return p.env }
