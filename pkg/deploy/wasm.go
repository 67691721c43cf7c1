package deploy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/graftwork/graft/pkg/environ"
	"github.com/graftwork/graft/pkg/plugin"
)

// pluginInput is the JSON document an external handler reads on stdin:
// the payload it is deploying and the step's declarative value.
type pluginInput struct {
	Payload pluginPayload `json:"payload"`
	Value   any           `json:"value"`
}

type pluginPayload struct {
	Name        string `json:"name"`
	Directory   string `json:"directory"`
	Environment string `json:"environment"`
}

// wasmHandler bridges one compiled plugin module into the handler
// registry. The module runs once per step; a non-zero exit fails the
// step.
type wasmHandler struct {
	payload PayloadInfo
	module  *plugin.Module
	value   any
}

// RegisterExternal registers every loaded plugin module as a deployment
// handler under the module's name. A module whose name collides with a
// builtin or another plugin is a RegistrationError, same as any other
// duplicate.
func RegisterExternal(modules []*plugin.Module) error {
	for _, module := range modules {
		m := module
		err := Registry.Register(m.Name(), func(d *Deployer, value any) (Handler, error) {
			return &wasmHandler{payload: d.Payload(), module: m, value: value}, nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Deploy serializes the step input and runs the plugin to completion.
func (h *wasmHandler) Deploy(ctx context.Context) error {
	input := pluginInput{
		Payload: pluginPayload{
			Name:        h.payload.Name(),
			Directory:   h.payload.Directory(),
			Environment: h.payload.Environment(),
		},
		Value: h.value,
	}
	stdin, err := json.Marshal(input)
	if err != nil {
		return &DeploymentError{
			Payload: h.payload.Name(),
			Step:    h.module.Name(),
			Reason:  "cannot encode plugin input",
			Err:     err,
		}
	}

	env := map[string]string{}
	if h.payload.Environment() != "" {
		env[environ.EnvironmentVar] = h.payload.Environment()
	}
	if err := h.module.Run(ctx, stdin, env, []string{h.payload.Directory()}); err != nil {
		return &DeploymentError{
			Payload: h.payload.Name(),
			Step:    h.module.Name(),
			Command: fmt.Sprintf("plugin %s", h.module.Path()),
			Reason:  "plugin execution failed",
			Err:     err,
		}
	}
	return nil
}
