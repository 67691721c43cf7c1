package deploy

import (
	"context"
	"fmt"

	"github.com/graftwork/graft/pkg/environ"
)

func init() {
	Registry.MustRegister("exec", newExecHandler)
}

// execCommand is one resolved command: a shell line run through
// /bin/sh -c, or a direct argv vector.
type execCommand struct {
	display string
	argv    []string
}

// execHandler runs commands inside the payload directory. Children see
// PATH and GRAFT_ENVIRONMENT only; their output streams to the console.
type execHandler struct {
	payload  PayloadInfo
	commands []execCommand
}

// newExecHandler interprets the declarative value: a string is a single
// shell command, a list mixes shell commands (strings) and direct argv
// vectors (lists of strings).
func newExecHandler(d *Deployer, value any) (Handler, error) {
	h := &execHandler{payload: d.Payload()}

	add := func(item any) error {
		switch v := item.(type) {
		case string:
			h.commands = append(h.commands, execCommand{
				display: v,
				argv:    []string{"/bin/sh", "-c", v},
			})
			return nil
		case []any:
			argv := make([]string, 0, len(v))
			for _, elem := range v {
				s, ok := elem.(string)
				if !ok {
					return fmt.Errorf("argv element must be a string, got %T", elem)
				}
				argv = append(argv, s)
			}
			if len(argv) == 0 {
				return fmt.Errorf("argv must not be empty")
			}
			h.commands = append(h.commands, execCommand{
				display: displayValue(v),
				argv:    argv,
			})
			return nil
		}
		return fmt.Errorf("command must be a string or a list of strings, got %T", item)
	}

	switch v := value.(type) {
	case string:
		if err := add(v); err != nil {
			return nil, err
		}
	case []any:
		for _, item := range v {
			if err := add(item); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("exec value must be a string or a list, got %T", value)
	}
	return h, nil
}

// Deploy runs the configured commands in order, stopping at the first
// failure.
func (h *execHandler) Deploy(ctx context.Context) error {
	runner := &environ.Runner{Environment: h.payload.Environment()}
	for _, cmd := range h.commands {
		code, err := runner.Stream(ctx, h.payload.Directory(), cmd.argv)
		if err != nil {
			return &DeploymentError{
				Payload: h.payload.Name(),
				Step:    "exec",
				Command: cmd.display,
				Reason:  "cannot run command",
				Err:     err,
			}
		}
		if code != 0 {
			return &DeploymentError{
				Payload:  h.payload.Name(),
				Step:     "exec",
				Command:  cmd.display,
				ExitCode: code,
			}
		}
	}
	return nil
}
