package deploy

import "fmt"

// DeploymentError reports a failed deployment step or a payload whose
// step configuration could not be built. The failing command and exit
// status are carried so the run log identifies exactly what broke.
type DeploymentError struct {
	// Payload is the payload being deployed.
	Payload string

	// Step is the handler name of the failing step, if the error is
	// about one step.
	Step string

	// Command describes the failing command or declarative value.
	Command string

	// ExitCode is the literal non-zero result, when a command failed.
	ExitCode int

	// Reason is the human-readable description of the failure.
	Reason string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *DeploymentError) Error() string {
	msg := e.Reason
	if msg == "" && e.ExitCode != 0 {
		msg = fmt.Sprintf("step returned failure (%d)", e.ExitCode)
	}
	if e.Step != "" {
		msg = fmt.Sprintf("step %s: %s", e.Step, msg)
	}
	if e.Command != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Command)
	}
	if e.Payload != "" {
		msg = fmt.Sprintf("payload %s: %s", e.Payload, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("deploy: %s: %v", msg, e.Err)
	}
	return fmt.Sprintf("deploy: %s", msg)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *DeploymentError) Unwrap() error {
	return e.Err
}
