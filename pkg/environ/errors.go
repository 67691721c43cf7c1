package environ

import "fmt"

// EnvironmentError reports that the host cannot support a requested
// operation: an unrecognized distribution, a missing prerequisite tool,
// or a failed package-manager invocation.
type EnvironmentError struct {
	// Op is the operation that failed, e.g. "install" or "detect".
	Op string

	// Distro is the detected distribution id, when known.
	Distro string

	// Reason is the human-readable description of the problem.
	Reason string

	// Output holds captured command output for diagnosis, if any.
	Output string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *EnvironmentError) Error() string {
	msg := fmt.Sprintf("environ: %s: %s", e.Op, e.Reason)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Output != "" {
		msg = fmt.Sprintf("%s\noutput: %s", msg, e.Output)
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EnvironmentError) Unwrap() error {
	return e.Err
}
