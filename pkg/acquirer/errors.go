package acquirer

import "fmt"

// AcquisitionError reports a failed payload fetch, carrying whatever
// output the external tool produced so the failing run can be diagnosed
// from the log alone.
type AcquisitionError struct {
	// Method is the acquisition method, e.g. "git".
	Method string

	// Section is the configuration section the acquirer was built from.
	Section string

	// Output holds captured command output, if any.
	Output string

	// Reason is the human-readable description of the failure.
	Reason string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *AcquisitionError) Error() string {
	msg := fmt.Sprintf("acquire (%s): %s", e.Method, e.Reason)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Output != "" {
		msg = fmt.Sprintf("%s\noutput: %s", msg, e.Output)
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *AcquisitionError) Unwrap() error {
	return e.Err
}
