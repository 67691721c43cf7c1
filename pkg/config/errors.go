package config

import "fmt"

// ConfigurationError reports a problem with the graft configuration file:
// a failed load, a re-load attempt, or a missing required option.
type ConfigurationError struct {
	// Path is the configuration file path, when known.
	Path string

	// Section is the INI section the error relates to, if any.
	Section string

	// Key is the option within Section, if the error is about one option.
	Key string

	// Reason is the human-readable description of the problem.
	Reason string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	msg := e.Reason
	if e.Section != "" && e.Key != "" {
		msg = fmt.Sprintf("%s (section=%s, key=%s)", e.Reason, e.Section, e.Key)
	} else if e.Section != "" {
		msg = fmt.Sprintf("%s (section=%s)", e.Reason, e.Section)
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", e.Path, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("configuration: %s: %s", msg, e.Err)
	}
	return fmt.Sprintf("configuration: %s", msg)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
