package plugin

import (
	"fmt"
	"strings"
)

// RegistrationError reports an attempt to bind a plugin name that is
// already taken. The first registration always wins.
type RegistrationError struct {
	// Kind is the plugin kind the registry serves, e.g. "acquirer".
	Kind string

	// Name is the identifier that was already bound.
	Name string
}

// Error implements the error interface.
func (e *RegistrationError) Error() string {
	return fmt.Sprintf("plugin: %s %q already registered", e.Kind, e.Name)
}

// LookupError reports that a plugin could not be resolved: the name is
// unknown, or an external plugin failed to load.
type LookupError struct {
	// Kind is the plugin kind the registry serves.
	Kind string

	// Name is the identifier that failed to resolve.
	Name string

	// Known lists the registered names, for unknown-name errors.
	Known []string

	// Reason describes load failures of external plugins.
	Reason string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *LookupError) Error() string {
	if e.Reason != "" {
		msg := fmt.Sprintf("plugin: %s %q: %s", e.Kind, e.Name, e.Reason)
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", msg, e.Err)
		}
		return msg
	}
	if len(e.Known) > 0 {
		return fmt.Sprintf("plugin: no registered %s %q (known: %s)",
			e.Kind, e.Name, strings.Join(e.Known, ", "))
	}
	return fmt.Sprintf("plugin: no registered %s %q", e.Kind, e.Name)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *LookupError) Unwrap() error {
	return e.Err
}
