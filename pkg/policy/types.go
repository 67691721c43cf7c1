// Package policy evaluates Rego policies against a run's planned work
// before any deployment step executes. Policies see every acquired
// payload and its full step list; a deny verdict from any policy stops
// the run between the acquisition and deployment phases.
package policy

// StepInput describes one planned deployment step to a policy.
type StepInput struct {
	// Handler is the resolved handler name.
	Handler string `json:"handler"`

	// Value is the step's declarative value.
	Value any `json:"value"`
}

// PayloadInput describes one acquired payload to a policy.
type PayloadInput struct {
	// Name is the payload's configured name.
	Name string `json:"name"`

	// Environment is the payload's environment tag.
	Environment string `json:"environment"`

	// Steps is the payload's planned step list in execution order.
	Steps []StepInput `json:"steps"`
}

// Input is the document policies evaluate, bound to the `input`
// variable in Rego.
type Input struct {
	Payloads []PayloadInput `json:"payloads"`
}

// Result is the combined verdict of every loaded policy.
type Result struct {
	// Denials are the messages collected from deny rules. Any denial
	// stops the run.
	Denials []string

	// Warnings are the messages collected from warn rules. Warnings are
	// logged and the run proceeds.
	Warnings []string
}

// Denied reports whether any policy denied the run.
func (r *Result) Denied() bool {
	return len(r.Denials) > 0
}
