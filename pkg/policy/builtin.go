package policy

// builtinHygiene is the compiled-in policy set: advisory checks that
// hold on any site. Sites needing hard rules drop their own deny rules
// into the policy directory.
const builtinHygiene = `package graft.builtin.hygiene

import rego.v1

# A payload with no steps was acquired for nothing.
warn contains msg if {
	some p in input.payloads
	count(p.steps) == 0
	msg := sprintf("payload %s declares no deployment steps", [p.name])
}

# Steps already run as root; sudo in a shell command is a smell.
warn contains msg if {
	some p in input.payloads
	some s in p.steps
	s.handler == "exec"
	is_string(s.value)
	contains(s.value, "sudo")
	msg := sprintf("payload %s uses sudo in a shell command", [p.name])
}
`
