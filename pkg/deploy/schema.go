package deploy

import (
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// Handler value schemas, CUE. A handler with a registered schema gets
// its declarative value checked at step-build time; handlers without one
// validate in their own configure code.
var (
	schemaMu  sync.RWMutex
	schemaCtx = cuecontext.New()
	schemas   = make(map[string]cue.Value)
)

func init() {
	// exec: a single shell command, or a list mixing shell commands
	// (strings) and direct argv vectors (lists of strings).
	mustRegisterSchema("exec", `string | [...(string | [string, ...string])]`)

	// packages: one package, a list of packages, or a per-distribution
	// mapping of either.
	mustRegisterSchema("packages", `string | [...string] | {[string]: string | [...string]}`)
}

// RegisterSchema binds a CUE schema expression to a handler name.
func RegisterSchema(name, src string) error {
	val := schemaCtx.CompileString(src)
	if err := val.Err(); err != nil {
		return fmt.Errorf("cannot compile schema for %s: %w", name, err)
	}
	schemaMu.Lock()
	defer schemaMu.Unlock()
	if _, ok := schemas[name]; ok {
		return fmt.Errorf("schema for %s already registered", name)
	}
	schemas[name] = val
	return nil
}

func mustRegisterSchema(name, src string) {
	if err := RegisterSchema(name, src); err != nil {
		panic(err)
	}
}

// validateValue checks a declarative value against the handler's schema,
// when one is registered.
func validateValue(name string, value any) error {
	schemaMu.RLock()
	schema, ok := schemas[name]
	schemaMu.RUnlock()
	if !ok {
		return nil
	}

	encoded := schemaCtx.Encode(value)
	if err := encoded.Err(); err != nil {
		return fmt.Errorf("cannot encode value: %w", err)
	}
	if err := schema.Unify(encoded).Validate(cue.Concrete(true)); err != nil {
		return err
	}
	return nil
}
