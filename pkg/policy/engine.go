package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/rs/zerolog/log"
)

// Engine holds the compiled policy set for one run.
type Engine struct {
	query   rego.PreparedEvalQuery
	sources []string
	empty   bool
}

// NewEngine compiles the policy set: every *.rego file under dir plus,
// when builtin is true, the compiled-in hygiene policies. A missing
// policy directory contributes nothing; an engine with no policies at
// all evaluates to an empty Result.
func NewEngine(ctx context.Context, dir string, builtin bool) (*Engine, error) {
	modules := make(map[string]string)
	var sources []string

	if builtin {
		modules["builtin/hygiene.rego"] = builtinHygiene
		sources = append(sources, "builtin/hygiene.rego")
	}

	loaded, err := loadDir(dir)
	if err != nil {
		return nil, err
	}
	for name, src := range loaded {
		modules[name] = src
		sources = append(sources, name)
	}
	sort.Strings(sources)

	e := &Engine{sources: sources}
	if len(modules) == 0 {
		e.empty = true
		return e, nil
	}

	opts := []func(*rego.Rego){rego.Query("data.graft")}
	for name, src := range modules {
		opts = append(opts, rego.Module(name, src))
	}
	query, err := rego.New(opts...).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot compile policies: %w", err)
	}
	e.query = query
	return e, nil
}

// Sources returns the names of the loaded policy modules.
func (e *Engine) Sources() []string {
	return e.sources
}

// Evaluate runs every policy against input and collects deny and warn
// messages from all packages under data.graft.
func (e *Engine) Evaluate(ctx context.Context, input *Input) (*Result, error) {
	result := &Result{}
	if e.empty {
		return result, nil
	}

	// Round-trip through JSON so policies see plain maps and lists, the
	// same shapes they would get from an external document.
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("cannot encode policy input: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("cannot decode policy input: %w", err)
	}

	rs, err := e.query.Eval(ctx, rego.EvalInput(doc))
	if err != nil {
		return nil, fmt.Errorf("policy evaluation failed: %w", err)
	}

	for _, r := range rs {
		for _, expr := range r.Expressions {
			collectVerdicts(expr.Value, result)
		}
	}
	sort.Strings(result.Denials)
	sort.Strings(result.Warnings)

	for _, warning := range result.Warnings {
		log.Warn().Str("policy", "warn").Msg(warning)
	}
	return result, nil
}

// collectVerdicts walks the data.graft document tree gathering the
// string members of every deny and warn rule, whatever package depth
// the rule lives at.
func collectVerdicts(value any, result *Result) {
	node, ok := value.(map[string]any)
	if !ok {
		return
	}
	for key, child := range node {
		switch key {
		case "deny":
			result.Denials = append(result.Denials, stringMembers(child)...)
		case "warn":
			result.Warnings = append(result.Warnings, stringMembers(child)...)
		default:
			collectVerdicts(child, result)
		}
	}
}

func stringMembers(value any) []string {
	list, ok := value.([]any)
	if !ok {
		return nil
	}
	var members []string
	for _, item := range list {
		if s, ok := item.(string); ok {
			members = append(members, s)
		}
	}
	return members
}

// loadDir reads every *.rego file directly under dir. A missing
// directory is an empty policy set, not an error.
func loadDir(dir string) (map[string]string, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading policy directory %s: %w", dir, err)
	}

	modules := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".rego") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading policy %s: %w", path, err)
		}
		modules[entry.Name()] = string(src)
	}
	return modules, nil
}
