package deploy

import (
	"fmt"
	"os"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// evalStarlarkSteps executes a .star step file and reads its `steps`
// global: a list of dicts, each a handler-to-value mapping contributing
// steps in declaration order. The program runs sandboxed: no
// filesystem, no network, print suppressed; it only sees the payload's
// name and environment tag.
func evalStarlarkSteps(path string, p PayloadInfo) ([]stepDoc, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	thread := &starlark.Thread{
		Name:  "graft",
		Print: func(_ *starlark.Thread, _ string) {},
	}
	predeclared := starlark.StringDict{
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
		"payload": starlarkstruct.FromStringDict(starlarkstruct.Default, starlark.StringDict{
			"name":        starlark.String(p.Name()),
			"environment": starlark.String(p.Environment()),
		}),
	}

	globals, err := starlark.ExecFile(thread, path, src, predeclared)
	if err != nil {
		return nil, fmt.Errorf("starlark execution failed: %w", err)
	}

	stepsVal, ok := globals["steps"]
	if !ok {
		return nil, fmt.Errorf("starlark step file must define a `steps` list")
	}
	list, ok := stepsVal.(*starlark.List)
	if !ok {
		return nil, fmt.Errorf("`steps` must be a list, got %s", stepsVal.Type())
	}

	var docs []stepDoc
	for i := 0; i < list.Len(); i++ {
		dict, ok := list.Index(i).(*starlark.Dict)
		if !ok {
			return nil, fmt.Errorf("steps[%d] must be a dict of handler to value, got %s", i, list.Index(i).Type())
		}
		var doc stepDoc
		// Starlark dicts iterate in insertion order, so declaration
		// order is preserved like the YAML path.
		for _, item := range dict.Items() {
			name, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("steps[%d]: handler name must be a string", i)
			}
			value, err := fromStarlark(item[1])
			if err != nil {
				return nil, fmt.Errorf("steps[%d].%s: %w", i, string(name), err)
			}
			doc = append(doc, stepPair{handler: string(name), value: value})
		}
		if len(doc) > 0 {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// fromStarlark converts a Starlark value into the same shapes the YAML
// decoder produces, so handlers see one value model.
func fromStarlark(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		return int(i), nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		list := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlark(val.Index(i))
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case starlark.Tuple:
		list := make([]any, len(val))
		for i, item := range val {
			converted, err := fromStarlark(item)
			if err != nil {
				return nil, err
			}
			list[i] = converted
		}
		return list, nil
	case *starlark.Dict:
		dict := make(map[string]any, val.Len())
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be a string, got %s", item[0].Type())
			}
			value, err := fromStarlark(item[1])
			if err != nil {
				return nil, err
			}
			dict[string(key)] = value
		}
		return dict, nil
	}
	return nil, fmt.Errorf("unsupported starlark type %s", v.Type())
}
