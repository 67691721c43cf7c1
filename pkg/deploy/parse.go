package deploy

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// stepPair is one handler declaration inside a step document.
type stepPair struct {
	handler string
	value   any
}

// stepDoc is one parsed step document: an ordered list of handler
// declarations. Declaration order in the file is execution order, for
// single- and multi-handler documents alike.
type stepDoc []stepPair

// parseJSONSteps parses a .json step file: exactly one document whose
// keys are handler names.
func parseJSONSteps(path string) ([]stepDoc, error) {
	docs, err := parseDocs(path)
	if err != nil {
		return nil, err
	}
	if len(docs) != 1 {
		return nil, fmt.Errorf("expected exactly one document, found %d", len(docs))
	}
	return docs, nil
}

// parseYAMLSteps parses a .yaml step file: a stream of zero or more
// documents, each contributing steps in file order.
func parseYAMLSteps(path string) ([]stepDoc, error) {
	return parseDocs(path)
}

// parseDocs decodes every document in a step file. Documents decode
// through yaml.Node so mapping keys keep the order they were written in;
// JSON is a YAML subset, so one decoder serves both extensions.
func parseDocs(path string) ([]stepDoc, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var docs []stepDoc
	dec := yaml.NewDecoder(f)
	for {
		var root yaml.Node
		if err := dec.Decode(&root); err != nil {
			if errors.Is(err, io.EOF) {
				return docs, nil
			}
			return nil, err
		}
		doc, err := docFromNode(&root)
		if err != nil {
			return nil, err
		}
		if len(doc) > 0 {
			docs = append(docs, doc)
		}
	}
}

// docFromNode converts a decoded document node into an ordered stepDoc.
// The document root must be a mapping of handler name to value.
func docFromNode(root *yaml.Node) (stepDoc, error) {
	node := root
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return nil, nil
		}
		node = node.Content[0]
	}
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("step document must be a mapping of handler to value (line %d)", node.Line)
	}

	var doc stepDoc
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]
		var name string
		if err := keyNode.Decode(&name); err != nil {
			return nil, fmt.Errorf("handler name must be a string (line %d): %w", keyNode.Line, err)
		}
		var value any
		if err := valueNode.Decode(&value); err != nil {
			return nil, fmt.Errorf("cannot decode value for handler %s (line %d): %w", name, valueNode.Line, err)
		}
		doc = append(doc, stepPair{handler: name, value: value})
	}
	return doc, nil
}
