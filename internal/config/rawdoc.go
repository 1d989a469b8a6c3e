package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// RawDocument wraps a parsed YAML document node, letting a single top-level
// section be replaced in place without losing the comments elsewhere in the
// file. ConfigTree.raw is a plain map[string]any and cannot do that —
// re-marshaling it discards every comment. RawDocument is the administrative
// write path's alternative: it edits the yaml.Node tree directly. String
// re-emits the whole document through yaml.v3, so comments and key order are
// kept but layout is not: indentation is normalised to yaml.v3's default and
// blank lines are dropped.
type RawDocument struct {
	root *yaml.Node // DocumentNode
}

// ParseRawDocument parses text into a RawDocument.
func ParseRawDocument(text string) (*RawDocument, error) {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(text), &root); err != nil {
		return nil, fmt.Errorf("config: parse raw document: %w", err)
	}
	if root.Kind == 0 {
		// Empty input decodes to a zero Node; give callers a document they
		// can still add a section to.
		root = yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}},
		}
	}
	return &RawDocument{root: &root}, nil
}

// String re-serializes the document.
func (d *RawDocument) String() (string, error) {
	data, err := yaml.Marshal(d.root)
	if err != nil {
		return "", fmt.Errorf("config: marshal raw document: %w", err)
	}
	return string(data), nil
}

// ApplySection replaces (or inserts) the top-level mapping entry named
// section with values, encoded as a fresh YAML node. Every other top-level
// key, and any comments attached to them, is left untouched.
func (d *RawDocument) ApplySection(section string, values map[string]any) error {
	mapping, err := d.rootMapping()
	if err != nil {
		return err
	}

	valueNode := &yaml.Node{}
	if err := valueNode.Encode(values); err != nil {
		return fmt.Errorf("config: encode section %q: %w", section, err)
	}

	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key := mapping.Content[i]
		if key.Value == section {
			// Keep the existing key node (and its comments); only the value
			// is replaced.
			valueNode.HeadComment = mapping.Content[i+1].HeadComment
			valueNode.LineComment = mapping.Content[i+1].LineComment
			valueNode.FootComment = mapping.Content[i+1].FootComment
			mapping.Content[i+1] = valueNode
			return nil
		}
	}

	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: section}
	mapping.Content = append(mapping.Content, keyNode, valueNode)
	return nil
}

func (d *RawDocument) rootMapping() (*yaml.Node, error) {
	root := d.root
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			root.Content = []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}
		}
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config: raw document root is not a mapping (kind %d)", root.Kind)
	}
	return root, nil
}

// ApplySectionToRaw is the convenience single-call form of
// parse-apply-stringify, used by the administrative config-write surface to
// turn one section edit into replacement file text.
func ApplySectionToRaw(text, section string, values map[string]any) (string, error) {
	doc, err := ParseRawDocument(text)
	if err != nil {
		return "", err
	}
	if err := doc.ApplySection(section, values); err != nil {
		return "", err
	}
	return doc.String()
}
