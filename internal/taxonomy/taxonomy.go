package taxonomy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Leaf is an explicit {name, slug} leaf entry.
type Leaf struct {
	Name string `yaml:"name"`
	Slug string `yaml:"slug"`
}

// Node is one category in the tree. Internal nodes carry Children keyed by
// display name; a node may instead list explicit Leaves. A node with neither
// is itself a leaf.
type Node struct {
	Slug     string
	Children map[string]*Node
	Leaves   []Leaf
}

// Tree maps root category display names to their nodes.
type Tree map[string]*Node

// UnmarshalYAML decodes a category node. The subcategories key accepts either
// a nested mapping of further nodes or a plain list of {name, slug} leaves.
func (n *Node) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("category node must be a mapping (line %d)", value.Line)
	}

	for i := 0; i+1 < len(value.Content); i += 2 {
		key := value.Content[i]
		val := value.Content[i+1]

		switch key.Value {
		case "slug":
			if err := val.Decode(&n.Slug); err != nil {
				return fmt.Errorf("decode slug: %w", err)
			}
		case "subcategories":
			switch val.Kind {
			case yaml.MappingNode:
				children := make(map[string]*Node)
				if err := val.Decode(&children); err != nil {
					return fmt.Errorf("decode subcategories: %w", err)
				}
				n.Children = children
			case yaml.SequenceNode:
				if err := val.Decode(&n.Leaves); err != nil {
					return fmt.Errorf("decode leaf list: %w", err)
				}
			default:
				return fmt.Errorf("subcategories must be a mapping or a list (line %d)", val.Line)
			}
		}
	}

	return nil
}

// MarshalYAML encodes a node back into the document shape Load accepts.
func (n *Node) MarshalYAML() (any, error) {
	type plain struct {
		Slug          string `yaml:"slug"`
		Subcategories any    `yaml:"subcategories,omitempty"`
	}

	var subs any
	switch {
	case len(n.Children) > 0:
		subs = n.Children
	case len(n.Leaves) > 0:
		subs = n.Leaves
	}
	return plain{Slug: n.Slug, Subcategories: subs}, nil
}

// Load reads a taxonomy definition from a YAML file.
func Load(path string) (Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy: %w", err)
	}

	var tree Tree
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("parse taxonomy %s: %w", path, err)
	}
	if len(tree) == 0 {
		return nil, fmt.Errorf("taxonomy %s defines no categories", path)
	}

	return tree, nil
}

// LoadOrDefault loads the taxonomy at path, falling back to the compiled
// default tree when path is empty or the file does not exist.
func LoadOrDefault(path string) (Tree, error) {
	if path == "" {
		return DefaultTree(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultTree(), nil
	}
	return Load(path)
}

// Save writes the tree to path as YAML.
func Save(path string, tree Tree) error {
	data, err := yaml.Marshal(tree)
	if err != nil {
		return fmt.Errorf("marshal taxonomy: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write taxonomy: %w", err)
	}
	return nil
}
