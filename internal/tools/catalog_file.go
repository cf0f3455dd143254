package tools

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/crystaldolphin/murmur/internal/schema"
)

// CatalogFile is the YAML overlay that adds or replaces tool schemas:
//
//	rules:
//	  - Never assume.
//	tools:
//	  - name: weather_tool
//	    description: Current weather for a location.
//	    arguments:
//	      location: ""
//	    keywords: [rain, forecast]
type CatalogFile struct {
	Rules []string      `yaml:"rules"`
	Tools []CatalogTool `yaml:"tools"`
}

// CatalogTool is one tool entry of a CatalogFile.
type CatalogTool struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Arguments   orderedShape `yaml:"arguments"`
	Rules       []string     `yaml:"rules"`
	Keywords    []string     `yaml:"keywords"`
}

// orderedShape decodes a YAML mapping into an ArgumentShape keeping key order.
type orderedShape schema.ArgumentShape

func (o *orderedShape) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: arguments must be a mapping", node.Line)
	}
	shape := make(orderedShape, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		var raw any
		if err := valNode.Decode(&raw); err != nil {
			return fmt.Errorf("line %d: %w", valNode.Line, err)
		}
		val, err := schema.ValueOf(raw)
		if err != nil {
			return fmt.Errorf("argument %q: %w", keyNode.Value, err)
		}
		shape = append(shape, schema.Argument{Name: keyNode.Value, Default: val})
	}
	*o = shape
	return nil
}

// LoadCatalogFile reads a YAML catalog overlay.
func LoadCatalogFile(path string) (*CatalogFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var f CatalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return &f, nil
}

// Apply overlays the file onto base. Tools without their own rules inherit
// the catalog rules. Keyword lists are merged into keywords by tool name.
func (f *CatalogFile) Apply(base *Catalog, keywords map[string][]string) (*Catalog, error) {
	rules := base.Rules()
	if len(f.Rules) > 0 {
		rules = f.Rules
	}

	schemas := make([]schema.ToolSchema, 0, len(f.Tools))
	for _, t := range f.Tools {
		s := schema.ToolSchema{
			Name:        t.Name,
			Description: t.Description,
			Arguments:   schema.ArgumentShape(t.Arguments),
			Rules:       t.Rules,
		}
		if len(s.Rules) == 0 {
			s.Rules = rules
		}
		schemas = append(schemas, s)
		if len(t.Keywords) > 0 && keywords != nil {
			keywords[t.Name] = append(keywords[t.Name], t.Keywords...)
		}
	}

	return NewCatalog(rules, append(base.Tools(), schemas...)...)
}
