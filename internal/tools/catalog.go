// Package tools holds the tool catalog the selector chooses from and the
// registry of handlers that answer for each tool.
package tools

import (
	"fmt"
	"strings"

	"github.com/crystaldolphin/murmur/internal/schema"
)

// DefaultTool is the pseudo tool name for plain conversation.
const DefaultTool = "default"

// Catalog is the ordered set of tool schemas the selector can choose from,
// plus the behavioural rules shared by every tool. It performs no I/O.
type Catalog struct {
	tools []schema.ToolSchema
	index map[string]int // lower-cased name → position
	rules []string
}

// NewCatalog builds a catalog. A later schema with the same name replaces
// an earlier one in place.
func NewCatalog(rules []string, schemas ...schema.ToolSchema) (*Catalog, error) {
	c := &Catalog{
		index: make(map[string]int, len(schemas)),
		rules: append([]string(nil), rules...),
	}
	for _, s := range schemas {
		if err := c.add(s); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) add(s schema.ToolSchema) error {
	if err := validateSchema(s); err != nil {
		return err
	}
	key := strings.ToLower(s.Name)
	if i, ok := c.index[key]; ok {
		c.tools[i] = s
		return nil
	}
	c.index[key] = len(c.tools)
	c.tools = append(c.tools, s)
	return nil
}

// With returns a copy of c where schemas are added or replace existing ones.
func (c *Catalog) With(schemas ...schema.ToolSchema) (*Catalog, error) {
	return NewCatalog(c.rules, append(c.Tools(), schemas...)...)
}

// Lookup finds a schema by name, ignoring case.
func (c *Catalog) Lookup(name string) (schema.ToolSchema, bool) {
	i, ok := c.index[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return schema.ToolSchema{}, false
	}
	return c.tools[i], true
}

// Tools returns the schemas in registration order.
func (c *Catalog) Tools() []schema.ToolSchema {
	out := make([]schema.ToolSchema, len(c.tools))
	copy(out, c.tools)
	return out
}

// Names returns the tool names in registration order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.tools))
	for i, t := range c.tools {
		names[i] = t.Name
	}
	return names
}

// Rules returns the shared behavioural rules.
func (c *Catalog) Rules() []string {
	return append([]string(nil), c.rules...)
}

// ListTools renders one line per tool for use in prompts.
func (c *Catalog) ListTools() string {
	var sb strings.Builder
	for _, t := range c.tools {
		fmt.Fprintf(&sb, "- ToolName: %s; ToolDescription: %s;\n", t.Name, t.Description)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// ListRules renders the shared rules as numbered lines.
func (c *Catalog) ListRules() string {
	return RenderRules(c.rules)
}

// RenderRules numbers rules from 1: "Rule nr 1: ...".
func RenderRules(rules []string) string {
	lines := make([]string, len(rules))
	for i, r := range rules {
		lines[i] = fmt.Sprintf("Rule nr %d: %s", i+1, r)
	}
	return strings.Join(lines, "\n")
}
