package tools

import (
	"errors"

	"github.com/crystaldolphin/murmur/internal/schema"
)

// RegistryBuilder accumulates registrations during startup.
// Call Build() to produce the Registry; invalid entries fail the build.
type RegistryBuilder struct {
	entries []Registration
}

// NewRegistryBuilder returns a fresh RegistryBuilder.
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{}
}

// WithTool adds a tool and returns the builder, enabling chaining.
func (b *RegistryBuilder) WithTool(s schema.ToolSchema, h Handler) *RegistryBuilder {
	b.entries = append(b.entries, Registration{Schema: s, Handler: h})

	return b
}

// Build registers every accumulated tool. All configuration errors are
// returned together.
func (b *RegistryBuilder) Build() (*Registry, error) {
	r := NewRegistry()
	var errs []error
	for _, e := range b.entries {
		if err := r.Register(e.Schema, e.Handler); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return r, nil
}
