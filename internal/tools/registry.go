package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/crystaldolphin/murmur/internal/schema"
)

// ErrNoTool is returned when a name has no registration.
var ErrNoTool = errors.New("no such tool")

// Handler runs a tool for one turn. It receives the raw user input and the
// arguments filled from it, and returns text or a stream.
type Handler func(ctx context.Context, input string, filled schema.FilledTool) (schema.Reply, error)

// Registration pairs a schema with the handler that serves it.
type Registration struct {
	Schema  schema.ToolSchema
	Handler Handler
}

// ConfigurationError reports an invalid tool registration. It only happens
// at startup.
type ConfigurationError struct {
	Tool   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Tool == "" {
		return "tool configuration: " + e.Reason
	}
	return fmt.Sprintf("tool configuration %q: %s", e.Tool, e.Reason)
}

func validateSchema(s schema.ToolSchema) error {
	if strings.TrimSpace(s.Name) == "" {
		return &ConfigurationError{Reason: "name is empty"}
	}
	if strings.TrimSpace(s.Description) == "" {
		return &ConfigurationError{Tool: s.Name, Reason: "description is empty"}
	}
	if strings.EqualFold(s.Name, DefaultTool) {
		return &ConfigurationError{Tool: s.Name, Reason: "name is reserved"}
	}
	return nil
}

// Registry maps tool names to registrations. Lookups ignore case.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Registration)}
}

// Register adds or replaces a tool. Replacing an existing name is allowed
// but logged, since it usually means two components claim the same tool.
func (r *Registry) Register(s schema.ToolSchema, h Handler) error {
	if err := validateSchema(s); err != nil {
		return err
	}
	if h == nil {
		return &ConfigurationError{Tool: s.Name, Reason: "handler is nil"}
	}

	key := strings.ToLower(s.Name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[key]; exists {
		slog.Warn("tools: registration overwritten", "tool", s.Name)
	}
	r.entries[key] = Registration{Schema: s, Handler: h}
	return nil
}

// Lookup returns the registration for name.
func (r *Registry) Lookup(name string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[strings.ToLower(strings.TrimSpace(name))]
	return reg, ok
}

// Get is Lookup for callers that branch on errors. A missing name wraps
// ErrNoTool.
func (r *Registry) Get(name string) (Registration, error) {
	reg, ok := r.Lookup(name)
	if !ok {
		return Registration{}, fmt.Errorf("%w: %q", ErrNoTool, name)
	}
	return reg, nil
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for _, reg := range r.entries {
		names = append(names, reg.Schema.Name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
