package providers

import "fmt"

// New creates the Provider for p.
//
// Rules:
//   - Ollama specs → OllamaProvider (native /api/chat and /api/embed)
//   - otherwise    → OpenAIProvider (any OpenAI-compatible endpoint)
func New(p Params) (Provider, error) {
	if p.Model == "" {
		return nil, fmt.Errorf("provider: no model configured")
	}
	spec := Resolve(p.Kind, p.APIKey, p.APIBase)
	if spec == nil {
		return nil, fmt.Errorf("provider: unknown kind %q", p.Kind)
	}
	if spec.Wire == WireOllama {
		host := p.APIBase
		if host == "" {
			host = spec.DefaultAPIBase
		}
		op, err := NewOllamaProvider(host, p.Model, p.EmbedModel, p.Temperature)
		if err != nil {
			return nil, err
		}
		return op, nil
	}
	if spec.EnvKey != "" && p.APIKey == "" {
		return nil, fmt.Errorf("provider %s: no API key configured (set %s)", spec.Name, spec.EnvKey)
	}
	return NewOpenAIProvider(spec, p.APIKey, p.APIBase, p.Model, p.EmbedModel, p.Temperature), nil
}
