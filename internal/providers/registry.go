package providers

import "strings"

// Wire protocols a provider can speak.
const (
	WireOllama = "ollama"
	WireOpenAI = "openai"
)

// ProviderSpec is the metadata record for one LLM provider.
type ProviderSpec struct {
	Name        string // config value of provider.kind, e.g. "openrouter"
	DisplayName string // shown in `murmur status`
	Wire        string // WireOllama or WireOpenAI
	EnvKey      string // env var holding the API key, "" when none is needed

	DetectByKeyPrefix   string // api key prefix identifying the provider
	DetectByBaseKeyword string // substring of apiBase identifying the provider
	DefaultAPIBase      string

	IsLocal bool // runs on the user's machine
}

// Label returns the display name, defaulting to Title-cased Name.
func (s ProviderSpec) Label() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return strings.ToTitle(s.Name[:1]) + s.Name[1:]
}

// PROVIDERS is the registry. Order = detection priority.
var PROVIDERS = []ProviderSpec{
	{
		Name:                "ollama",
		DisplayName:         "Ollama",
		Wire:                WireOllama,
		DetectByBaseKeyword: ":11434",
		DefaultAPIBase:      "http://localhost:11434",
		IsLocal:             true,
	},
	{
		Name:                "openrouter",
		DisplayName:         "OpenRouter",
		Wire:                WireOpenAI,
		EnvKey:              "OPENROUTER_API_KEY",
		DetectByKeyPrefix:   "sk-or-",
		DetectByBaseKeyword: "openrouter",
		DefaultAPIBase:      "https://openrouter.ai/api/v1",
	},
	{
		Name:                "groq",
		DisplayName:         "Groq",
		Wire:                WireOpenAI,
		EnvKey:              "GROQ_API_KEY",
		DetectByKeyPrefix:   "gsk_",
		DetectByBaseKeyword: "groq",
		DefaultAPIBase:      "https://api.groq.com/openai/v1",
	},
	{
		Name:                "deepseek",
		DisplayName:         "DeepSeek",
		Wire:                WireOpenAI,
		EnvKey:              "DEEPSEEK_API_KEY",
		DetectByBaseKeyword: "deepseek",
		DefaultAPIBase:      "https://api.deepseek.com/v1",
	},
	{
		Name:        "vllm",
		DisplayName: "vLLM/Local",
		Wire:        WireOpenAI,
		IsLocal:     true,
	},
	{
		Name:           "openai",
		DisplayName:    "OpenAI",
		Wire:           WireOpenAI,
		EnvKey:         "OPENAI_API_KEY",
		DefaultAPIBase: "https://api.openai.com/v1",
	},
}

// FindByName returns the ProviderSpec whose Name equals name.
func FindByName(name string) *ProviderSpec {
	name = strings.ToLower(strings.TrimSpace(name))
	for i := range PROVIDERS {
		if PROVIDERS[i].Name == name {
			return &PROVIDERS[i]
		}
	}
	return nil
}

// Resolve picks the provider for the configured values.
// Priority: (1) explicit name, (2) api key prefix, (3) apiBase keyword,
// (4) OpenAI when a key is set, else Ollama. An unknown explicit name
// returns nil.
func Resolve(name, apiKey, apiBase string) *ProviderSpec {
	if name != "" {
		return FindByName(name)
	}
	for i := range PROVIDERS {
		spec := &PROVIDERS[i]
		if spec.DetectByKeyPrefix != "" && strings.HasPrefix(apiKey, spec.DetectByKeyPrefix) {
			return spec
		}
		if spec.DetectByBaseKeyword != "" && strings.Contains(apiBase, spec.DetectByBaseKeyword) {
			return spec
		}
	}
	if apiKey != "" {
		return FindByName("openai")
	}
	return FindByName("ollama")
}
