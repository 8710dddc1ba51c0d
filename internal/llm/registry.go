package llm

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory builds a provider from configuration.
type Factory func(cfg Config) (Provider, error)

// Registry maps provider names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry knows the built-in providers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("ollama", func(cfg Config) (Provider, error) { return NewOllama(cfg) })
	r.Register("openai", func(cfg Config) (Provider, error) { return NewOpenAI(cfg) })
	r.Register("disabled", func(Config) (Provider, error) { return Disabled(), nil })
	return r
}

func (r *Registry) Register(name string, f Factory) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Build creates the provider named by cfg.Provider.
func (r *Registry) Build(cfg Config) (Provider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown llm provider: %q", cfg.Provider)
	}
	return f(cfg)
}

// Names lists registered providers, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for n := range r.factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
