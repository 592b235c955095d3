package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

type registryEntry struct {
	adapter    Adapter
	descriptor Descriptor
}

type AdapterRegistry struct {
	mu      sync.RWMutex
	entries map[string]registryEntry
}

func NewAdapterRegistry() *AdapterRegistry {
	return &AdapterRegistry{entries: make(map[string]registryEntry)}
}

func (r *AdapterRegistry) Register(adapter Adapter, descriptor Descriptor) error {
	if adapter == nil {
		return fmt.Errorf("core: adapter is nil")
	}
	if err := descriptor.Validate(); err != nil {
		return err
	}
	provider := strings.ToLower(strings.TrimSpace(adapter.Provider()))
	if provider == "" {
		return fmt.Errorf("core: adapter provider is required")
	}
	if !strings.EqualFold(strings.TrimSpace(descriptor.Provider), provider) {
		return fmt.Errorf("core: descriptor provider %q does not match adapter %q", descriptor.Provider, provider)
	}
	if descriptor.Kind != adapter.Kind() {
		return fmt.Errorf("core: descriptor auth kind %q does not match adapter %q", descriptor.Kind, adapter.Kind())
	}

	descriptor.Provider = provider
	descriptor.RequiredFields = append([]string(nil), descriptor.RequiredFields...)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[provider]; exists {
		return fmt.Errorf("core: provider already registered: %s", provider)
	}
	r.entries[provider] = registryEntry{adapter: adapter, descriptor: descriptor}
	return nil
}

func (r *AdapterRegistry) Adapter(provider string) (Adapter, bool) {
	entry, ok := r.lookup(provider)
	if !ok {
		return nil, false
	}
	return entry.adapter, true
}

func (r *AdapterRegistry) Descriptor(provider string) (Descriptor, bool) {
	entry, ok := r.lookup(provider)
	if !ok {
		return Descriptor{}, false
	}
	descriptor := entry.descriptor
	descriptor.RequiredFields = append([]string(nil), descriptor.RequiredFields...)
	return descriptor, true
}

func (r *AdapterRegistry) Providers() []string {
	r.mu.RLock()
	providers := make([]string, 0, len(r.entries))
	for provider := range r.entries {
		providers = append(providers, provider)
	}
	r.mu.RUnlock()
	sort.Strings(providers)
	return providers
}

func (r *AdapterRegistry) lookup(provider string) (registryEntry, bool) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return registryEntry{}, false
	}
	r.mu.RLock()
	entry, ok := r.entries[provider]
	r.mu.RUnlock()
	return entry, ok
}

var _ Registry = (*AdapterRegistry)(nil)
