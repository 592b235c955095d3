package brokersessions

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-broker-sessions/core"
)

// AdapterEntry pairs an adapter with its lifecycle descriptor.
type AdapterEntry struct {
	Adapter    core.Adapter
	Descriptor core.Descriptor
}

// AdapterPack is a named bundle of broker adapters a downstream module can
// register as a unit.
type AdapterPack struct {
	Name    string
	Entries []AdapterEntry
}

type CommandQueryBundleFactory func(service CommandQueryService) (any, error)

// ExtensionHooks lets embedding applications contribute adapter packs and
// command/query bundles without forking the module wiring.
type ExtensionHooks struct {
	mu sync.RWMutex

	adapterPacks map[string]AdapterPack
	bundles      map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		adapterPacks: map[string]AdapterPack{},
		bundles:      map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterAdapterPack(pack AdapterPack) error {
	if h == nil {
		return fmt.Errorf("brokersessions: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("brokersessions: adapter pack name is required")
	}
	if len(pack.Entries) == 0 {
		return fmt.Errorf("brokersessions: adapter pack %q has no adapters", name)
	}

	normalized := AdapterPack{
		Name:    name,
		Entries: append([]AdapterEntry(nil), pack.Entries...),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.adapterPacks[name]; exists {
		return fmt.Errorf("brokersessions: adapter pack %q already registered", name)
	}
	h.adapterPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(
	name string,
	factory CommandQueryBundleFactory,
) error {
	if h == nil {
		return fmt.Errorf("brokersessions: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("brokersessions: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("brokersessions: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("brokersessions: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// ApplyAdapterPacks registers every pack's adapters into the registry, in
// pack name order.
func (h *ExtensionHooks) ApplyAdapterPacks(registry Registry) error {
	if h == nil {
		return nil
	}
	if registry == nil {
		return fmt.Errorf("brokersessions: registry is required")
	}

	for _, pack := range h.AdapterPacks() {
		for _, entry := range pack.Entries {
			if entry.Adapter == nil {
				return fmt.Errorf("brokersessions: adapter pack %q contains nil adapter", pack.Name)
			}
			if err := registry.Register(entry.Adapter, entry.Descriptor); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *ExtensionHooks) BuildCommandQueryBundles(
	service CommandQueryService,
) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if service == nil {
		return nil, fmt.Errorf("brokersessions: command/query service is required")
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](service)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) AdapterPacks() []AdapterPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.adapterPacks))
	for name := range h.adapterPacks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]AdapterPack, 0, len(names))
	for _, name := range names {
		pack := h.adapterPacks[name]
		out = append(out, AdapterPack{
			Name:    pack.Name,
			Entries: append([]AdapterEntry(nil), pack.Entries...),
		})
	}
	return out
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
