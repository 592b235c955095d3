package core

import "testing"

func TestAdapterRegistryRegisterAndLookup(t *testing.T) {
	registry := NewAdapterRegistry()
	adapter := &stubAdapter{provider: "kite", kind: AuthKindRedirect}

	if err := registry.Register(adapter, testDescriptor("kite", AuthKindRedirect)); err != nil {
		t.Fatalf("register: %v", err)
	}

	got, ok := registry.Adapter("KITE")
	if !ok || got.Provider() != "kite" {
		t.Fatal("expected case-insensitive adapter lookup")
	}
	descriptor, ok := registry.Descriptor("kite")
	if !ok || descriptor.Provider != "kite" {
		t.Fatal("expected descriptor lookup")
	}

	descriptor.RequiredFields[0] = "mutated"
	fresh, _ := registry.Descriptor("kite")
	if fresh.RequiredFields[0] != "api_key" {
		t.Fatal("descriptor lookup must return a defensive copy")
	}
}

func TestAdapterRegistryRejectsBadRegistrations(t *testing.T) {
	registry := NewAdapterRegistry()
	adapter := &stubAdapter{provider: "kite", kind: AuthKindRedirect}

	if err := registry.Register(nil, testDescriptor("kite", AuthKindRedirect)); err == nil {
		t.Fatal("expected nil adapter to fail")
	}
	if err := registry.Register(adapter, testDescriptor("dhan", AuthKindRedirect)); err == nil {
		t.Fatal("expected provider mismatch to fail")
	}
	if err := registry.Register(adapter, testDescriptor("kite", AuthKindDirectToken)); err == nil {
		t.Fatal("expected auth kind mismatch to fail")
	}

	if err := registry.Register(adapter, testDescriptor("kite", AuthKindRedirect)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register(adapter, testDescriptor("kite", AuthKindRedirect)); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestAdapterRegistryProvidersSorted(t *testing.T) {
	registry := NewAdapterRegistry()
	for _, name := range []string{"kite", "angel", "dhan"} {
		kind := AuthKindDirectToken
		if err := registry.Register(&stubAdapter{provider: name, kind: kind}, testDescriptor(name, kind)); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	providers := registry.Providers()
	want := []string{"angel", "dhan", "kite"}
	for i := range want {
		if providers[i] != want[i] {
			t.Fatalf("expected sorted providers %v, got %v", want, providers)
		}
	}
}
