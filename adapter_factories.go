package brokersessions

import (
	"github.com/goliatone/go-broker-sessions/core"
	"github.com/goliatone/go-broker-sessions/providers/angel"
	"github.com/goliatone/go-broker-sessions/providers/dhan"
	"github.com/goliatone/go-broker-sessions/providers/kite"
)

func KiteAdapter(cfg kite.Config) (core.Adapter, error) {
	return kite.New(cfg)
}

func DhanAdapter(cfg dhan.Config) (core.Adapter, error) {
	return dhan.New(cfg)
}

func AngelAdapter(cfg angel.Config) (core.Adapter, error) {
	return angel.New(cfg)
}

// RegisterDefaultAdapters wires the three built-in brokers with their stock
// configuration and lifecycle descriptors into a registry.
func RegisterDefaultAdapters(registry Registry) error {
	kiteAdapter, err := KiteAdapter(kite.Config{})
	if err != nil {
		return err
	}
	if err := registry.Register(kiteAdapter, kite.Descriptor()); err != nil {
		return err
	}

	dhanAdapter, err := DhanAdapter(dhan.Config{})
	if err != nil {
		return err
	}
	if err := registry.Register(dhanAdapter, dhan.Descriptor()); err != nil {
		return err
	}

	angelAdapter, err := AngelAdapter(angel.Config{})
	if err != nil {
		return err
	}
	return registry.Register(angelAdapter, angel.Descriptor())
}
