package adapter

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/leapstack-labs/waterfall/pkg/core"
)

// Factory builds an adapter. A nil logger means discard.
type Factory func(*slog.Logger) Adapter

// ErrNoTargetType is returned when a target has no type.
var ErrNoTargetType = errors.New("target type not specified")

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
)

// Register makes a warehouse adapter available under name. Adapter packages
// call it from init, so a binary supports exactly the warehouses it imports.
// Registering a name again replaces the earlier factory.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[name] = factory
}

// Get returns the factory registered under name.
func Get(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := factories[name]
	return f, ok
}

// IsRegistered reports whether a warehouse type can be used as target.type.
func IsRegistered(name string) bool {
	_, ok := Get(name)
	return ok
}

// ListAdapters returns the registered warehouse types, sorted.
func ListAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return slices.Sorted(maps.Keys(factories))
}

// NewAdapter builds an unconnected adapter for the target's type.
func NewAdapter(cfg core.AdapterConfig, logger *slog.Logger) (Adapter, error) {
	if cfg.Type == "" {
		return nil, ErrNoTargetType
	}
	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownAdapterError{Type: cfg.Type, Available: ListAdapters()}
	}
	return factory(logger), nil
}

// UnknownAdapterError is returned when target.type names no registered adapter.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown warehouse type %q (available: %s)\nHint: set target.type in waterfall.yaml, or environments.<name>.target.type for a -t override",
		e.Type, strings.Join(e.Available, ", "))
}

// DriverMissingError is returned when a warehouse's database/sql driver is
// not linked into the binary.
type DriverMissingError struct {
	Type   string
	Driver string
}

func (e *DriverMissingError) Error() string {
	return fmt.Sprintf("%s target needs the %q database/sql driver, which is not linked into this binary\nHint: blank-import the driver package in cmd/waterfall and rebuild",
		e.Type, e.Driver)
}

// CheckDriver returns a *DriverMissingError unless driver is among linked,
// the names reported by sql.Drivers.
func CheckDriver(targetType, driver string, linked []string) error {
	if slices.Contains(linked, driver) {
		return nil
	}
	return &DriverMissingError{Type: targetType, Driver: driver}
}
