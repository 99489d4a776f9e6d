// Package adapter provides the warehouse adapter contract and registry.
//
// This package contains the public contract that all warehouse adapters must implement.
// Concrete adapter implementations are in pkg/adapters/ subdirectories and
// register themselves from init().
package adapter

import (
	"github.com/leapstack-labs/waterfall/pkg/core"
	"github.com/leapstack-labs/waterfall/pkg/dialect"
)

// Type aliases so adapter packages only need to import this package.
type (
	// Config is an alias for core.AdapterConfig.
	Config = core.AdapterConfig

	// Rows is an alias for core.Rows.
	Rows = core.Rows
)

// Adapter defines the interface that all warehouse adapters must implement.
// It extends core.Adapter with the dialect used to render DDL for the warehouse.
type Adapter interface {
	core.Adapter

	// Dialect returns the statement dialect for this warehouse.
	Dialect() *dialect.Dialect
}
