// Package core defines the shared language of the waterfall tool.
//
// This package contains:
//   - Campaign entities (Check, Conditions, Table, Identifier, Campaign)
//   - Waterfall results (WaterfallRow, IdentifierResult)
//   - Output instructions (OutputInstruction, Format)
//   - Service interfaces (Adapter, Store)
//   - Configuration types (TargetConfig)
//   - The error taxonomy shared by every stage
//
// pkg/core imports only the standard library. All other packages depend on
// core, not the reverse.
package core
