// Package model provides the domain types shared by every offpos package.
//
// This package contains type definitions and pure cart arithmetic only.
// All other internal packages import model; model imports nothing internal.
//
// Key design constraints:
//   - Money is always int64 minor units (cents), never floats
//   - All JSON tags use snake_case and new fields must be optional
//   - A PendingSale is immutable once created; only its deletion is allowed
package model
