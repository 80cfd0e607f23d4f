// Package types provides shared types and error definitions for the switchyard library.
//
// This is a leaf package with zero switchyard imports to prevent import cycles.
// All packages in switchyard can safely import this package.
//
// # Types
//
// StoreKind identifies which backend is being referenced:
//
//	const (
//	    KindManaged          StoreKind = "managed"
//	    KindSelfHosted       StoreKind = "self_hosted"
//	    KindSecondaryManaged StoreKind = "secondary_managed"
//	)
//
// Record is a schemaless row, and Operation describes one logical CRUD call:
//
//	op := types.CreateOp("customers", types.Record{"name": "Acme"})
//	op := types.ReadOp("tasks", types.ReadOptions{
//	    Filters: []types.Filter{types.Gte("due_date", "2024-01-01")},
//	    Order:   []types.Order{types.Asc("due_date")},
//	})
//
// # Errors
//
// Sentinel errors are provided for common failure scenarios:
//
//   - ErrConfigurationMissing: No data source configuration stored; the managed store is used
//   - ErrPrimaryUnavailable: The primary store failed; returned to callers
//   - ErrReplicationFailed: A replica write failed; logged and notified only
//   - ErrQueryBuild: A query builder received unusable input
//
// Typed errors (PrimaryUnavailableError, ReplicationError, QueryBuildError,
// StoreError) carry the store and operation and unwrap to their causes.
package types
