package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// ErrConfigurationMissing indicates no data source configuration was found.
	// The router recovers from it by defaulting to the managed store.
	ErrConfigurationMissing = errors.New("switchyard: data source configuration missing")

	// ErrConfigurationMalformed indicates the stored configuration could not be decoded.
	// The router treats it like a missing configuration.
	ErrConfigurationMalformed = errors.New("switchyard: data source configuration malformed")

	// ErrPrimaryUnavailable indicates the primary store could not serve an operation.
	// This is the only failure propagated to callers.
	ErrPrimaryUnavailable = errors.New("switchyard: primary store unavailable")

	// ErrReplicationFailed indicates a write to a non-primary store failed.
	// It is never returned to callers of the router.
	ErrReplicationFailed = errors.New("switchyard: replication failed")

	// ErrReplicationDropped indicates a replication attempt was skipped because
	// of the in-flight limit or an open target breaker.
	ErrReplicationDropped = errors.New("switchyard: replication attempt dropped")

	// ErrQueryBuild indicates a query builder received unusable input.
	ErrQueryBuild = errors.New("switchyard: cannot build query")

	// ErrStoreNotConfigured indicates a store lacks the connection parameters it needs.
	ErrStoreNotConfigured = errors.New("switchyard: store not configured")

	// ErrUnknownStoreKind indicates an unrecognized store kind.
	ErrUnknownStoreKind = errors.New("switchyard: unknown store kind")

	// ErrNotFound indicates the addressed row does not exist.
	ErrNotFound = errors.New("switchyard: row not found")

	// ErrRouterClosed indicates an operation was attempted on a closed router.
	ErrRouterClosed = errors.New("switchyard: router is closed")

	// ErrNilAdapter indicates that a nil adapter was provided.
	ErrNilAdapter = errors.New("switchyard: adapter cannot be nil")

	// ErrUnsupported indicates the store cannot perform the requested operation.
	ErrUnsupported = errors.New("switchyard: operation not supported by store")

	// ErrPrimaryMismatch is returned when a store-specific query finds
	// another store selected as primary.
	ErrPrimaryMismatch = errors.New("switchyard: primary is not the requested store")

	// ErrNotifyQueueFull indicates a notification was dropped because the queue is full.
	ErrNotifyQueueFull = errors.New("switchyard: notification queue is full")

	// ErrNotifierClosed indicates a notification was sent to a closed notifier.
	ErrNotifierClosed = errors.New("switchyard: notifier is closed")
)

// PrimaryUnavailableError wraps a failure of the primary store.
type PrimaryUnavailableError struct {
	// Store is the primary store kind.
	Store StoreKind

	// Operation describes what failed, e.g. "create customers".
	Operation string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *PrimaryUnavailableError) Error() string {
	return "switchyard: primary " + e.Store.String() + " " + e.Operation + " failed: " + e.Cause.Error()
}

// Unwrap returns the sentinel and the cause for errors.Is/As compatibility.
func (e *PrimaryUnavailableError) Unwrap() []error {
	return []error{ErrPrimaryUnavailable, e.Cause}
}

// ReplicationError represents a write that succeeded on the primary but failed on a target.
//
// This error is NOT returned to the caller. It is logged, counted and turned
// into a user notification.
type ReplicationError struct {
	// Primary is the store that accepted the write.
	Primary StoreKind

	// Target is the store the replication attempt went to.
	Target StoreKind

	// Table is the replicated table.
	Table string

	// Action is the replicated write.
	Action Action

	// Cause is the underlying error from the target.
	Cause error
}

// Error implements the error interface.
func (e *ReplicationError) Error() string {
	return fmt.Sprintf("switchyard: replication of %s %s to %s failed: %v",
		e.Action, e.Table, e.Target, e.Cause)
}

// Unwrap returns the sentinel and the cause for errors.Is/As compatibility.
func (e *ReplicationError) Unwrap() []error {
	return []error{ErrReplicationFailed, e.Cause}
}

// QueryBuildError describes input a query builder could not turn into SQL.
type QueryBuildError struct {
	// Table is the table the statement was built for.
	Table string

	// Reason explains what was wrong with the input.
	Reason string
}

// Error implements the error interface.
func (e *QueryBuildError) Error() string {
	return "switchyard: cannot build query for " + e.Table + ": " + e.Reason
}

// Is reports whether target is ErrQueryBuild.
func (e *QueryBuildError) Is(target error) bool {
	return target == ErrQueryBuild
}

// StoreError wraps an error from a specific store.
type StoreError struct {
	// Store identifies which store the error came from.
	Store StoreKind

	// Operation describes what operation failed.
	Operation string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return "switchyard: store " + e.Store.String() + " " + e.Operation + " failed: " + e.Cause.Error()
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *StoreError) Unwrap() error {
	return e.Cause
}
