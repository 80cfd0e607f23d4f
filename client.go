package switchyard

import "github.com/arloliu/switchyard/types"

// Type aliases for convenience - re-export from types package.
type (
	StoreKind        = types.StoreKind
	Record           = types.Record
	Operation        = types.Operation
	Result           = types.Result
	ReadOptions      = types.ReadOptions
	Logger           = types.Logger
	MetricsCollector = types.MetricsCollector
	Notifier         = types.Notifier
)

// Re-export store kind constants for convenience.
const (
	KindManaged          = types.KindManaged
	KindSelfHosted       = types.KindSelfHosted
	KindSecondaryManaged = types.KindSecondaryManaged
)
