// Package switchyard routes data operations to a runtime-selectable primary
// store and replicates writes to the other enabled stores.
//
// Three stores are supported:
//
//   - managed: the managed cloud relational store (adapter/managed)
//   - self_hosted: a self-hosted SQL database reached through the query proxy
//     (adapter/selfhosted, proxy)
//   - secondary_managed: an alternate instance of the managed store
//
// Which store is primary is decided by the data source settings (package
// config), read once per operation. A missing or unreadable configuration
// selects the managed store.
//
// # Basic Usage
//
//	db, err := managed.Open(ctx, os.Getenv("DATABASE_URL"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	router, err := switchyard.NewRouter(config.NewFile("settings.yaml"), db,
//	    switchyard.WithProxy(proxy.NewHTTPClient(proxyURL,
//	        proxy.WithTokenSource(proxy.SigningTokenSource(secret, "app", time.Minute)))),
//	    switchyard.WithNotifier(notifications),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer router.Close()
//
//	row, err := router.Create(ctx, "customers", types.Record{"name": "Acme"})
//
// # Reads and Writes
//
// Reads are served by the primary only; there is no fan-out and no merge.
// Writes are applied to the primary synchronously. When the primary
// succeeds, every other enabled store receives exactly one replication
// attempt on its own goroutine:
//
//   - managed and secondary_managed targets upsert the primary's row by id,
//     or delete by id
//   - the self_hosted target receives INSERT, UPDATE or DELETE statements
//     built by package querybuilder
//
// Replication never blocks, fails or rolls back the caller's operation.
// Failures are logged, counted and sent to the configured types.Notifier
// as warnings. There is no retry and no journal; package backfill copies
// whole tables when stores have drifted apart.
//
// Joined fields named as relation keys are removed before any store sees
// the record (package relation).
//
// # Error Handling
//
// Only primary failures reach the caller:
//
//	row, err := router.Create(ctx, "customers", rec)
//	if errors.Is(err, types.ErrPrimaryUnavailable) {
//	    var pe *types.PrimaryUnavailableError
//	    errors.As(err, &pe)
//	    log.Printf("primary %s failed during %s: %v", pe.Store, pe.Operation, pe.Cause)
//	}
//
// Invalid input reaching the self-hosted query builders is returned as
// *types.QueryBuildError (errors.Is(err, types.ErrQueryBuild)).
//
// Replication failures are observable through WithOnReplicationOutcome,
// the notifier and the metrics collector, never through returned errors.
//
// # Shutdown
//
// Replication attempts run detached from the caller's context, bounded by
// WithReplicationTimeout. Router.Wait joins attempts in flight and
// Router.Close does the same before releasing the cached secondary store.
package switchyard
