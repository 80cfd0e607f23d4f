// Package domain provides per-entity facades over the router.
//
// Each facade fixes a table name and the read shape of its entity and
// delegates every call to a Store, normally a *switchyard.Router. Facades
// hold no state; writes are replicated by the router like any other write.
//
//	customers := domain.NewCustomers(router)
//	active, err := customers.List(ctx)
package domain
