package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/arloliu/switchyard/querybuilder"
	"github.com/arloliu/switchyard/types"
)

// OrdersTable is the gas cylinder orders table name.
const OrdersTable = "gas_cylinder_orders"

// CustomerRelation is the key the joined customer is embedded under.
const CustomerRelation = "customers"

var customerJoin = types.Join{
	Table:    CustomersTable,
	As:       CustomerRelation,
	LocalKey: "customer_id",
	Columns:  []string{"id", "name"},
}

// Orders manages gas cylinder orders.
//
// Rows are read with the ordering customer embedded under "customers". That
// key is removed before any write.
type Orders struct {
	store Store
}

// NewOrders creates an orders facade.
func NewOrders(store Store) *Orders {
	return &Orders{store: store}
}

// List returns the orders scheduled between from and to, inclusive, ordered
// by scheduled date.
func (o *Orders) List(ctx context.Context, from, to time.Time) ([]types.Record, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: order range ends before it starts", ErrInvalidArgument)
	}

	return o.store.Read(ctx, OrdersTable, types.ReadOptions{
		Filters: []types.Filter{
			types.Gte("scheduled_date", from.Format(querybuilder.DateLayout)),
			types.Lte("scheduled_date", to.Format(querybuilder.DateLayout)),
		},
		Order: []types.Order{types.Asc("scheduled_date")},
		Joins: []types.Join{customerJoin},
	})
}

// Get returns the order with id including its customer.
func (o *Orders) Get(ctx context.Context, id any) (types.Record, error) {
	return getByID(ctx, o.store, OrdersTable, id, customerJoin)
}

// Create stores a new order. New orders are pending unless rec says otherwise.
func (o *Orders) Create(ctx context.Context, rec types.Record) (types.Record, error) {
	rec = rec.Clone()
	if rec == nil {
		rec = types.Record{}
	}
	if _, ok := rec["status"]; !ok {
		rec["status"] = "pending"
	}

	return o.store.Create(ctx, OrdersTable, rec, CustomerRelation)
}

// Update changes the order with id. rec may be a row previously returned by
// List; its embedded customer is not written.
func (o *Orders) Update(ctx context.Context, id any, rec types.Record) (types.Record, error) {
	return o.store.Update(ctx, OrdersTable, id, rec, CustomerRelation)
}

// Delete removes the order with id.
func (o *Orders) Delete(ctx context.Context, id any) error {
	return o.store.Delete(ctx, OrdersTable, id, CustomerRelation)
}
