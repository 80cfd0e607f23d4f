package domain

import (
	"context"
	"strings"

	"github.com/arloliu/switchyard/types"
)

// CustomersTable is the customers table name.
const CustomersTable = "customers"

// Customers manages customer records.
type Customers struct {
	store Store
}

// NewCustomers creates a customers facade.
func NewCustomers(store Store) *Customers {
	return &Customers{store: store}
}

// List returns all customers ordered by name.
func (c *Customers) List(ctx context.Context) ([]types.Record, error) {
	return c.store.Read(ctx, CustomersTable, types.ReadOptions{
		Order: []types.Order{types.Asc("name")},
	})
}

// Get returns the customer with id, or types.ErrNotFound.
func (c *Customers) Get(ctx context.Context, id any) (types.Record, error) {
	return getByID(ctx, c.store, CustomersTable, id)
}

// Search returns customers whose name or email contains term, ignoring case.
// An empty term lists all customers.
func (c *Customers) Search(ctx context.Context, term string) ([]types.Record, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return c.List(ctx)
	}

	pattern := "%" + term + "%"

	return c.store.Read(ctx, CustomersTable, types.ReadOptions{
		Filters: []types.Filter{types.Or(types.Ilike("name", pattern), types.Ilike("email", pattern))},
		Order:   []types.Order{types.Asc("name")},
	})
}

// Create stores a new customer. New customers are active unless rec says otherwise.
func (c *Customers) Create(ctx context.Context, rec types.Record) (types.Record, error) {
	rec = rec.Clone()
	if rec == nil {
		rec = types.Record{}
	}
	if _, ok := rec["is_active"]; !ok {
		rec["is_active"] = true
	}

	return c.store.Create(ctx, CustomersTable, rec)
}

// Update changes the customer with id.
func (c *Customers) Update(ctx context.Context, id any, rec types.Record) (types.Record, error) {
	return c.store.Update(ctx, CustomersTable, id, rec)
}

// ToggleActive flips the active flag of the customer with id from current.
func (c *Customers) ToggleActive(ctx context.Context, id any, current bool) (types.Record, error) {
	return c.store.Update(ctx, CustomersTable, id, types.Record{"is_active": !current})
}

// Delete removes the customer with id.
func (c *Customers) Delete(ctx context.Context, id any) error {
	return c.store.Delete(ctx, CustomersTable, id)
}
