// Package types provides shared types and errors for the switchyard library.
//
// This is a "leaf" package with no imports from other switchyard packages,
// allowing it to be imported by any package without causing import cycles.
package types

import (
	"strings"
)

// StoreKind identifies one of the backend stores a Router can target.
type StoreKind string

// String returns the string representation of the StoreKind.
func (k StoreKind) String() string {
	return string(k)
}

const (
	// KindManaged is the managed cloud relational store.
	KindManaged StoreKind = "managed"
	// KindSelfHosted is the self-hosted SQL database reached through the query proxy.
	KindSelfHosted StoreKind = "self_hosted"
	// KindSecondaryManaged is an alternate instance of the managed store.
	KindSecondaryManaged StoreKind = "secondary_managed"
)

// AllKinds returns every store kind in a fixed order.
//
// The order is used whenever targets are enumerated, so logs and metrics
// list stores consistently.
func AllKinds() []StoreKind {
	return []StoreKind{KindManaged, KindSelfHosted, KindSecondaryManaged}
}

// Valid reports whether k is one of the known store kinds.
func (k StoreKind) Valid() bool {
	switch k {
	case KindManaged, KindSelfHosted, KindSecondaryManaged:
		return true
	default:
		return false
	}
}

// ParseStoreKind maps a configuration tag to a StoreKind.
//
// Besides the canonical names, the legacy tags "cloud", "mysql" and
// "external_supabase" are accepted. Matching is case-insensitive.
//
// Parameters:
//   - s: The configuration tag
//
// Returns:
//   - StoreKind: The parsed kind
//   - bool: false if the tag is not recognized
func ParseStoreKind(s string) (StoreKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "managed", "cloud":
		return KindManaged, true
	case "self_hosted", "selfhosted", "mysql":
		return KindSelfHosted, true
	case "secondary_managed", "secondary", "external_supabase":
		return KindSecondaryManaged, true
	default:
		return "", false
	}
}

// Record is one row of a named table, keyed by column name.
//
// No schema is enforced; values are scalars or JSON-compatible structures.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}

	return out
}

// ID returns the value of the "id" column.
//
// Returns:
//   - any: The id value
//   - bool: false if the record has no usable id
func (r Record) ID() (any, bool) {
	v, ok := r["id"]
	if !ok || v == nil {
		return nil, false
	}
	if _, undefined := v.(Unset); undefined {
		return nil, false
	}

	return v, true
}

// Unset marks a field as undefined.
//
// Builders and adapters drop fields holding Undefined, while a nil value is
// written as NULL.
type Unset struct{}

// Undefined is the value used to leave a field out of a write.
var Undefined = Unset{}

// FilterOp is a comparison operator in a read filter.
type FilterOp string

const (
	// OpEq matches rows whose column equals the value.
	OpEq FilterOp = "eq"
	// OpNeq matches rows whose column differs from the value.
	OpNeq FilterOp = "neq"
	// OpGte matches rows whose column is greater than or equal to the value.
	OpGte FilterOp = "gte"
	// OpLte matches rows whose column is less than or equal to the value.
	OpLte FilterOp = "lte"
	// OpIlike matches rows whose column matches a case-insensitive LIKE pattern.
	OpIlike FilterOp = "ilike"
	// OpOr matches rows satisfying any filter in Any.
	OpOr FilterOp = "or"
)

// Filter is one entry of an ordered read filter list.
type Filter struct {
	// Column is the filtered column. Unused for OpOr.
	Column string

	// Op is the comparison operator.
	Op FilterOp

	// Value is the operand. Unused for OpOr.
	Value any

	// Any holds the alternatives of an OpOr filter.
	Any []Filter
}

// Eq builds an equality filter.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Op: OpEq, Value: value}
}

// Neq builds an inequality filter.
func Neq(column string, value any) Filter {
	return Filter{Column: column, Op: OpNeq, Value: value}
}

// Gte builds a lower-bound filter.
func Gte(column string, value any) Filter {
	return Filter{Column: column, Op: OpGte, Value: value}
}

// Lte builds an upper-bound filter.
func Lte(column string, value any) Filter {
	return Filter{Column: column, Op: OpLte, Value: value}
}

// Ilike builds a case-insensitive pattern filter.
func Ilike(column string, pattern string) Filter {
	return Filter{Column: column, Op: OpIlike, Value: pattern}
}

// Or builds a disjunction of filters.
func Or(filters ...Filter) Filter {
	return Filter{Op: OpOr, Any: filters}
}

// Order is one ORDER BY term.
type Order struct {
	Column     string
	Descending bool
}

// Asc orders by column ascending.
func Asc(column string) Order {
	return Order{Column: column}
}

// Desc orders by column descending.
func Desc(column string) Order {
	return Order{Column: column, Descending: true}
}

// Join embeds a related row under an alias in each result row.
//
// Only stores with a native relational query layer honor joins; the
// self-hosted store returns flat rows.
type Join struct {
	// Table is the related table.
	Table string

	// As is the key the related row is stored under. Defaults to Table.
	As string

	// LocalKey is the column on the read table referencing the related row.
	LocalKey string

	// ForeignKey is the referenced column on the related table. Defaults to "id".
	ForeignKey string

	// Columns limits the embedded columns. Empty means all columns.
	Columns []string
}

// Alias returns the key the joined row is stored under.
func (j Join) Alias() string {
	if j.As != "" {
		return j.As
	}

	return j.Table
}

// Foreign returns the referenced column on the related table.
func (j Join) Foreign() string {
	if j.ForeignKey != "" {
		return j.ForeignKey
	}

	return "id"
}

// ReadOptions describes a read against a single table.
type ReadOptions struct {
	// Columns limits the selected columns. Empty selects all.
	Columns []string

	// Filters are applied in order and combined with AND.
	Filters []Filter

	// Order is the ORDER BY list.
	Order []Order

	// Limit caps the number of rows. Zero means no limit.
	Limit int

	// Offset skips rows. Only meaningful together with Order.
	Offset int

	// Joins embeds related rows.
	Joins []Join
}

// Action is the kind of logical operation.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// IsWrite reports whether the action mutates data.
func (a Action) IsWrite() bool {
	return a == ActionCreate || a == ActionUpdate || a == ActionDelete
}

// Operation is one logical CRUD call against a named table.
type Operation struct {
	// Action selects read, create, update or delete.
	Action Action

	// Table is the target table.
	Table string

	// ID identifies the row for update and delete.
	ID any

	// Record is the payload for create and update.
	Record Record

	// Read holds the read options for ActionRead.
	Read ReadOptions

	// RelationKeys names joined fields that must not be written to other stores.
	RelationKeys []string
}

// ReadOp builds a read operation.
func ReadOp(table string, opts ReadOptions) Operation {
	return Operation{Action: ActionRead, Table: table, Read: opts}
}

// CreateOp builds a create operation.
func CreateOp(table string, rec Record, relationKeys ...string) Operation {
	return Operation{Action: ActionCreate, Table: table, Record: rec, RelationKeys: relationKeys}
}

// UpdateOp builds an update operation.
func UpdateOp(table string, id any, rec Record, relationKeys ...string) Operation {
	return Operation{Action: ActionUpdate, Table: table, ID: id, Record: rec, RelationKeys: relationKeys}
}

// DeleteOp builds a delete operation.
func DeleteOp(table string, id any, relationKeys ...string) Operation {
	return Operation{Action: ActionDelete, Table: table, ID: id, RelationKeys: relationKeys}
}

// Result is what the primary store returned for an operation.
type Result struct {
	// Store is the primary that served the operation.
	Store StoreKind

	// Rows holds the read rows, or the single written row for create and update.
	// It is empty for delete.
	Rows []Record
}

// Row returns the first row, or nil if there is none.
func (r Result) Row() Record {
	if len(r.Rows) == 0 {
		return nil
	}

	return r.Rows[0]
}
