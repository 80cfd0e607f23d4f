package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/switchyard/querybuilder"
	"github.com/arloliu/switchyard/types"
)

// TasksTable is the tasks table name.
const TasksTable = "tasks"

// TaskStatusCancelled marks tasks left out of date-range scans.
const TaskStatusCancelled = "cancelled"

// Tasks manages planned tasks.
type Tasks struct {
	store Store
}

// NewTasks creates a tasks facade.
func NewTasks(store Store) *Tasks {
	return &Tasks{store: store}
}

// List returns all tasks ordered by due date.
func (t *Tasks) List(ctx context.Context) ([]types.Record, error) {
	return t.store.Read(ctx, TasksTable, types.ReadOptions{
		Order: []types.Order{types.Asc("due_date"), types.Asc("start_time")},
	})
}

// Between returns the tasks due between from and to, inclusive, that are not
// cancelled.
//
// When the self-hosted store is primary the scan is sent as a single SQL
// statement with the range rendered as literals. Otherwise it is expressed
// with filters.
//
// Parameters:
//   - ctx: Context for the read
//   - from: First due date
//   - to: Last due date
//
// Returns:
//   - []types.Record: The tasks ordered by due date
//   - error: *types.QueryBuildError for a reversed range, or the store error
func (t *Tasks) Between(ctx context.Context, from, to time.Time) ([]types.Record, error) {
	where, err := querybuilder.DateRange("due_date", from, to)
	if err != nil {
		return nil, err
	}
	sql := "SELECT * FROM " + TasksTable + " WHERE " + where +
		" AND status <> ? ORDER BY due_date ASC, start_time ASC"

	rows, _, err := t.store.RawQueryOn(ctx, types.KindSelfHosted, sql, TaskStatusCancelled)
	if !errors.Is(err, types.ErrPrimaryMismatch) {
		return rows, err
	}

	return t.store.Read(ctx, TasksTable, types.ReadOptions{
		Filters: []types.Filter{
			types.Gte("due_date", from.Format(querybuilder.DateLayout)),
			types.Lte("due_date", to.Format(querybuilder.DateLayout)),
			types.Neq("status", TaskStatusCancelled),
		},
		Order: []types.Order{types.Asc("due_date"), types.Asc("start_time")},
	})
}

// Create stores a new task.
func (t *Tasks) Create(ctx context.Context, rec types.Record) (types.Record, error) {
	if _, ok := rec["due_date"]; !ok {
		return nil, fmt.Errorf("%w: task due_date is required", ErrInvalidArgument)
	}

	return t.store.Create(ctx, TasksTable, rec)
}

// Update changes the task with id.
func (t *Tasks) Update(ctx context.Context, id any, rec types.Record) (types.Record, error) {
	return t.store.Update(ctx, TasksTable, id, rec)
}

// SetStatus changes the status of the task with id.
func (t *Tasks) SetStatus(ctx context.Context, id any, status string) (types.Record, error) {
	return t.store.Update(ctx, TasksTable, id, types.Record{"status": status})
}

// Delete removes the task with id.
func (t *Tasks) Delete(ctx context.Context, id any) error {
	return t.store.Delete(ctx, TasksTable, id)
}
