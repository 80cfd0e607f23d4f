package domain

import (
	"context"
	"fmt"

	"github.com/arloliu/switchyard/types"
)

// TimeOffTable is the time-off requests table name.
const TimeOffTable = "time_off_requests"

// Time-off request states.
const (
	TimeOffPending  = "pending"
	TimeOffApproved = "approved"
	TimeOffRejected = "rejected"
)

// TimeOff manages time-off requests.
type TimeOff struct {
	store Store
}

// NewTimeOff creates a time-off facade.
func NewTimeOff(store Store) *TimeOff {
	return &TimeOff{store: store}
}

// ForUser returns the requests of userID, newest start date first.
func (t *TimeOff) ForUser(ctx context.Context, userID any) ([]types.Record, error) {
	return t.store.Read(ctx, TimeOffTable, types.ReadOptions{
		Filters: []types.Filter{types.Eq("user_id", userID)},
		Order:   []types.Order{types.Desc("start_date")},
	})
}

// Pending returns the requests awaiting a decision, oldest start date first.
func (t *TimeOff) Pending(ctx context.Context) ([]types.Record, error) {
	return t.store.Read(ctx, TimeOffTable, types.ReadOptions{
		Filters: []types.Filter{types.Eq("status", TimeOffPending)},
		Order:   []types.Order{types.Asc("start_date")},
	})
}

// Create files a new pending request.
func (t *TimeOff) Create(ctx context.Context, rec types.Record) (types.Record, error) {
	for _, col := range []string{"start_date", "end_date"} {
		if _, ok := rec[col]; !ok {
			return nil, fmt.Errorf("%w: time-off %s is required", ErrInvalidArgument, col)
		}
	}

	rec = rec.Clone()
	rec["status"] = TimeOffPending

	return t.store.Create(ctx, TimeOffTable, rec)
}

// Approve marks the request with id approved.
func (t *TimeOff) Approve(ctx context.Context, id any) (types.Record, error) {
	return t.decide(ctx, id, TimeOffApproved)
}

// Reject marks the request with id rejected.
func (t *TimeOff) Reject(ctx context.Context, id any) (types.Record, error) {
	return t.decide(ctx, id, TimeOffRejected)
}

// Delete withdraws the request with id.
func (t *TimeOff) Delete(ctx context.Context, id any) error {
	return t.store.Delete(ctx, TimeOffTable, id)
}

func (t *TimeOff) decide(ctx context.Context, id any, status string) (types.Record, error) {
	return t.store.Update(ctx, TimeOffTable, id, types.Record{"status": status})
}
