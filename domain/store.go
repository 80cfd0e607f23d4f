package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/arloliu/switchyard/types"
)

// Store is the router surface the facades use.
//
// *switchyard.Router implements Store.
type Store interface {
	Read(ctx context.Context, table string, opts types.ReadOptions) ([]types.Record, error)
	Create(ctx context.Context, table string, rec types.Record, relationKeys ...string) (types.Record, error)
	Update(ctx context.Context, table string, id any, rec types.Record, relationKeys ...string) (types.Record, error)
	Delete(ctx context.Context, table string, id any, relationKeys ...string) error
	RawQuery(ctx context.Context, sql string, params ...any) ([]types.Record, types.StoreKind, error)
	RawQueryOn(ctx context.Context, kind types.StoreKind, sql string, params ...any) ([]types.Record, types.StoreKind, error)
}

// ErrInvalidArgument is returned for caller input a facade rejects before
// reaching the store.
var ErrInvalidArgument = errors.New("switchyard: invalid argument")

// getByID reads the single row of table with id.
func getByID(ctx context.Context, s Store, table string, id any, joins ...types.Join) (types.Record, error) {
	if id == nil || id == "" {
		return nil, fmt.Errorf("%w: %s id is required", ErrInvalidArgument, table)
	}

	rows, err := s.Read(ctx, table, types.ReadOptions{
		Filters: []types.Filter{types.Eq("id", id)},
		Limit:   1,
		Joins:   joins,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s %v", types.ErrNotFound, table, id)
	}

	return rows[0], nil
}
