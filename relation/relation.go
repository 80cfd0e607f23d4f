// Package relation removes joined fields from records before they are
// written to stores that do not know about the relation.
package relation

import (
	"slices"

	"github.com/arloliu/switchyard/types"
)

// Strip returns a copy of rec without the fields named in keys.
//
// The input record is never modified. Stripping an already stripped record
// returns an equal record.
//
// Parameters:
//   - rec: The record to strip
//   - keys: Relation keys to remove
//
// Returns:
//   - types.Record: A new record without the relation keys
func Strip(rec types.Record, keys []string) types.Record {
	if rec == nil {
		return nil
	}

	out := make(types.Record, len(rec))
	for k, v := range rec {
		if slices.Contains(keys, k) {
			continue
		}
		out[k] = v
	}

	return out
}

// Rules maps a table to the columns that must be removed when copying its rows.
type Rules map[string][]string

// Apply strips the columns registered for table from rec.
//
// Tables without rules return a copy of rec.
func (r Rules) Apply(table string, rec types.Record) types.Record {
	return Strip(rec, r[table])
}

// Merge returns a new Rules containing r and other. Columns for the same
// table are concatenated without duplicates.
func (r Rules) Merge(other Rules) Rules {
	out := make(Rules, len(r)+len(other))
	for table, cols := range r {
		out[table] = slices.Clone(cols)
	}
	for table, cols := range other {
		for _, c := range cols {
			if !slices.Contains(out[table], c) {
				out[table] = append(out[table], c)
			}
		}
	}

	return out
}
