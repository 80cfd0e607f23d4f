// Package querybuilder turns logical records and reads into MySQL-dialect
// statements for the self-hosted store.
//
// Builders are pure functions. Columns are emitted in lexicographic order so
// that the same record always yields the same SQL and parameter order.
package querybuilder

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/arloliu/switchyard/types"
)

// Statement is a SQL string with positional "?" parameters.
type Statement struct {
	SQL    string
	Params []any
}

// immutableOnUpdate lists columns never written by BuildUpdate.
var immutableOnUpdate = []string{"id", "created_at"}

var identRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// BuildInsert builds an INSERT statement for rec.
//
// Keys listed in excludeKeys and fields holding types.Undefined are left out.
//
// Parameters:
//   - table: Target table name
//   - rec: Values to insert
//   - excludeKeys: Columns to leave out
//
// Returns:
//   - Statement: "INSERT INTO table (k1, k2) VALUES (?, ?)" with matching params
//   - error: *types.QueryBuildError if no columns remain or a name is invalid
func BuildInsert(table string, rec types.Record, excludeKeys ...string) (Statement, error) {
	cols, err := columns(table, rec, excludeKeys)
	if err != nil {
		return Statement{}, err
	}

	params := make([]any, len(cols))
	for i, c := range cols {
		params[i] = NormalizeParam(rec[c])
	}

	sql := "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES (" + placeholders(len(cols)) + ")"

	return Statement{SQL: sql, Params: params}, nil
}

// BuildUpdate builds an UPDATE statement setting the columns of rec on the row with id.
//
// In addition to excludeKeys and undefined fields, "id" and "created_at" are
// never written. The id is bound as the last parameter.
//
// Parameters:
//   - table: Target table name
//   - rec: Values to set
//   - id: Primary key of the row
//   - excludeKeys: Columns to leave out
//
// Returns:
//   - Statement: "UPDATE table SET k1 = ?, k2 = ? WHERE id = ?"
//   - error: *types.QueryBuildError if no columns remain, the id is missing or a name is invalid
func BuildUpdate(table string, rec types.Record, id any, excludeKeys ...string) (Statement, error) {
	if isMissing(id) {
		return Statement{}, &types.QueryBuildError{Table: table, Reason: "update requires an id"}
	}

	exclude := append(slices.Clone(excludeKeys), immutableOnUpdate...)
	cols, err := columns(table, rec, exclude)
	if err != nil {
		return Statement{}, err
	}

	sets := make([]string, len(cols))
	params := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = c + " = ?"
		params = append(params, NormalizeParam(rec[c]))
	}
	params = append(params, NormalizeParam(id))

	sql := "UPDATE " + table + " SET " + strings.Join(sets, ", ") + " WHERE id = ?"

	return Statement{SQL: sql, Params: params}, nil
}

// BuildDelete builds a DELETE statement for the row with id.
func BuildDelete(table string, id any) (Statement, error) {
	if err := validateIdent(table, table); err != nil {
		return Statement{}, err
	}
	if isMissing(id) {
		return Statement{}, &types.QueryBuildError{Table: table, Reason: "delete requires an id"}
	}

	return Statement{SQL: "DELETE FROM " + table + " WHERE id = ?", Params: []any{NormalizeParam(id)}}, nil
}

// BuildUpsert builds an INSERT that updates every non-key column when the
// row already exists.
//
// The record must carry an id. When the id is the only column the statement
// degrades to a no-op update of id.
func BuildUpsert(table string, rec types.Record, excludeKeys ...string) (Statement, error) {
	if _, ok := rec.ID(); !ok {
		return Statement{}, &types.QueryBuildError{Table: table, Reason: "upsert requires an id"}
	}

	stmt, err := BuildInsert(table, rec, excludeKeys...)
	if err != nil {
		return Statement{}, err
	}

	cols, _ := columns(table, rec, append(slices.Clone(excludeKeys), immutableOnUpdate...))
	updates := make([]string, 0, len(cols))
	for _, c := range cols {
		updates = append(updates, c+" = VALUES("+c+")")
	}
	if len(updates) == 0 {
		updates = append(updates, "id = id")
	}

	stmt.SQL += " ON DUPLICATE KEY UPDATE " + strings.Join(updates, ", ")

	return stmt, nil
}

// CountPlaceholders counts the "?" markers in sql that are outside quoted literals.
func CountPlaceholders(sql string) int {
	n := 0
	var quote rune
	escaped := false
	for _, r := range sql {
		switch {
		case escaped:
			escaped = false
		case quote != 0 && r == '\\':
			escaped = true
		case quote != 0 && r == quote:
			quote = 0
		case quote != 0:
		case r == '\'' || r == '"' || r == '`':
			quote = r
		case r == '?':
			n++
		}
	}

	return n
}

// columns returns the sorted, validated column names of rec that survive filtering.
func columns(table string, rec types.Record, exclude []string) ([]string, error) {
	if err := validateIdent(table, table); err != nil {
		return nil, err
	}

	cols := make([]string, 0, len(rec))
	for k, v := range rec {
		if slices.Contains(exclude, k) {
			continue
		}
		if _, undefined := v.(types.Unset); undefined {
			continue
		}
		if err := validateIdent(table, k); err != nil {
			return nil, err
		}
		cols = append(cols, k)
	}
	if len(cols) == 0 {
		return nil, &types.QueryBuildError{Table: table, Reason: "no columns to write"}
	}
	slices.Sort(cols)

	return cols, nil
}

func validateIdent(table, name string) error {
	if !identRegex.MatchString(name) {
		return &types.QueryBuildError{Table: table, Reason: "invalid identifier " + strconv.Quote(name)}
	}

	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func isMissing(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok && s == "" {
		return true
	}
	_, undefined := v.(types.Unset)

	return undefined
}
