package querybuilder

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/switchyard/types"
)

// mysqlMaxRows is the documented MySQL idiom for "no limit" when only an offset is given.
const mysqlMaxRows = "18446744073709551615"

// BuildSelect builds a SELECT for a read.
//
// Scalar filters are bound as parameters. Filters combined with OpOr are
// rendered as escaped literals inside a parenthesized group. Joins are not
// representable and are ignored.
//
// Parameters:
//   - table: Table to read
//   - opts: Columns, filters, order and paging
//
// Returns:
//   - Statement: The SELECT statement
//   - error: *types.QueryBuildError on invalid identifiers or operators
func BuildSelect(table string, opts types.ReadOptions) (Statement, error) {
	if err := validateIdent(table, table); err != nil {
		return Statement{}, err
	}

	selectList := "*"
	if len(opts.Columns) > 0 {
		for _, c := range opts.Columns {
			if err := validateIdent(table, c); err != nil {
				return Statement{}, err
			}
		}
		selectList = strings.Join(opts.Columns, ", ")
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + selectList + " FROM " + table)

	var params []any
	if len(opts.Filters) > 0 {
		conds := make([]string, 0, len(opts.Filters))
		for _, f := range opts.Filters {
			cond, p, err := condition(table, f)
			if err != nil {
				return Statement{}, err
			}
			conds = append(conds, cond)
			params = append(params, p...)
		}
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}

	if len(opts.Order) > 0 {
		terms := make([]string, len(opts.Order))
		for i, o := range opts.Order {
			if err := validateIdent(table, o.Column); err != nil {
				return Statement{}, err
			}
			dir := "ASC"
			if o.Descending {
				dir = "DESC"
			}
			terms[i] = o.Column + " " + dir
		}
		sb.WriteString(" ORDER BY " + strings.Join(terms, ", "))
	}

	switch {
	case opts.Limit > 0:
		sb.WriteString(" LIMIT " + strconv.Itoa(opts.Limit))
	case opts.Offset > 0:
		sb.WriteString(" LIMIT " + mysqlMaxRows)
	}
	if opts.Offset > 0 {
		sb.WriteString(" OFFSET " + strconv.Itoa(opts.Offset))
	}

	return Statement{SQL: sb.String(), Params: params}, nil
}

// Where renders filters as a WHERE body without the keyword.
//
// It is used by callers composing raw statements.
func Where(table string, filters ...types.Filter) (Statement, error) {
	conds := make([]string, 0, len(filters))
	var params []any
	for _, f := range filters {
		cond, p, err := condition(table, f)
		if err != nil {
			return Statement{}, err
		}
		conds = append(conds, cond)
		params = append(params, p...)
	}

	return Statement{SQL: strings.Join(conds, " AND "), Params: params}, nil
}

func condition(table string, f types.Filter) (string, []any, error) {
	if f.Op == types.OpOr {
		lit, err := orLiteral(table, f.Any)
		return lit, nil, err
	}
	if err := validateIdent(table, f.Column); err != nil {
		return "", nil, err
	}

	switch f.Op {
	case types.OpEq:
		if f.Value == nil {
			return f.Column + " IS NULL", nil, nil
		}
		return f.Column + " = ?", []any{NormalizeParam(f.Value)}, nil
	case types.OpNeq:
		if f.Value == nil {
			return f.Column + " IS NOT NULL", nil, nil
		}
		return f.Column + " <> ?", []any{NormalizeParam(f.Value)}, nil
	case types.OpGte:
		return f.Column + " >= ?", []any{NormalizeParam(f.Value)}, nil
	case types.OpLte:
		return f.Column + " <= ?", []any{NormalizeParam(f.Value)}, nil
	case types.OpIlike:
		return "LOWER(" + f.Column + ") LIKE LOWER(?)", []any{NormalizeParam(f.Value)}, nil
	default:
		return "", nil, &types.QueryBuildError{Table: table, Reason: fmt.Sprintf("unsupported filter op %q", f.Op)}
	}
}

// orLiteral renders alternatives as "(a = 'x' OR b >= 5)" with escaped literals.
func orLiteral(table string, alts []types.Filter) (string, error) {
	if len(alts) == 0 {
		return "", &types.QueryBuildError{Table: table, Reason: "or filter without alternatives"}
	}

	parts := make([]string, len(alts))
	for i, f := range alts {
		if f.Op == types.OpOr {
			nested, err := orLiteral(table, f.Any)
			if err != nil {
				return "", err
			}
			parts[i] = nested

			continue
		}
		if err := validateIdent(table, f.Column); err != nil {
			return "", err
		}

		switch f.Op {
		case types.OpEq:
			if f.Value == nil {
				parts[i] = f.Column + " IS NULL"
			} else {
				parts[i] = f.Column + " = " + Literal(f.Value)
			}
		case types.OpNeq:
			if f.Value == nil {
				parts[i] = f.Column + " IS NOT NULL"
			} else {
				parts[i] = f.Column + " <> " + Literal(f.Value)
			}
		case types.OpGte:
			parts[i] = f.Column + " >= " + Literal(f.Value)
		case types.OpLte:
			parts[i] = f.Column + " <= " + Literal(f.Value)
		case types.OpIlike:
			parts[i] = "LOWER(" + f.Column + ") LIKE LOWER(" + Literal(f.Value) + ")"
		default:
			return "", &types.QueryBuildError{Table: table, Reason: fmt.Sprintf("unsupported filter op %q", f.Op)}
		}
	}

	return "(" + strings.Join(parts, " OR ") + ")", nil
}
