package querybuilder

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/switchyard/types"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()

	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func render(stmt Statement) []byte {
	return []byte(fmt.Sprintf("%s\n%v\n", stmt.SQL, stmt.Params))
}

func TestGoldenStatements(t *testing.T) {
	g := newGoldie(t)

	t.Run("insert_customer", func(t *testing.T) {
		stmt, err := BuildInsert("customers", types.Record{
			"name":      "Acme",
			"email":     "info@acme.nl",
			"is_active": true,
			"notes":     types.Undefined,
		})
		require.NoError(t, err)
		g.Assert(t, "insert_customer", render(stmt))
	})

	t.Run("update_task", func(t *testing.T) {
		stmt, err := BuildUpdate("tasks", types.Record{
			"id":         "t1",
			"created_at": "2024-01-01",
			"title":      "Vullen",
			"status":     "done",
			"task_types": map[string]any{"name": "Productie"},
		}, "t1", "task_types")
		require.NoError(t, err)
		g.Assert(t, "update_task", render(stmt))
	})

	t.Run("select_orders", func(t *testing.T) {
		stmt, err := BuildSelect("gas_cylinder_orders", types.ReadOptions{
			Filters: []types.Filter{
				types.Gte("scheduled_date", "2024-01-01"),
				types.Lte("scheduled_date", "2024-01-31"),
				types.Or(types.Eq("status", "pending"), types.Ilike("order_number", "%o'brien%")),
			},
			Order:  []types.Order{types.Asc("scheduled_date"), types.Desc("created_at")},
			Limit:  50,
			Offset: 100,
		})
		require.NoError(t, err)
		g.Assert(t, "select_orders", render(stmt))
	})

	t.Run("upsert_customer", func(t *testing.T) {
		stmt, err := BuildUpsert("customers", types.Record{"id": "c1", "name": "Acme", "is_active": false})
		require.NoError(t, err)
		g.Assert(t, "upsert_customer", render(stmt))
	})
}

func TestBuildInsertSingleColumn(t *testing.T) {
	stmt, err := BuildInsert("customers", types.Record{"name": "Acme"})
	require.NoError(t, err)
	require.Equal(t, "INSERT INTO customers (name) VALUES (?)", stmt.SQL)
	require.Equal(t, []any{"Acme"}, stmt.Params)
}

func TestBuildInsertPlaceholderCountMatchesParams(t *testing.T) {
	records := []types.Record{
		{"a": 1},
		{"b": "x", "a": nil, "c": true},
		{"z": 1.5, "y": "it's", "x": time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), "w": types.Undefined},
		{"id": "r1", "created_at": "2024-01-01", "payload": map[string]any{"k": "v"}},
	}

	for i, rec := range records {
		t.Run(fmt.Sprintf("record_%d", i), func(t *testing.T) {
			stmt, err := BuildInsert("things", rec)
			require.NoError(t, err)
			require.Equal(t, len(stmt.Params), CountPlaceholders(stmt.SQL))

			// columns appear in the same order as their params
			open := strings.Index(stmt.SQL, "(")
			closing := strings.Index(stmt.SQL, ")")
			cols := strings.Split(stmt.SQL[open+1:closing], ", ")
			require.Len(t, cols, len(stmt.Params))
			for j, c := range cols {
				require.Equal(t, NormalizeParam(rec[c]), stmt.Params[j])
			}
		})
	}
}

func TestBuildInsertStableOrdering(t *testing.T) {
	rec := types.Record{"c": 3, "a": 1, "b": 2, "d": 4, "e": 5}

	first, err := BuildInsert("t", rec)
	require.NoError(t, err)
	for range 20 {
		again, err := BuildInsert("t", rec.Clone())
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
	require.Equal(t, "INSERT INTO t (a, b, c, d, e) VALUES (?, ?, ?, ?, ?)", first.SQL)
}

func TestBuildInsertErrors(t *testing.T) {
	_, err := BuildInsert("customers", types.Record{})
	require.ErrorIs(t, err, types.ErrQueryBuild)

	_, err = BuildInsert("customers", types.Record{"name": "x"}, "name")
	require.ErrorIs(t, err, types.ErrQueryBuild)

	_, err = BuildInsert("customers", types.Record{"only": types.Undefined})
	require.ErrorIs(t, err, types.ErrQueryBuild)

	_, err = BuildInsert("customers; DROP TABLE x", types.Record{"name": "x"})
	require.ErrorIs(t, err, types.ErrQueryBuild)

	_, err = BuildInsert("customers", types.Record{"name) VALUES ('x'); --": "x"})
	require.ErrorIs(t, err, types.ErrQueryBuild)
}

func TestBuildUpdateExcludesImmutableColumns(t *testing.T) {
	stmt, err := BuildUpdate("customers", types.Record{
		"id":         "c1",
		"created_at": "2024-01-01",
		"is_active":  false,
	}, "c1")
	require.NoError(t, err)
	require.Equal(t, "UPDATE customers SET is_active = ? WHERE id = ?", stmt.SQL)
	require.Equal(t, []any{0, "c1"}, stmt.Params)
	require.Equal(t, len(stmt.Params), CountPlaceholders(stmt.SQL))
}

func TestBuildUpdateErrors(t *testing.T) {
	_, err := BuildUpdate("customers", types.Record{"id": "c1", "created_at": "x"}, "c1")
	require.ErrorIs(t, err, types.ErrQueryBuild)

	_, err = BuildUpdate("customers", types.Record{"name": "x"}, nil)
	require.ErrorIs(t, err, types.ErrQueryBuild)

	_, err = BuildUpdate("customers", types.Record{"name": "x"}, "")
	require.ErrorIs(t, err, types.ErrQueryBuild)
}

func TestBuildDelete(t *testing.T) {
	stmt, err := BuildDelete("tasks", "t1")
	require.NoError(t, err)
	require.Equal(t, "DELETE FROM tasks WHERE id = ?", stmt.SQL)
	require.Equal(t, []any{"t1"}, stmt.Params)

	_, err = BuildDelete("tasks", nil)
	require.ErrorIs(t, err, types.ErrQueryBuild)
}

func TestBuildUpsertRequiresID(t *testing.T) {
	_, err := BuildUpsert("customers", types.Record{"name": "x"})
	require.ErrorIs(t, err, types.ErrQueryBuild)

	stmt, err := BuildUpsert("customers", types.Record{"id": "c1"})
	require.NoError(t, err)
	require.Equal(t, "INSERT INTO customers (id) VALUES (?) ON DUPLICATE KEY UPDATE id = id", stmt.SQL)
}

func TestBuildSelect(t *testing.T) {
	tests := []struct {
		name   string
		opts   types.ReadOptions
		sql    string
		params []any
	}{
		{
			name: "all",
			sql:  "SELECT * FROM customers",
		},
		{
			name:   "ordered by name",
			opts:   types.ReadOptions{Order: []types.Order{types.Asc("name")}, Columns: []string{"id", "name"}},
			sql:    "SELECT id, name FROM customers ORDER BY name ASC",
			params: nil,
		},
		{
			name:   "null and not null",
			opts:   types.ReadOptions{Filters: []types.Filter{types.Eq("deleted_at", nil), types.Neq("email", nil), types.Neq("status", "cancelled")}},
			sql:    "SELECT * FROM customers WHERE deleted_at IS NULL AND email IS NOT NULL AND status <> ?",
			params: []any{"cancelled"},
		},
		{
			name:   "offset only",
			opts:   types.ReadOptions{Offset: 10},
			sql:    "SELECT * FROM customers LIMIT 18446744073709551615 OFFSET 10",
			params: nil,
		},
		{
			name: "nested or",
			opts: types.ReadOptions{Filters: []types.Filter{
				types.Or(types.Eq("a", 1), types.Or(types.Gte("b", 2), types.Lte("c", true))),
			}},
			sql: "SELECT * FROM customers WHERE (a = 1 OR (b >= 2 OR c <= 1))",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := BuildSelect("customers", tt.opts)
			require.NoError(t, err)
			require.Equal(t, tt.sql, stmt.SQL)
			require.Equal(t, tt.params, stmt.Params)
			require.Equal(t, len(stmt.Params), CountPlaceholders(stmt.SQL))
		})
	}
}

func TestBuildSelectErrors(t *testing.T) {
	_, err := BuildSelect("customers", types.ReadOptions{Filters: []types.Filter{{Column: "a", Op: "like", Value: 1}}})
	require.ErrorIs(t, err, types.ErrQueryBuild)

	_, err = BuildSelect("customers", types.ReadOptions{Filters: []types.Filter{types.Or()}})
	require.ErrorIs(t, err, types.ErrQueryBuild)

	_, err = BuildSelect("customers", types.ReadOptions{Order: []types.Order{types.Asc("name; --")}})
	require.ErrorIs(t, err, types.ErrQueryBuild)
}

func TestWhere(t *testing.T) {
	stmt, err := Where("tasks", types.Gte("due_date", "2024-01-01"), types.Neq("status", "cancelled"))
	require.NoError(t, err)
	require.Equal(t, "due_date >= ? AND status <> ?", stmt.SQL)
	require.Equal(t, []any{"2024-01-01", "cancelled"}, stmt.Params)
}

func TestLiteral(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{types.Undefined, "NULL"},
		{true, "1"},
		{false, "0"},
		{42, "42"},
		{int64(-7), "-7"},
		{uint8(3), "3"},
		{1.25, "1.25"},
		{"plain", "'plain'"},
		{"O'Brien", `'O\'Brien'`},
		{`back\slash`, `'back\\slash'`},
		{"line\nbreak\r", `'line\nbreak\r'`},
		{"nul\x00sub\x1a", `'nul\0sub\Z'`},
		{time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC), "'2024-02-03 04:05:06'"},
		{map[string]any{"k": "v"}, `'{"k":"v"}'`},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v", tt.in), func(t *testing.T) {
			require.Equal(t, tt.want, Literal(tt.in))
		})
	}
}

func TestCountPlaceholdersIgnoresQuotedMarks(t *testing.T) {
	require.Equal(t, 0, CountPlaceholders("SELECT '?'"))
	require.Equal(t, 1, CountPlaceholders(`SELECT 'it\'s ?' WHERE a = ?`))
	require.Equal(t, 2, CountPlaceholders("SELECT `a?` FROM t WHERE a = ? AND b = ?"))
}

func TestDateRange(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	clause, err := DateRange("due_date", from, to)
	require.NoError(t, err)
	require.Equal(t, "due_date >= '2024-01-01' AND due_date <= '2024-01-31'", clause)

	_, err = DateRange("due_date", to, from)
	require.ErrorIs(t, err, types.ErrQueryBuild)

	_, err = DateRange("due date", from, to)
	require.ErrorIs(t, err, types.ErrQueryBuild)
}
