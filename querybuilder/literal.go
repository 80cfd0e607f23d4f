package querybuilder

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/arloliu/switchyard/types"
)

// DateTimeLayout is the MySQL DATETIME literal format.
const DateTimeLayout = "2006-01-02 15:04:05"

// DateLayout is the MySQL DATE literal format.
const DateLayout = "2006-01-02"

var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	"\n", `\n`,
	"\r", `\r`,
	"\x00", `\0`,
	"\x1a", `\Z`,
)

// Literal renders v as a MySQL literal.
//
// Strings are single-quoted with backslash escaping. Booleans become 1 or 0,
// times are rendered in UTC, and maps or slices are rendered as JSON strings.
func Literal(v any) string {
	switch val := NormalizeParam(v).(type) {
	case nil:
		return "NULL"
	case int:
		return strconv.Itoa(val)
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case string:
		return "'" + literalEscaper.Replace(val) + "'"
	case []byte:
		return "'" + literalEscaper.Replace(string(val)) + "'"
	default:
		return "'" + literalEscaper.Replace(fmt.Sprint(val)) + "'"
	}
}

// NormalizeParam converts a record value to something the self-hosted
// dialect stores as intended.
//
// Booleans map to 1/0, times to DATETIME strings in UTC, and maps or slices
// (JSON columns) to their JSON encoding. Undefined becomes nil.
func NormalizeParam(v any) any {
	switch val := v.(type) {
	case types.Unset:
		return nil
	case bool:
		if val {
			return 1
		}
		return 0
	case time.Time:
		return val.UTC().Format(DateTimeLayout)
	case *time.Time:
		if val == nil {
			return nil
		}
		return val.UTC().Format(DateTimeLayout)
	case map[string]any, []any, types.Record, []string:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return v
	}
}

// DateRange renders an inclusive date-range predicate as a literal clause,
// e.g. "due_date >= '2024-01-01' AND due_date <= '2024-01-31'".
//
// Parameters:
//   - column: The DATE column
//   - from: First day of the range
//   - to: Last day of the range
//
// Returns:
//   - string: The predicate without a WHERE keyword
//   - error: *types.QueryBuildError for an invalid column or a reversed range
func DateRange(column string, from, to time.Time) (string, error) {
	if err := validateIdent(column, column); err != nil {
		return "", err
	}
	if to.Before(from) {
		return "", &types.QueryBuildError{Table: column, Reason: "date range ends before it starts"}
	}

	return column + " >= " + Literal(from.Format(DateLayout)) +
		" AND " + column + " <= " + Literal(to.Format(DateLayout)), nil
}
