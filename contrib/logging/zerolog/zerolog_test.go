package zerolog

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/switchyard/types"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}

	return out
}

func TestLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, WithComponent("router"))

	l.Warn("replication failed",
		"target", types.KindSelfHosted,
		"table", "customers",
		"error", errors.New("timeout"),
		"attempts", 1,
	)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	ev := lines[0]
	require.Equal(t, "warn", ev["level"])
	require.Equal(t, "replication failed", ev["message"])
	require.Equal(t, "router", ev["component"])
	require.Equal(t, "self_hosted", ev["target"])
	require.Equal(t, "customers", ev["table"])
	require.Equal(t, "timeout", ev["error"])
	require.InDelta(t, 1, ev["attempts"], 0)
	require.Contains(t, ev, "time")
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, WithLevel("warn"))

	l.Debug("hidden")
	l.Info("hidden")
	l.Error("shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	require.Equal(t, "shown", lines[0]["message"])
}

func TestLoggerOddKeyValues(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Info("odd", "dangling")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	require.Equal(t, "dangling", lines[0]["!BADKEY"])
}
