package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "test")

	l.Record(t.Context(), Entry{Route: "/api/admin/posts", Method: "POST", Action: "write", Reason: "service_role_fallback"})
	l.Record(t.Context(), Entry{Route: "/api/comments/cleanup", Method: "POST", Action: "purge", Resource: "comments",
		UserID: "u-1", UserEmail: "owner@example.com", Reason: "comment_cleanup"})

	sc := bufio.NewScanner(&buf)
	var lines []map[string]any
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 2)
	require.Equal(t, "test", lines[0]["env"])
	require.Equal(t, "/api/admin/posts", lines[0]["route"])
	require.Equal(t, "service_role_fallback", lines[0]["reason"])
	require.NotEmpty(t, lines[0]["time"])
	require.NotContains(t, lines[0], "user")
	require.Equal(t, "owner@example.com", lines[1]["user"].(map[string]any)["email"])
}

func TestOpenAppends(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	for range 2 {
		l, err := Open(dir, "test")
		require.NoError(t, err)
		l.Record(t.Context(), Entry{Route: "/x", Method: "DELETE", Action: "write"})
		require.NoError(t, l.Close())
	}
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	require.Equal(t, 2, bytes.Count(data, []byte("\n")))
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Record(t.Context(), Entry{Route: "/x"})
	require.NoError(t, l.Close())
}
