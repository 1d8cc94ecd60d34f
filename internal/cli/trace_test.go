package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/internal/store"
)

func seedTraceDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.db")
	db, err := store.Open(path)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.WriteRecord(ctx, store.Record{
		Seq: 1, CallID: "call-a", SessionID: "sess-1", Function: "echo",
		Args: `{"q":"x"}`, Outcome: "expression", Attempt: -1, Text: "Got: x",
	}))
	require.NoError(t, db.WriteRecord(ctx, store.Record{
		Seq: 2, CallID: "call-b", SessionID: "sess-2", Function: "search",
		Args: `{}`, Outcome: "attempt_success", Attempt: 0, Text: "found",
	}))
	return path
}

func TestTraceCommandAll(t *testing.T) {
	path := seedTraceDB(t)

	out, _, err := execute(t, "trace", path)
	require.NoError(t, err)
	assert.Contains(t, out, "call-a")
	assert.Contains(t, out, "call-b")
}

func TestTraceCommandFilterSession(t *testing.T) {
	path := seedTraceDB(t)

	out, _, err := execute(t, "trace", path, "--session", "sess-2")
	require.NoError(t, err)
	assert.NotContains(t, out, "call-a")
	assert.Contains(t, out, "call-b")
}

func TestTraceCommandFilterFunction(t *testing.T) {
	path := seedTraceDB(t)

	out, _, err := execute(t, "trace", path, "--function", "echo")
	require.NoError(t, err)
	assert.Contains(t, out, "call-a")
	assert.NotContains(t, out, "call-b")
}

func TestTraceCommandJSON(t *testing.T) {
	path := seedTraceDB(t)

	out, _, err := execute(t, "--format", "json", "trace", path)
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   []TraceRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, int64(1), resp.Data[0].Seq)
	assert.Equal(t, "echo", resp.Data[0].Function)
}

func TestTraceCommandMissingDB(t *testing.T) {
	_, _, err := execute(t, "trace", "/does/not/exist.db")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
