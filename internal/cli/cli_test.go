package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// execute runs the CLI with the given args and returns stdout, stderr,
// and the command error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// writeSpecDir creates a temp spec directory with the given CUE source.
func writeSpecDir(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "functions.cue"), []byte(src), 0o644))
	return dir
}

const echoSpec = `
function: echo: {
	description: "Echo the question"
	parameters: q: {
		type:     "string"
		required: true
	}
	expressions: [{
		pattern: "."
		output: response: "Got: ${args.q}"
	}]
}
`
