package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// CopyTool is a fake OCR tool body that copies the input (second to last
// argument) to the output (last argument).
const CopyTool = `for last; do :; done
prev=""
for a; do if [ "$a" = "$last" ]; then break; fi; prev="$a"; done
cp "$prev" "$last"`

// FailTool is a fake OCR tool body that exits non-zero with a message.
const FailTool = `echo "PriorOcrFoundError: page already has text" >&2
exit 6`

// FakeOCRTool writes an executable shell script standing in for ocrmypdf and
// returns its path and the log it appends one line to per run.
func FakeOCRTool(t *testing.T, body string) (string, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a POSIX shell")
	}
	dir := t.TempDir()
	calls := filepath.Join(dir, "calls.log")
	script := "#!/bin/sh\n" +
		"echo \"$@\" >> " + calls + "\n" +
		body + "\n"
	path := filepath.Join(dir, "fake-ocrmypdf")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o700)) //nolint:gosec
	return path, calls
}

// CountCalls returns how many times a FakeOCRTool ran.
func CountCalls(t *testing.T, calls string) int {
	t.Helper()
	data, err := os.ReadFile(calls)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	return strings.Count(string(data), "\n")
}
