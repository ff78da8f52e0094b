package book

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available in PATH, skipping test")
	}
}

func TestCommandCompiler_RunsInBookDirectory(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigPath), []byte("[book]\n"), 0o644))

	c := &CommandCompiler{Path: "sh", Args: []string{"-c", "test -f " + ConfigPath}}
	assert.NoError(t, c.Compile(context.Background(), dir))
}

func TestCommandCompiler_NonZeroExit(t *testing.T) {
	requireShell(t)
	c := &CommandCompiler{Path: "sh", Args: []string{"-c", "echo broken summary >&2; exit 3"}}
	err := c.Compile(context.Background(), t.TempDir())

	var cerr *CompilerError
	require.True(t, errors.As(err, &cerr), "got %v", err)
	assert.Equal(t, 3, cerr.ExitCode)
	assert.False(t, cerr.TimedOut)
	assert.Contains(t, cerr.Output, "broken summary")
}

func TestCommandCompiler_Timeout(t *testing.T) {
	requireShell(t)
	c := &CommandCompiler{Path: "sh", Args: []string{"-c", "exec sleep 5"}, Timeout: 50 * time.Millisecond}

	start := time.Now()
	err := c.Compile(context.Background(), t.TempDir())

	var cerr *CompilerError
	require.True(t, errors.As(err, &cerr), "got %v", err)
	assert.True(t, cerr.TimedOut)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestCommandCompiler_MissingBinary(t *testing.T) {
	c := &CommandCompiler{Path: "jotdown-no-such-compiler"}
	err := c.Compile(context.Background(), t.TempDir())

	var cerr *CompilerError
	require.True(t, errors.As(err, &cerr), "got %v", err)
	assert.Error(t, cerr.Err)
}

type failingCompiler struct{ err error }

func (f failingCompiler) Compile(context.Context, string) error { return f.err }

func TestPublisher_CompilerFailureKeepsFiles(t *testing.T) {
	root := t.TempDir()
	p := &Publisher{Compiler: failingCompiler{err: &CompilerError{Command: "mdbook build", ExitCode: 1}}}

	res, err := p.Publish(context.Background(), guideTree(t), root)
	var cerr *CompilerError
	require.True(t, errors.As(err, &cerr))
	assert.Len(t, res.Files, 5)
	assert.FileExists(t, filepath.Join(root, "src", "intro.md"))
}
