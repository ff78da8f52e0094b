package book

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"time"
)

// DefaultCompilerTimeout bounds a compiler run when none is configured.
const DefaultCompilerTimeout = 2 * time.Minute

const maxCompilerOutput = 4096

// Compiler turns a materialized book directory into its rendered form.
type Compiler interface {
	Compile(ctx context.Context, dir string) error
}

// CompilerError reports a compiler that failed, timed out or could not be started.
type CompilerError struct {
	Command  string
	ExitCode int
	TimedOut bool
	Output   string
	Err      error
}

func (e *CompilerError) Error() string {
	switch {
	case e.TimedOut:
		return fmt.Sprintf("%s timed out", e.Command)
	case e.ExitCode != 0:
		msg := fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
		if out := strings.TrimSpace(e.Output); out != "" {
			msg += ": " + out
		}
		return msg
	default:
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
}

func (e *CompilerError) Unwrap() error { return e.Err }

// NopCompiler skips compilation.
type NopCompiler struct{}

func (NopCompiler) Compile(context.Context, string) error { return nil }

// CommandCompiler runs an external book compiler, mdbook by default, inside the
// book directory.
type CommandCompiler struct {
	Path    string
	Args    []string
	Timeout time.Duration
}

// Compile runs the compiler with dir as working directory and waits for it to exit.
func (c *CommandCompiler) Compile(ctx context.Context, dir string) error {
	command := commandLine(c.Path, c.Args)

	bin, err := exec.LookPath(c.Path)
	if err != nil {
		return &CompilerError{Command: command, Err: err}
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultCompilerTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, bin, c.Args...)
	cmd.Dir = dir
	cmd.WaitDelay = time.Second

	log.Printf("📚 Running book compiler: %s (in %s)", command, dir)
	start := time.Now()
	output, err := cmd.CombinedOutput()
	if err == nil {
		log.Printf("✅ Book compiled in %s", time.Since(start).Round(time.Millisecond))
		return nil
	}

	cerr := &CompilerError{Command: command, Output: tail(string(output), maxCompilerOutput), Err: err}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		cerr.TimedOut = true
		return cerr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		cerr.ExitCode = exitErr.ExitCode()
	}
	return cerr
}

func commandLine(path string, args []string) string {
	return strings.TrimSpace(strings.Join(append([]string{path}, args...), " "))
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
