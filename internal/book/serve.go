package book

import (
	"context"
	"log"
	"os"
	"os/exec"
	"path/filepath"
)

// Previewer starts a live preview of a materialized book.
type Previewer interface {
	Serve(ctx context.Context, dir string) (Preview, error)
}

// Preview is a running preview server.
type Preview struct {
	Command   string
	Directory string
	PID       int
}

// CommandServer starts an external preview server, "mdbook serve" by default,
// in the book directory and leaves it running after Serve returns.
type CommandServer struct {
	Path string
	Args []string
}

// Serve starts the server detached from ctx. Its output is discarded so it
// never writes to the MCP stdio stream.
func (s *CommandServer) Serve(ctx context.Context, dir string) (Preview, error) {
	if err := ctx.Err(); err != nil {
		return Preview{}, err
	}
	command := commandLine(s.Path, s.Args)

	cfgPath := filepath.Join(dir, ConfigPath)
	if _, err := os.Stat(cfgPath); err != nil {
		return Preview{}, &FilesystemError{Op: "stat", Path: cfgPath, Err: err}
	}

	bin, err := exec.LookPath(s.Path)
	if err != nil {
		return Preview{}, &CompilerError{Command: command, Err: err}
	}

	cmd := exec.Command(bin, s.Args...)
	cmd.Dir = dir
	if err := cmd.Start(); err != nil {
		return Preview{}, &CompilerError{Command: command, Err: err}
	}
	pid := cmd.Process.Pid
	log.Printf("🌐 Started %s in %s (pid %d)", command, dir, pid)

	go func() {
		if err := cmd.Wait(); err != nil {
			log.Printf("⚠️ %s (pid %d) exited: %v", command, pid, err)
			return
		}
		log.Printf("🛑 %s (pid %d) exited", command, pid)
	}()

	return Preview{Command: command, Directory: dir, PID: pid}, nil
}
