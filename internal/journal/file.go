package journal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// ErrInvalidEvent is returned by Append for events that name no tool.
var ErrInvalidEvent = errors.New("journal: event has no tool")

// FileRecorder keeps the publish journal as a JSON Lines file, one event per
// line in append order.
type FileRecorder struct {
	path string
	mu   sync.Mutex
}

// NewFileRecorder creates the journal directory. The file itself is created by
// the first Append.
func NewFileRecorder(path string) (*FileRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure journal dir: %w", err)
	}
	return &FileRecorder{path: path}, nil
}

// Append stamps event with an ID and a UTC timestamp when it has none and
// writes it as a single line.
func (r *FileRecorder) Append(event Event) error {
	if event.Tool == "" {
		return ErrInvalidEvent
	}
	line, err := json.Marshal(stamp(event))
	if err != nil {
		return fmt.Errorf("failed to encode journal event: %w", err)
	}
	line = append(line, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	if partial, err := endsMidLine(f); err != nil {
		_ = f.Close()
		return err
	} else if partial {
		// keep the next event off a line left unfinished by an earlier write
		line = append([]byte{'\n'}, line...)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to append journal event: %w", err)
	}
	return f.Close()
}

func endsMidLine(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("failed to stat journal: %w", err)
	}
	if info.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return false, fmt.Errorf("failed to read journal: %w", err)
	}
	return last[0] != '\n', nil
}

// Load returns every readable event. A missing journal is empty.
func (r *FileRecorder) Load() ([]Event, error) {
	var events []Event
	skipped, err := r.Scan(func(ev Event) { events = append(events, ev) })
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		log.Printf("⚠️ Skipped %d corrupt journal lines in %s", skipped, r.path)
	}
	return events, nil
}

// Scan calls fn for each event in append order and returns the number of lines
// it skipped. Lines that are not JSON objects or name no tool are skipped,
// including a final line cut short by an interrupted write.
func (r *FileRecorder) Scan(fn func(Event)) (skipped int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.Open(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	for {
		line, readErr := br.ReadBytes('\n')
		if line = bytes.TrimSpace(line); len(line) > 0 {
			var ev Event
			if json.Unmarshal(line, &ev) != nil || ev.Tool == "" {
				skipped++
			} else {
				fn(ev)
			}
		}
		if errors.Is(readErr, io.EOF) {
			return skipped, nil
		}
		if readErr != nil {
			return skipped, fmt.Errorf("failed to read journal: %w", readErr)
		}
	}
}
