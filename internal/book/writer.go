package book

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// FilesystemError reports a file that could not be written or removed.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }

// Manifest records which files under a book root were generated, so that a later
// build can prune the ones it no longer produces.
type Manifest struct {
	Title string   `yaml:"title"`
	Files []string `yaml:"files"`
}

// Writer materializes layouts on disk.
type Writer struct{}

// Materialize writes every file of layout under root, overwriting by path, and
// removes previously generated files the layout no longer references. It returns the
// relative paths written so far, also on failure. Nothing is rolled back.
func (w Writer) Materialize(ctx context.Context, root string, layout Layout) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &FilesystemError{Op: "mkdir", Path: root, Err: err}
	}

	previous, err := readManifest(root)
	if err != nil {
		log.Printf("⚠️ Ignoring unreadable book manifest in %s: %v", root, err)
	}

	var written []string
	for _, f := range layout.Files() {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		full := filepath.Join(root, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return written, &FilesystemError{Op: "mkdir", Path: f.Path, Err: err}
		}
		if err := os.WriteFile(full, []byte(f.Content), 0o644); err != nil {
			return written, &FilesystemError{Op: "write", Path: f.Path, Err: err}
		}
		written = append(written, f.Path)
	}

	if err := prune(root, previous, layout.Paths()); err != nil {
		return written, err
	}

	if err := writeManifest(root, Manifest{Title: layout.Title, Files: layout.Paths()}); err != nil {
		return written, err
	}
	return written, nil
}

// prune removes stale generated files: anything listed in the previous manifest
// plus every markdown file under src/ that keep does not mention.
func prune(root string, previous, keep []string) error {
	wanted := make(map[string]bool, len(keep))
	for _, p := range keep {
		wanted[p] = true
	}

	candidates := make(map[string]bool)
	for _, p := range previous {
		candidates[filepath.ToSlash(filepath.Clean(filepath.FromSlash(p)))] = true
	}
	srcRoot := filepath.Join(root, SrcDir)
	var dirs []string
	err := filepath.WalkDir(srcRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if p != srcRoot {
				dirs = append(dirs, p)
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(p), ".md") {
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			candidates[filepath.ToSlash(rel)] = true
		}
		return nil
	})
	if err != nil {
		return &FilesystemError{Op: "scan", Path: SrcDir, Err: err}
	}

	stale := make([]string, 0, len(candidates))
	for p := range candidates {
		if !wanted[p] && isInside(p) {
			stale = append(stale, p)
		}
	}
	sort.Strings(stale)
	for _, p := range stale {
		err := os.Remove(filepath.Join(root, filepath.FromSlash(p)))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return &FilesystemError{Op: "remove", Path: p, Err: err}
		}
		if err == nil {
			log.Printf("🧹 Pruned stale chapter %s", p)
		}
	}

	// deepest first so parents empty out after their children
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, d := range dirs {
		entries, err := os.ReadDir(d)
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := os.Remove(d); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return &FilesystemError{Op: "remove", Path: d, Err: err}
		}
	}
	return nil
}

// isInside rejects manifest entries that would escape the book root.
func isInside(rel string) bool {
	return rel != "" && rel != "." && !filepath.IsAbs(rel) && rel != ".." && !strings.HasPrefix(rel, "../")
}

func readManifest(root string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(root, ManifestPath))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m.Files, nil
}

func writeManifest(root string, m Manifest) error {
	sort.Strings(m.Files)
	data, err := yaml.Marshal(m)
	if err != nil {
		return &FilesystemError{Op: "encode", Path: ManifestPath, Err: err}
	}
	if err := os.WriteFile(filepath.Join(root, ManifestPath), data, 0o644); err != nil {
		return &FilesystemError{Op: "write", Path: ManifestPath, Err: err}
	}
	return nil
}
