package book

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/BurntSushi/toml"

	"jotdown/internal/content"
)

const (
	SrcDir       = "src"
	IndexPath    = SrcDir + "/SUMMARY.md"
	ConfigPath   = "book.toml"
	ManifestPath = ".jotdown-manifest.yaml"

	indentUnit = "    "
)

// File is one generated file, addressed by a slash separated path relative to the
// book root.
type File struct {
	Path    string
	Content string
}

// Entry is one line of the navigation index.
type Entry struct {
	Title string
	Path  string
	Depth int
}

// Layout is the complete on-disk shape of a book: chapter files in pre-order, the
// navigation index and the mdBook config.
type Layout struct {
	Title    string
	Chapters []File
	Entries  []Entry
	Index    File
	Config   File
}

// Files returns every file of the layout in write order.
func (l Layout) Files() []File {
	files := make([]File, 0, len(l.Chapters)+2)
	files = append(files, l.Config)
	files = append(files, l.Chapters...)
	files = append(files, l.Index)
	return files
}

// Paths returns the relative paths of every file in the layout.
func (l Layout) Paths() []string {
	files := l.Files()
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Path)
	}
	return out
}

// Builder converts content trees into book layouts. Build is pure: the same tree
// always yields the same layout.
type Builder struct {
	Language string
}

type bookConfig struct {
	Book struct {
		Title    string `toml:"title"`
		Language string `toml:"language"`
		Src      string `toml:"src"`
	} `toml:"book"`
	Build struct {
		CreateMissing bool `toml:"create-missing"`
	} `toml:"build"`
}

// Build assigns every section a unique file and renders the navigation index.
// Top-level sections live in src/, nested ones in a directory named after their
// parent's slug.
func (b Builder) Build(tree *content.Tree) (Layout, error) {
	layout := Layout{Title: tree.Title()}

	// stems maps a section to its path without the .md extension; a section's
	// children are placed in the directory of that stem.
	stems := make(map[content.NodeID]string, tree.Len())
	scopes := map[string]*slugScope{
		SrcDir: newSlugScope("summary", "readme"),
	}

	err := tree.Walk(func(n content.Node) error {
		dir := SrcDir
		if n.Parent != content.NoParent {
			dir = stems[n.Parent]
		}
		scope, ok := scopes[dir]
		if !ok {
			scope = newSlugScope()
			scopes[dir] = scope
		}
		stem := path.Join(dir, scope.claim(Slugify(n.Title)))
		stems[n.ID] = stem

		p := stem + ".md"
		layout.Chapters = append(layout.Chapters, File{Path: p, Content: renderChapter(n)})
		layout.Entries = append(layout.Entries, Entry{Title: n.Title, Path: p, Depth: n.Depth})
		return nil
	})
	if err != nil {
		return Layout{}, err
	}

	layout.Index = File{Path: IndexPath, Content: renderIndex(layout.Entries)}

	cfg, err := b.renderConfig(tree.Title())
	if err != nil {
		return Layout{}, err
	}
	layout.Config = File{Path: ConfigPath, Content: cfg}
	return layout, nil
}

func renderChapter(n content.Node) string {
	var sb strings.Builder
	sb.WriteString("# ")
	sb.WriteString(n.Title)
	sb.WriteString("\n")
	if body := strings.TrimRight(strings.ReplaceAll(n.Body, "\r\n", "\n"), "\n"); strings.TrimSpace(body) != "" {
		sb.WriteString("\n")
		sb.WriteString(body)
		sb.WriteString("\n")
	}
	return sb.String()
}

func renderIndex(entries []Entry) string {
	var sb strings.Builder
	sb.WriteString("# Summary\n\n")
	for _, e := range entries {
		link := strings.TrimPrefix(e.Path, SrcDir+"/")
		fmt.Fprintf(&sb, "%s- [%s](%s)\n", strings.Repeat(indentUnit, e.Depth-1), escapeLinkText(e.Title), link)
	}
	return sb.String()
}

var linkTextEscaper = strings.NewReplacer(`\`, `\\`, `[`, `\[`, `]`, `\]`)

func escapeLinkText(s string) string {
	return linkTextEscaper.Replace(s)
}

func (b Builder) renderConfig(title string) (string, error) {
	var cfg bookConfig
	cfg.Book.Title = title
	cfg.Book.Language = b.Language
	if cfg.Book.Language == "" {
		cfg.Book.Language = "en"
	}
	cfg.Book.Src = SrcDir

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return "", fmt.Errorf("encode %s: %w", ConfigPath, err)
	}
	return buf.String(), nil
}
