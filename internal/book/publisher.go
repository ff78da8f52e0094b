package book

import (
	"context"
	"fmt"
	"log"

	"jotdown/internal/content"
)

// Result describes a generated book. Files holds the relative paths written, which
// on failure are the files written before the failure.
type Result struct {
	Directory string
	Files     []string
}

// Publisher builds, writes and compiles books.
type Publisher struct {
	Builder  Builder
	Writer   Writer
	Compiler Compiler
}

// Publish regenerates the book in dir from tree. The file tree is not rolled back
// when writing or compiling fails; calling Publish again overwrites it
// deterministically.
func (p *Publisher) Publish(ctx context.Context, tree *content.Tree, dir string) (Result, error) {
	res := Result{Directory: dir}

	layout, err := p.Builder.Build(tree)
	if err != nil {
		return res, fmt.Errorf("build layout: %w", err)
	}

	log.Printf("📖 Writing book %q (%d chapters) to %s", layout.Title, len(layout.Chapters), dir)
	res.Files, err = p.Writer.Materialize(ctx, dir, layout)
	if err != nil {
		return res, err
	}

	if p.Compiler != nil {
		if err := p.Compiler.Compile(ctx, dir); err != nil {
			log.Printf("❌ Book compiler failed for %s: %v", dir, err)
			return res, err
		}
	}
	return res, nil
}
