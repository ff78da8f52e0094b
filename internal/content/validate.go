package content

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

// DefaultMaxDepth is the nesting limit used when Options.MaxDepth is not set.
const DefaultMaxDepth = 4

// Options tune validation.
type Options struct {
	MaxDepth int
}

func (o Options) maxDepth() int {
	if o.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return o.MaxDepth
}

// Problem is a single validation failure. Path points into the request, e.g.
// "sections[1].children[0]".
type Problem struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// ValidationError reports every problem found in a content tree.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		if p.Path == "" {
			parts = append(parts, p.Reason)
			continue
		}
		parts = append(parts, p.Path+": "+p.Reason)
	}
	return "invalid content tree: " + strings.Join(parts, "; ")
}

// NormalizeTitle folds case and collapses whitespace so that titles differing only
// in those respects compare equal.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(cases.Fold().String(title)), " ")
}

type frame struct {
	raw    *RawSection
	parent NodeID
	depth  int
	path   string
}

// Validate checks raw and builds an immutable Tree from it. Either the whole tree is
// well-formed or a *ValidationError listing all problems is returned.
func Validate(raw RawTree, opts Options) (*Tree, error) {
	var problems []Problem
	report := func(path, format string, args ...any) {
		problems = append(problems, Problem{Path: path, Reason: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(raw.Title) == "" {
		report("title", "must not be empty")
	}
	if len(raw.Sections) == 0 {
		report("sections", "must contain at least one section")
	}

	maxDepth := opts.maxDepth()
	t := &Tree{title: strings.TrimSpace(raw.Title)}

	checkSiblings(raw.Sections, "sections", report)

	stack := make([]frame, 0, len(raw.Sections))
	for i := len(raw.Sections) - 1; i >= 0; i-- {
		stack = append(stack, frame{
			raw:    &raw.Sections[i],
			parent: NoParent,
			depth:  1,
			path:   fmt.Sprintf("sections[%d]", i),
		})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		title := strings.TrimSpace(f.raw.Title)
		if title == "" {
			report(f.path+".title", "must not be empty")
		}
		if f.depth > maxDepth {
			report(f.path, "nesting depth %d exceeds maximum of %d", f.depth, maxDepth)
		}
		if err := CheckMarkup(f.raw.Body); err != nil {
			report(f.path+".body", "%v", err)
		}

		id := NodeID(len(t.nodes))
		t.nodes = append(t.nodes, Node{
			ID:     id,
			Parent: f.parent,
			Depth:  f.depth,
			Title:  title,
			Body:   f.raw.Body,
		})
		if f.parent == NoParent {
			t.roots = append(t.roots, id)
		} else {
			t.nodes[f.parent].Children = append(t.nodes[f.parent].Children, id)
		}

		childPath := f.path + ".children"
		checkSiblings(f.raw.Children, childPath, report)
		for i := len(f.raw.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{
				raw:    &f.raw.Children[i],
				parent: id,
				depth:  f.depth + 1,
				path:   fmt.Sprintf("%s[%d]", childPath, i),
			})
		}
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return t, nil
}

func checkSiblings(sections []RawSection, path string, report func(path, format string, args ...any)) {
	seen := make(map[string]int, len(sections))
	for i, s := range sections {
		key := NormalizeTitle(s.Title)
		if key == "" {
			continue
		}
		if first, ok := seen[key]; ok {
			report(fmt.Sprintf("%s[%d].title", path, i), "duplicates sibling title %q at %s[%d]", s.Title, path, first)
			continue
		}
		seen[key] = i
	}
}

var (
	fenceRe      = regexp.MustCompile("^ {0,3}(`{3,}|~{3,})(.*)$")
	bareMarkerRe = regexp.MustCompile(`^\s*([-*+]|\d{1,9}[.)])\s*$`)
	listItemRe   = regexp.MustCompile(`^\s*([-*+]|\d{1,9}[.)])\s+\S`)
)

// CheckMarkup reports block-level markup that is not well-formed: code fences that
// are never closed and list markers without item text.
func CheckMarkup(body string) error {
	var (
		openFence string
		openLine  int
		prev      string
	)
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		line = strings.TrimRight(line, "\r")
		if m := fenceRe.FindStringSubmatch(line); m != nil {
			fence := m[1]
			switch {
			case openFence == "":
				if fence[0] == '`' && strings.Contains(m[2], "`") {
					// not a fence, an inline code span
					break
				}
				openFence, openLine = fence, i+1
			case fence[0] == openFence[0] && len(fence) >= len(openFence) && strings.TrimSpace(m[2]) == "":
				openFence = ""
			}
			prev = line
			continue
		}
		if openFence != "" {
			continue
		}
		if bareMarkerRe.MatchString(line) && startsBlock(prev) {
			return fmt.Errorf("line %d: list marker %q has no item text", i+1, strings.TrimSpace(line))
		}
		prev = line
	}
	if openFence != "" {
		return fmt.Errorf("line %d: code fence %q is never closed", openLine, openFence)
	}
	return nil
}

// startsBlock reports whether a line following prev begins a new block. A bare "-"
// directly under paragraph text is a setext heading underline, not a list marker.
func startsBlock(prev string) bool {
	return strings.TrimSpace(prev) == "" || listItemRe.MatchString(prev) || bareMarkerRe.MatchString(prev)
}
