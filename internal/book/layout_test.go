package book

import (
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jotdown/internal/content"
)

func mustTree(t *testing.T, raw content.RawTree) *content.Tree {
	t.Helper()
	tree, err := content.Validate(raw, content.Options{})
	require.NoError(t, err)
	return tree
}

func guideTree(t *testing.T) *content.Tree {
	return mustTree(t, content.RawTree{
		Title: "Guide",
		Sections: []content.RawSection{
			{Title: "Intro", Body: "Hello"},
			{Title: "Setup", Body: "Steps", Children: []content.RawSection{
				{Title: "Step 1", Body: "Do X"},
			}},
		},
	})
}

func chapterPaths(l Layout) []string {
	out := make([]string, 0, len(l.Chapters))
	for _, c := range l.Chapters {
		out = append(out, c.Path)
	}
	return out
}

func TestBuild_GuideScenario(t *testing.T) {
	layout, err := Builder{}.Build(guideTree(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"src/intro.md", "src/setup.md", "src/setup/step-1.md"}, chapterPaths(layout))
	assert.Equal(t, "# Intro\n\nHello\n", layout.Chapters[0].Content)
	assert.Equal(t, "# Step 1\n\nDo X\n", layout.Chapters[2].Content)

	assert.Equal(t, IndexPath, layout.Index.Path)
	assert.Equal(t, "# Summary\n\n"+
		"- [Intro](intro.md)\n"+
		"- [Setup](setup.md)\n"+
		"    - [Step 1](setup/step-1.md)\n", layout.Index.Content)
}

func TestBuild_IsDeterministic(t *testing.T) {
	first, err := Builder{}.Build(guideTree(t))
	require.NoError(t, err)
	second, err := Builder{}.Build(guideTree(t))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuild_IndexFollowsPreOrder(t *testing.T) {
	tree := mustTree(t, content.RawTree{Title: "T", Sections: []content.RawSection{
		{Title: "A", Children: []content.RawSection{
			{Title: "A1", Children: []content.RawSection{{Title: "A1a"}}},
			{Title: "A2"},
		}},
		{Title: "B"},
	}})
	layout, err := Builder{}.Build(tree)
	require.NoError(t, err)

	var titles []string
	var depths []int
	for _, e := range layout.Entries {
		titles = append(titles, e.Title)
		depths = append(depths, e.Depth)
	}
	assert.Equal(t, []string{"A", "A1", "A1a", "A2", "B"}, titles)
	assert.Equal(t, []int{1, 2, 3, 2, 1}, depths)
	assert.Equal(t, "src/a/a1/a1a.md", layout.Entries[2].Path)
	assert.Contains(t, layout.Index.Content, "        - [A1a](a/a1/a1a.md)\n")
}

func TestBuild_DisambiguatesSlugCollisions(t *testing.T) {
	tree := mustTree(t, content.RawTree{Title: "T", Sections: []content.RawSection{
		{Title: "A-B"},
		{Title: "A B"},
		{Title: "a_b"},
		{Title: "Summary", Children: []content.RawSection{{Title: "Summary"}}},
	}})
	layout, err := Builder{}.Build(tree)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"src/a-b.md",
		"src/a-b-2.md",
		"src/a-b-3.md",
		"src/summary-2.md",
		"src/summary-2/summary.md",
	}, chapterPaths(layout))

	seen := map[string]bool{}
	for _, p := range layout.Paths() {
		assert.False(t, seen[p], "duplicate path %s", p)
		seen[p] = true
	}
}

func TestBuild_EscapesIndexLinkText(t *testing.T) {
	tree := mustTree(t, content.RawTree{Title: "T", Sections: []content.RawSection{{Title: "Arrays [] in Go"}}})
	layout, err := Builder{}.Build(tree)
	require.NoError(t, err)
	assert.Contains(t, layout.Index.Content, `- [Arrays \[\] in Go](arrays-in-go.md)`)
}

func TestBuild_Config(t *testing.T) {
	layout, err := Builder{Language: "ru"}.Build(guideTree(t))
	require.NoError(t, err)
	require.Equal(t, ConfigPath, layout.Config.Path)

	var cfg bookConfig
	_, err = toml.Decode(layout.Config.Content, &cfg)
	require.NoError(t, err)
	assert.Equal(t, "Guide", cfg.Book.Title)
	assert.Equal(t, "ru", cfg.Book.Language)
	assert.Equal(t, SrcDir, cfg.Book.Src)
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Step 1":         "step-1",
		"Héllo, Wörld!":  "hello-world",
		"  C++ & Go  ":   "c-go",
		"!!!":            fallbackSlug,
		"Ünïcödé Títlé":  "unicode-title",
		"already-a-slug": "already-a-slug",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), "Slugify(%q)", in)
	}
}
