package book

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"jotdown/internal/content"
)

const fallbackSlug = "section"

// Slugify turns a title into a lower-case, dash separated file name stem.
// Diacritics are stripped; anything that is not a letter or digit becomes a separator.
func Slugify(title string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, content.NormalizeTitle(title))
	if err != nil {
		folded = content.NormalizeTitle(title)
	}

	var b strings.Builder
	dash := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	if b.Len() == 0 {
		return fallbackSlug
	}
	return b.String()
}

// slugScope hands out unique slugs within one directory.
type slugScope struct {
	used map[string]bool
}

func newSlugScope(reserved ...string) *slugScope {
	s := &slugScope{used: make(map[string]bool)}
	for _, r := range reserved {
		s.used[r] = true
	}
	return s
}

// claim returns base, or base-2, base-3, ... for the first free name.
func (s *slugScope) claim(base string) string {
	slug := base
	for n := 2; s.used[slug]; n++ {
		slug = base + "-" + strconv.Itoa(n)
	}
	s.used[slug] = true
	return slug
}
