package notion

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"jotdown/internal/content"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.Strikethrough, extension.TaskList))

// Flatten renders a content tree as the ordered block sequence of a single page.
// Every section becomes a heading at min(depth, 3) followed by its body blocks,
// in pre-order.
func Flatten(tree *content.Tree) []Block {
	var blocks []Block
	_ = tree.Walk(func(n content.Node) error {
		blocks = append(blocks, Block{Type: HeadingType(n.Depth), RichText: normalizeRichText(PlainText(n.Title))})
		blocks = append(blocks, Markdown(n.Body, n.Depth)...)
		return nil
	})
	return blocks
}

// Markdown converts a Markdown body into blocks. Headings inside the body are
// pushed below headingBase.
func Markdown(body string, headingBase int) []Block {
	if strings.TrimSpace(body) == "" {
		return nil
	}
	src := []byte(body)
	doc := markdown.Parser().Parse(text.NewReader(src))
	c := converter{src: src, headingBase: headingBase}
	return c.children(doc, 0)
}

type converter struct {
	src         []byte
	headingBase int
}

func (c *converter) children(parent ast.Node, level int) []Block {
	var out []Block
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		out = append(out, c.block(n, level)...)
	}
	return out
}

// block converts one block node into blocks living at the given nesting level.
func (c *converter) block(n ast.Node, level int) []Block {
	switch v := n.(type) {
	case *ast.Heading:
		return c.textBlock(HeadingType(c.headingBase+v.Level), v)
	case *ast.Paragraph, *ast.TextBlock:
		return c.textBlock(Paragraph, v)
	case *ast.List:
		typ := BulletedListItem
		if v.IsOrdered() {
			typ = NumberedListItem
		}
		var out []Block
		for item := v.FirstChild(); item != nil; item = item.NextSibling() {
			out = append(out, c.container(Block{Type: typ}, item, level)...)
		}
		return out
	case *ast.FencedCodeBlock:
		return codeBlocks(c.lines(v), CodeLanguage(string(v.Language(c.src))))
	case *ast.CodeBlock:
		return codeBlocks(c.lines(v), PlainTextLanguage)
	case *ast.Blockquote:
		return c.container(Block{Type: Quote}, v, level)
	case *ast.ThematicBreak:
		return []Block{{Type: Divider}}
	case *ast.HTMLBlock:
		raw := c.lines(v)
		if v.HasClosure() {
			raw += string(v.ClosureLine.Value(c.src))
		}
		return c.plain(raw)
	default:
		if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 && !n.HasChildren() {
			return c.plain(c.lines(n))
		}
		return c.children(n, level)
	}
}

func (c *converter) textBlock(typ BlockType, n ast.Node) []Block {
	rt := normalizeRichText(c.inline(n))
	if blank(rt) {
		return nil
	}
	return splitBlock(Block{Type: typ, RichText: rt})
}

func (c *converter) plain(s string) []Block {
	s = strings.TrimRight(s, "\n")
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return splitBlock(Block{Type: Paragraph, RichText: normalizeRichText(PlainText(s))})
}

// container fills head from the leading paragraph of n and nests the remaining
// children below it. Past MaxNestingLevel the children are hoisted to follow head.
func (c *converter) container(head Block, n ast.Node, level int) []Block {
	rest := n.FirstChild()
	switch first := rest.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		if box, ok := first.FirstChild().(*extast.TaskCheckBox); ok {
			head.Type = ToDo
			head.Checked = box.IsChecked
		}
		head.RichText = normalizeRichText(c.inline(first))
		if head.Type == ToDo && len(head.RichText) > 0 {
			head.RichText[0].Content = strings.TrimLeft(head.RichText[0].Content, " ")
			if head.RichText[0].Content == "" {
				head.RichText = head.RichText[1:]
			}
		}
		rest = first.NextSibling()
	}

	childLevel := level + 1
	hoist := childLevel > MaxNestingLevel
	if hoist {
		childLevel = level
	}
	var kids []Block
	for ; rest != nil; rest = rest.NextSibling() {
		kids = append(kids, c.block(rest, childLevel)...)
	}

	if hoist {
		return append(splitBlock(head), kids...)
	}
	// Children past either limit follow the block as siblings so that no
	// single block outweighs one append request.
	keep, total := 0, 1
	for _, k := range kids {
		w := k.weight()
		if keep == MaxChildrenPerBlock || total+w > MaxElementsPerAppend {
			break
		}
		keep++
		total += w
	}
	head.Children = kids[:keep]
	return append(splitBlock(head), kids[keep:]...)
}

func (c *converter) lines(n ast.Node) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(c.src))
	}
	return sb.String()
}

func (c *converter) inline(n ast.Node) []RichText {
	var out []RichText
	c.walkInline(n, Annotations{}, "", &out)
	return out
}

func (c *converter) walkInline(parent ast.Node, ann Annotations, link string, out *[]RichText) {
	emit := func(s string, a Annotations, l string) {
		*out = append(*out, RichText{Content: s, Link: l, Annotations: a})
	}
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		switch v := n.(type) {
		case *ast.Text:
			s := string(v.Segment.Value(c.src))
			switch {
			case v.HardLineBreak():
				s += "\n"
			case v.SoftLineBreak():
				s += " "
			}
			emit(s, ann, link)
		case *ast.String:
			emit(string(v.Value), ann, link)
		case *ast.CodeSpan:
			a := ann
			a.Code = true
			c.walkInline(v, a, link, out)
		case *ast.Emphasis:
			a := ann
			if v.Level >= 2 {
				a.Bold = true
			} else {
				a.Italic = true
			}
			c.walkInline(v, a, link, out)
		case *extast.Strikethrough:
			a := ann
			a.Strikethrough = true
			c.walkInline(v, a, link, out)
		case *ast.Link:
			c.walkInline(v, ann, linkOr(string(v.Destination), link), out)
		case *ast.Image:
			c.walkInline(v, ann, linkOr(string(v.Destination), link), out)
		case *ast.AutoLink:
			emit(string(v.Label(c.src)), ann, linkOr(string(v.URL(c.src)), link))
		case *ast.RawHTML:
			for i := 0; i < v.Segments.Len(); i++ {
				seg := v.Segments.At(i)
				emit(string(seg.Value(c.src)), ann, link)
			}
		case *extast.TaskCheckBox:
		default:
			c.walkInline(n, ann, link, out)
		}
	}
}

// linkOr returns dest when Notion accepts it as a link URL, fallback otherwise.
func linkOr(dest, fallback string) string {
	lower := strings.ToLower(dest)
	for _, scheme := range []string{"http://", "https://", "mailto:"} {
		if strings.HasPrefix(lower, scheme) {
			return dest
		}
	}
	return fallback
}

func codeBlocks(code, lang string) []Block {
	code = strings.TrimSuffix(code, "\n")
	parts := splitText(code, MaxRichTextLength)
	if len(parts) == 0 {
		return []Block{{Type: Code, Language: lang}}
	}
	var out []Block
	for start := 0; start < len(parts); start += MaxRichTextPerBlock {
		end := min(start+MaxRichTextPerBlock, len(parts))
		b := Block{Type: Code, Language: lang}
		for _, p := range parts[start:end] {
			b.RichText = append(b.RichText, RichText{Content: p})
		}
		out = append(out, b)
	}
	return out
}

func blank(rt []RichText) bool {
	for _, r := range rt {
		if strings.TrimSpace(r.Content) != "" {
			return false
		}
	}
	return true
}
