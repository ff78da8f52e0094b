package notion

import (
	"encoding/json"
	"strings"
)

// Notion API limits.
const (
	MaxRichTextLength    = 2000
	MaxRichTextPerBlock  = 100
	MaxChildrenPerBlock  = 100
	MaxBlocksPerAppend   = 100
	MaxElementsPerAppend = 1000
	// MaxNestingLevel is how many levels of children may hang below a top-level
	// block in a single append request.
	MaxNestingLevel = 2
)

// BlockType is the Notion block type tag.
type BlockType string

const (
	Paragraph        BlockType = "paragraph"
	Heading1         BlockType = "heading_1"
	Heading2         BlockType = "heading_2"
	Heading3         BlockType = "heading_3"
	BulletedListItem BlockType = "bulleted_list_item"
	NumberedListItem BlockType = "numbered_list_item"
	ToDo             BlockType = "to_do"
	Quote            BlockType = "quote"
	Code             BlockType = "code"
	Divider          BlockType = "divider"
)

// HeadingType returns the heading block type for level, capped to 1..3.
func HeadingType(level int) BlockType {
	switch {
	case level <= 1:
		return Heading1
	case level == 2:
		return Heading2
	default:
		return Heading3
	}
}

// Annotations are the inline styles of a rich text run.
type Annotations struct {
	Bold          bool `json:"bold,omitempty"`
	Italic        bool `json:"italic,omitempty"`
	Strikethrough bool `json:"strikethrough,omitempty"`
	Code          bool `json:"code,omitempty"`
}

func (a Annotations) zero() bool { return a == Annotations{} }

// RichText is one styled text run.
type RichText struct {
	Content     string
	Link        string
	Annotations Annotations
}

type richTextJSON struct {
	Type        string       `json:"type"`
	Text        textJSON     `json:"text"`
	Annotations *Annotations `json:"annotations,omitempty"`
}

type textJSON struct {
	Content string    `json:"content"`
	Link    *linkJSON `json:"link,omitempty"`
}

type linkJSON struct {
	URL string `json:"url"`
}

func (r RichText) MarshalJSON() ([]byte, error) {
	out := richTextJSON{Type: "text", Text: textJSON{Content: r.Content}}
	if r.Link != "" {
		out.Text.Link = &linkJSON{URL: r.Link}
	}
	if !r.Annotations.zero() {
		a := r.Annotations
		out.Annotations = &a
	}
	return json.Marshal(out)
}

// PlainText is a convenience for an unstyled run.
func PlainText(s string) []RichText {
	if s == "" {
		return nil
	}
	return []RichText{{Content: s}}
}

// Block is a Notion block descriptor ready to be appended to a page.
type Block struct {
	Type     BlockType
	RichText []RichText
	Language string
	Checked  bool
	Children []Block
}

func (b Block) MarshalJSON() ([]byte, error) {
	body := map[string]any{}
	if b.Type != Divider {
		rt := b.RichText
		if rt == nil {
			rt = []RichText{}
		}
		body["rich_text"] = rt
	}
	if b.Type == Code {
		lang := b.Language
		if lang == "" {
			lang = PlainTextLanguage
		}
		body["language"] = lang
	}
	if b.Type == ToDo {
		body["checked"] = b.Checked
	}
	if len(b.Children) > 0 {
		body["children"] = b.Children
	}
	return json.Marshal(map[string]any{
		"object":       "block",
		"type":         b.Type,
		string(b.Type): body,
	})
}

// Text returns the concatenated plain text of the block's rich text.
func (b Block) Text() string {
	var sb strings.Builder
	for _, r := range b.RichText {
		sb.WriteString(r.Content)
	}
	return sb.String()
}

// weight is the number of block elements the block contributes to a request.
func (b Block) weight() int {
	w := 1
	for _, c := range b.Children {
		w += c.weight()
	}
	return w
}

// CountBlocks returns the number of block elements including nested children.
func CountBlocks(blocks []Block) int {
	n := 0
	for _, b := range blocks {
		n += b.weight()
	}
	return n
}

// Chunk groups blocks into ordered append requests holding at most maxTop top-level
// blocks and at most maxTotal block elements. A single block heavier than maxTotal
// travels alone.
func Chunk(blocks []Block, maxTop, maxTotal int) [][]Block {
	var (
		chunks  [][]Block
		current []Block
		total   int
	)
	for _, b := range blocks {
		w := b.weight()
		if len(current) > 0 && (len(current) >= maxTop || total+w > maxTotal) {
			chunks = append(chunks, current)
			current, total = nil, 0
		}
		current = append(current, b)
		total += w
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

// utf16Len counts text length the way the Notion API does.
func utf16Len(r rune) int {
	if r >= 0x10000 {
		return 2
	}
	return 1
}

// normalizeRichText merges adjacent runs with identical styling and splits runs
// longer than MaxRichTextLength.
func normalizeRichText(runs []RichText) []RichText {
	var merged []RichText
	for _, r := range runs {
		if r.Content == "" {
			continue
		}
		if n := len(merged); n > 0 && merged[n-1].Link == r.Link && merged[n-1].Annotations == r.Annotations {
			merged[n-1].Content += r.Content
			continue
		}
		merged = append(merged, r)
	}

	var out []RichText
	for _, r := range merged {
		for _, part := range splitText(r.Content, MaxRichTextLength) {
			piece := r
			piece.Content = part
			out = append(out, piece)
		}
	}
	return out
}

func splitText(s string, limit int) []string {
	var (
		parts []string
		sb    strings.Builder
		n     int
	)
	for _, r := range s {
		l := utf16Len(r)
		if n+l > limit {
			parts = append(parts, sb.String())
			sb.Reset()
			n = 0
		}
		sb.WriteRune(r)
		n += l
	}
	if sb.Len() > 0 {
		parts = append(parts, sb.String())
	}
	return parts
}

// splitBlock breaks a block with too many rich text runs into several blocks of the
// same type. Children stay with the last piece.
func splitBlock(b Block) []Block {
	if len(b.RichText) <= MaxRichTextPerBlock {
		return []Block{b}
	}
	var out []Block
	for start := 0; start < len(b.RichText); start += MaxRichTextPerBlock {
		end := min(start+MaxRichTextPerBlock, len(b.RichText))
		piece := Block{Type: b.Type, RichText: b.RichText[start:end], Language: b.Language, Checked: b.Checked}
		out = append(out, piece)
	}
	out[len(out)-1].Children = b.Children
	return out
}
