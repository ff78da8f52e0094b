package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"jotdown/internal/book"
	"jotdown/internal/content"
	"jotdown/internal/notion"
)

// Kind classifies a failed tool call.
type Kind string

const (
	KindValidation  Kind = "ValidationError"
	KindFilesystem  Kind = "FilesystemError"
	KindCompiler    Kind = "CompilerError"
	KindNotionAPI   Kind = "NotionApiError"
	KindPartial     Kind = "PartialPublish"
	KindCancelled   Kind = "Cancelled"
	KindUnknownTool Kind = "UnknownTool"
)

// ErrorPayload is the structured error of a ToolResult.
type ErrorPayload struct {
	Kind           Kind              `json:"kind"`
	Message        string            `json:"message"`
	Problems       []content.Problem `json:"problems,omitempty"`
	Files          []string          `json:"files,omitempty"`
	PageID         string            `json:"pageId,omitempty"`
	Appended       int               `json:"appended"`
	Total          int               `json:"total"`
	BlocksAppended int               `json:"blocksAppended"`
}

// PageRef identifies a Notion page.
type PageRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// ToolResult is the outcome of one dispatched tool call.
type ToolResult struct {
	OK        bool          `json:"ok"`
	Tool      string        `json:"tool"`
	Title     string        `json:"title,omitempty"`
	Directory string        `json:"directory,omitempty"`
	Files     []string      `json:"files,omitempty"`
	PageID    string        `json:"pageId,omitempty"`
	PageURL   string        `json:"pageUrl,omitempty"`
	Created   bool          `json:"created,omitempty"`
	Blocks    int           `json:"blocks,omitempty"`
	Pages     []PageRef     `json:"pages,omitempty"`
	PID       int           `json:"pid,omitempty"`
	Error     *ErrorPayload `json:"error,omitempty"`
}

// Text renders the result for humans and agents reading tool output.
func (r ToolResult) Text() string {
	if r.Error != nil {
		var sb strings.Builder
		fmt.Fprintf(&sb, "❌ %s: %s", r.Error.Kind, r.Error.Message)
		for _, p := range r.Error.Problems {
			if p.Path == "" {
				continue
			}
			fmt.Fprintf(&sb, "\n- %s: %s", p.Path, p.Reason)
		}
		if r.Error.Kind == KindPartial {
			fmt.Fprintf(&sb, "\n⚠️ Page %s was left partially updated (%d of %d chunks, %d blocks appended); publish again to repair it.",
				r.Error.PageID, r.Error.Appended, r.Error.Total, r.Error.BlocksAppended)
		}
		if len(r.Error.Files) > 0 {
			fmt.Fprintf(&sb, "\n📁 %d files were written before the failure.", len(r.Error.Files))
		}
		return sb.String()
	}

	switch r.Tool {
	case ToolCreateBook:
		return fmt.Sprintf("✅ Book %q written to %s (%d files)", r.Title, r.Directory, len(r.Files))
	case ToolPublishPage:
		verb := "Updated"
		if r.Created {
			verb = "Created"
		}
		msg := fmt.Sprintf("✅ %s Notion page %q (%s) with %d blocks", verb, r.Title, r.PageID, r.Blocks)
		if r.PageURL != "" {
			msg += "\n🔗 " + r.PageURL
		}
		return msg
	case ToolServeBook:
		return fmt.Sprintf("🌐 Serving book in %s (pid %d)", r.Directory, r.PID)
	case ToolRetrievePage:
		if len(r.Pages) == 0 {
			return "🔍 No pages found"
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "🔍 Found %d pages:", len(r.Pages))
		for _, p := range r.Pages {
			fmt.Fprintf(&sb, "\n- %s (ID: %s)", p.Title, p.ID)
			if p.URL != "" {
				fmt.Fprintf(&sb, " %s", p.URL)
			}
		}
		return sb.String()
	}
	return "✅ Done"
}

func failure(tool string, kind Kind, err error) ToolResult {
	return ToolResult{Tool: tool, Error: &ErrorPayload{Kind: kind, Message: err.Error()}}
}

// classify maps an error onto its payload; fallback is used for errors no
// package-level type describes. Context errors count as cancellation only
// when ctx itself is done.
func classify(ctx context.Context, err error, fallback Kind) *ErrorPayload {
	p := &ErrorPayload{Kind: fallback, Message: err.Error()}

	var (
		verr    *content.ValidationError
		partial *notion.PartialPublishError
		cerr    *book.CompilerError
		fserr   *book.FilesystemError
		apiErr  *notion.APIError
	)
	switch {
	case errors.As(err, &verr):
		p.Kind = KindValidation
		p.Problems = verr.Problems
	case errors.As(err, &partial):
		p.Kind = KindPartial
		p.PageID = partial.PageID
		p.Appended = partial.Appended
		p.Total = partial.Total
		p.BlocksAppended = partial.BlocksAppended
	case errors.As(err, &cerr):
		p.Kind = KindCompiler
	case errors.As(err, &fserr):
		p.Kind = KindFilesystem
	case ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		p.Kind = KindCancelled
	case errors.As(err, &apiErr):
		p.Kind = KindNotionAPI
	}
	return p
}
