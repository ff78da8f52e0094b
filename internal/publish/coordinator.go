package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"jotdown/internal/book"
	"jotdown/internal/config"
	"jotdown/internal/content"
	"jotdown/internal/journal"
	"jotdown/internal/notion"
)

// Tool names exposed over MCP.
const (
	ToolCreateBook   = "create_mdbook"
	ToolPublishPage  = "publish_notion_page"
	ToolRetrievePage = "retrieve_page"
	ToolServeBook    = "serve_mdbook"
)

// ErrNotionDisabled is returned by Notion tools when no integration token is configured.
var ErrNotionDisabled = errors.New("notion is not configured: set NOTION_TOKEN")

// ErrPreviewDisabled is returned by serve_mdbook when no book compiler is configured.
var ErrPreviewDisabled = errors.New("book preview is not configured: set BOOK_COMPILER")

// TargetKind tells where a tree is published.
type TargetKind int

const (
	NewBook TargetKind = iota + 1
	NotionPage
)

// Target is a resolved publish destination. RootDirectory is relative to the
// configured book root.
type Target struct {
	Kind          TargetKind
	RootDirectory string
	PageID        string
	PageTitle     string
}

type bookRequest struct {
	content.RawTree
	Directory string `json:"directory,omitempty"`
}

type pageRequest struct {
	content.RawTree
	PageTitle string `json:"pageTitle,omitempty"`
	PageID    string `json:"pageId,omitempty"`
}

type serveRequest struct {
	Directory string `json:"directory,omitempty"`
	Title     string `json:"title,omitempty"`
}

type retrieveRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// Coordinator validates tool requests and routes them to the book publisher or the
// Notion synchronizer. It holds no per-request state and is safe for concurrent use.
type Coordinator struct {
	books    *book.Publisher
	bookRoot string
	preview  book.Previewer
	notion   *notion.Synchronizer
	journal  journal.Recorder
	content  content.Options
}

// Options wire a Coordinator. A nil Notion disables the Notion tools and a nil
// Preview disables serve_mdbook. A nil Journal records nothing.
type Options struct {
	Books    *book.Publisher
	BookRoot string
	Preview  book.Previewer
	Notion   *notion.Synchronizer
	Journal  journal.Recorder
	MaxDepth int
}

func NewCoordinator(opts Options) *Coordinator {
	c := &Coordinator{
		books:    opts.Books,
		bookRoot: opts.BookRoot,
		preview:  opts.Preview,
		notion:   opts.Notion,
		journal:  opts.Journal,
		content:  content.Options{MaxDepth: opts.MaxDepth},
	}
	if c.books == nil {
		c.books = &book.Publisher{Compiler: book.NopCompiler{}}
	}
	if c.journal == nil {
		c.journal = journal.Nop{}
	}
	return c
}

// FromConfig builds a Coordinator with the production collaborators.
func FromConfig(cfg *config.Config, rec journal.Recorder) *Coordinator {
	var (
		compiler book.Compiler = book.NopCompiler{}
		preview  book.Previewer
	)
	if cfg.BookCompiler != "" {
		compiler = &book.CommandCompiler{Path: cfg.BookCompiler, Args: cfg.BookCompilerArgs, Timeout: cfg.BookCompilerTimeout}
		preview = &book.CommandServer{Path: cfg.BookCompiler, Args: cfg.BookServeArgs}
	}

	var syncer *notion.Synchronizer
	if cfg.NotionEnabled() {
		client := notion.NewClient(cfg.NotionToken, notion.Options{
			BaseURL:       cfg.NotionBaseURL,
			APIVersion:    cfg.NotionVersion,
			Timeout:       cfg.NotionTimeout,
			RateLimit:     cfg.NotionRateLimit,
			RetryAttempts: cfg.NotionRetryAttempts,
			RetryDelay:    cfg.NotionRetryDelay,
		})
		syncer = notion.NewSynchronizer(client, cfg.NotionParentPageID)
		syncer.SetReferencePage(cfg.NotionReferencePage)
	} else {
		log.Printf("⚠️ NOTION_TOKEN not set, Notion tools will report errors")
	}

	return NewCoordinator(Options{
		Books:    &book.Publisher{Builder: book.Builder{Language: cfg.BookLanguage}, Compiler: compiler},
		BookRoot: cfg.BookRoot,
		Preview:  preview,
		Notion:   syncer,
		Journal:  rec,
		MaxDepth: cfg.MaxNestingDepth,
	})
}

// Dispatch runs one tool call. It never returns a Go error: every failure is
// described by the ToolResult.
func (c *Coordinator) Dispatch(ctx context.Context, tool string, raw json.RawMessage) ToolResult {
	if err := ctx.Err(); err != nil {
		return failure(tool, KindCancelled, err)
	}

	start := time.Now()
	log.Printf("🔧 Dispatching %s", tool)

	var (
		res      ToolResult
		sections int
	)
	switch tool {
	case ToolCreateBook:
		var req bookRequest
		tree, err := c.decodeTree(raw, &req, &req.RawTree)
		if err != nil {
			res = ToolResult{Tool: tool, Error: classify(ctx, err, KindValidation)}
			break
		}
		sections = tree.Len()
		res = c.Publish(ctx, tree, Target{Kind: NewBook, RootDirectory: req.Directory})
	case ToolPublishPage:
		var req pageRequest
		tree, err := c.decodeTree(raw, &req, &req.RawTree)
		if err != nil {
			res = ToolResult{Tool: tool, Error: classify(ctx, err, KindValidation)}
			break
		}
		sections = tree.Len()
		res = c.Publish(ctx, tree, Target{Kind: NotionPage, PageID: req.PageID, PageTitle: req.PageTitle})
	case ToolRetrievePage:
		res = c.retrieve(ctx, raw)
	case ToolServeBook:
		res = c.serveBook(ctx, raw)
	default:
		res = failure(tool, KindUnknownTool, fmt.Errorf("unknown tool %q", tool))
	}

	c.record(res, sections, time.Since(start))
	if res.Error != nil {
		log.Printf("❌ %s failed (%s): %s", tool, res.Error.Kind, res.Error.Message)
	} else {
		log.Printf("✅ %s finished in %s", tool, time.Since(start).Round(time.Millisecond))
	}
	return res
}

func (c *Coordinator) decodeTree(raw json.RawMessage, req any, tree *content.RawTree) (*content.Tree, error) {
	if err := content.DecodeStrict(raw, req); err != nil {
		return nil, err
	}
	return content.Validate(*tree, c.content)
}

// Publish sends an already validated tree to target.
func (c *Coordinator) Publish(ctx context.Context, tree *content.Tree, target Target) ToolResult {
	switch target.Kind {
	case NewBook:
		return c.publishBook(ctx, tree, target.RootDirectory)
	case NotionPage:
		return c.publishPage(ctx, tree, notion.Target{PageID: target.PageID, PageTitle: target.PageTitle})
	}
	return failure("", KindValidation, fmt.Errorf("unknown publish target kind %d", target.Kind))
}

func (c *Coordinator) publishBook(ctx context.Context, tree *content.Tree, directory string) ToolResult {
	res := ToolResult{Tool: ToolCreateBook, Title: tree.Title()}

	dir, err := c.BookDirectory(directory, tree.Title())
	if err != nil {
		res.Error = classify(ctx, err, KindValidation)
		return res
	}
	res.Directory = dir

	out, err := c.books.Publish(ctx, tree, dir)
	res.Files = out.Files
	if err != nil {
		res.Error = classify(ctx, err, KindFilesystem)
		res.Error.Files = out.Files
		return res
	}
	res.OK = true
	return res
}

// BookDirectory resolves a requested book directory against the book root. An
// empty request uses the slug of title. The result must lie strictly inside the root.
func (c *Coordinator) BookDirectory(requested, title string) (string, error) {
	root, err := filepath.Abs(c.bookRoot)
	if err != nil {
		return "", &book.FilesystemError{Op: "resolve", Path: c.bookRoot, Err: err}
	}

	requested = strings.TrimSpace(requested)
	if requested == "" {
		requested = book.Slugify(title)
	}
	dir := requested
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	dir = filepath.Clean(dir)

	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &content.ValidationError{Problems: []content.Problem{{
			Path:   "directory",
			Reason: fmt.Sprintf("%q must be a directory inside the book root %s", requested, root),
		}}}
	}
	return dir, nil
}

// serveBook starts a preview server for a book written by create_mdbook.
func (c *Coordinator) serveBook(ctx context.Context, raw json.RawMessage) ToolResult {
	res := ToolResult{Tool: ToolServeBook}

	var req serveRequest
	if err := content.DecodeStrict(raw, &req); err != nil {
		res.Error = classify(ctx, err, KindValidation)
		return res
	}
	if strings.TrimSpace(req.Directory) == "" && strings.TrimSpace(req.Title) == "" {
		res.Error = classify(ctx, &content.ValidationError{Problems: []content.Problem{{Path: "directory", Reason: "directory or title is required"}}}, KindValidation)
		return res
	}
	res.Title = req.Title

	dir, err := c.BookDirectory(req.Directory, req.Title)
	if err != nil {
		res.Error = classify(ctx, err, KindValidation)
		return res
	}
	res.Directory = dir
	if c.preview == nil {
		res.Error = classify(ctx, ErrPreviewDisabled, KindCompiler)
		return res
	}

	preview, err := c.preview.Serve(ctx, dir)
	if err != nil {
		res.Error = classify(ctx, err, KindCompiler)
		return res
	}
	res.OK = true
	res.PID = preview.PID
	return res
}

func (c *Coordinator) publishPage(ctx context.Context, tree *content.Tree, target notion.Target) ToolResult {
	res := ToolResult{Tool: ToolPublishPage, Title: tree.Title()}
	if c.notion == nil {
		res.Error = classify(ctx, ErrNotionDisabled, KindNotionAPI)
		return res
	}

	receipt, err := c.notion.Publish(ctx, tree, target)
	if err != nil {
		res.Error = classify(ctx, err, KindNotionAPI)
		return res
	}
	res.OK = true
	res.PageID = receipt.PageID
	res.PageURL = receipt.URL
	res.Created = receipt.Created
	res.Blocks = receipt.Blocks
	return res
}

func (c *Coordinator) retrieve(ctx context.Context, raw json.RawMessage) ToolResult {
	res := ToolResult{Tool: ToolRetrievePage}

	var req retrieveRequest
	if err := content.DecodeStrict(raw, &req); err != nil {
		res.Error = classify(ctx, err, KindValidation)
		return res
	}
	if strings.TrimSpace(req.Query) == "" {
		res.Error = classify(ctx, &content.ValidationError{Problems: []content.Problem{{Path: "query", Reason: "must not be empty"}}}, KindValidation)
		return res
	}
	if c.notion == nil {
		res.Error = classify(ctx, ErrNotionDisabled, KindNotionAPI)
		return res
	}

	pages, err := c.notion.Lookup(ctx, req.Query, req.Limit)
	if err != nil {
		res.Error = classify(ctx, err, KindNotionAPI)
		return res
	}
	res.OK = true
	res.Title = req.Query
	res.Pages = make([]PageRef, 0, len(pages))
	for _, p := range pages {
		res.Pages = append(res.Pages, PageRef{ID: p.ID, Title: p.Title, URL: p.URL})
	}
	return res
}

func (c *Coordinator) record(res ToolResult, sections int, elapsed time.Duration) {
	ev := journal.Event{
		Tool:       res.Tool,
		Title:      res.Title,
		OK:         res.OK,
		Sections:   sections,
		Files:      len(res.Files),
		Blocks:     res.Blocks,
		DurationMS: elapsed.Milliseconds(),
	}
	switch {
	case res.Directory != "":
		ev.Target = res.Directory
	case res.PageID != "":
		ev.Target = res.PageID
	}
	if res.Error != nil {
		ev.ErrorKind = string(res.Error.Kind)
		ev.Message = res.Error.Message
	}
	if err := c.journal.Append(ev); err != nil {
		log.Printf("⚠️ Failed to record journal event: %v", err)
	}
}
