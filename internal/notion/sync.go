package notion

import (
	"context"
	"errors"
	"fmt"
	"log"

	"jotdown/internal/content"
)

// ErrNoParentPage means a page had to be created or looked up by title but no
// parent page is configured and no reference page was found.
var ErrNoParentPage = errors.New("notion: parent page id is not configured")

// DefaultReferencePage is the title of the page used as parent when no parent
// page id is configured.
const DefaultReferencePage = "Jot It Down"

// ErrPageNotFound means an explicit page id points at an archived page.
var ErrPageNotFound = errors.New("notion: target page not found")

// Target selects the page a tree is published to. PageID wins over PageTitle;
// with neither set the tree title is used to find or create a page under the
// configured parent.
type Target struct {
	PageID    string
	PageTitle string
}

// Receipt describes a completed publish.
type Receipt struct {
	PageID   string `json:"pageId"`
	URL      string `json:"url,omitempty"`
	Created  bool   `json:"created"`
	Archived int    `json:"archivedBlocks"`
	Blocks   int    `json:"blocks"`
	Chunks   int    `json:"chunks"`
}

// PartialPublishError is returned when the page was mutated before a failure.
// Appended and Total count append requests.
type PartialPublishError struct {
	PageID         string
	Created        bool
	Archived       int
	Appended       int
	Total          int
	BlocksAppended int
	Err            error
}

func (e *PartialPublishError) Error() string {
	return fmt.Sprintf("partial publish to page %s: appended %d of %d chunks (%d blocks), archived %d blocks: %v",
		e.PageID, e.Appended, e.Total, e.BlocksAppended, e.Archived, e.Err)
}

func (e *PartialPublishError) Unwrap() error { return e.Err }

// Synchronizer publishes content trees as Notion pages with replace semantics.
type Synchronizer struct {
	api           API
	parentPageID  string
	referencePage string
}

func NewSynchronizer(api API, parentPageID string) *Synchronizer {
	return &Synchronizer{api: api, parentPageID: parentPageID, referencePage: DefaultReferencePage}
}

// SetReferencePage sets the title of the page searched for when no parent page
// id is configured. An empty title disables the search.
func (s *Synchronizer) SetReferencePage(title string) {
	s.referencePage = title
}

// Publish replaces the body of the target page with the flattened tree. Errors
// before the first mutation are returned as they are; later ones are wrapped in
// a *PartialPublishError.
func (s *Synchronizer) Publish(ctx context.Context, tree *content.Tree, target Target) (Receipt, error) {
	blocks := Flatten(tree)
	chunks := Chunk(blocks, MaxBlocksPerAppend, MaxElementsPerAppend)

	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}

	title := target.PageTitle
	if title == "" {
		title = tree.Title()
	}
	page, parentID, found, err := s.resolve(ctx, title, target)
	if err != nil {
		return Receipt{}, err
	}

	receipt := Receipt{PageID: page.ID, URL: page.URL, Blocks: CountBlocks(blocks), Chunks: len(chunks)}
	appended, blocksAppended := 0, 0
	fail := func(err error) (Receipt, error) {
		if !receipt.Created && receipt.Archived == 0 && appended == 0 {
			return Receipt{}, err
		}
		return receipt, &PartialPublishError{
			PageID:         receipt.PageID,
			Created:        receipt.Created,
			Archived:       receipt.Archived,
			Appended:       appended,
			Total:          len(chunks),
			BlocksAppended: blocksAppended,
			Err:            err,
		}
	}

	if !found {
		created, err := s.api.CreatePage(ctx, parentID, title)
		if err != nil {
			return Receipt{}, fmt.Errorf("failed to create page %q: %w", title, err)
		}
		receipt.PageID, receipt.URL, receipt.Created = created.ID, created.URL, true
		log.Printf("📄 Created Notion page %q (%s)", title, created.ID)
	} else {
		existing, err := s.api.ListChildren(ctx, page.ID)
		if err != nil {
			return Receipt{}, fmt.Errorf("failed to list page blocks: %w", err)
		}
		for _, b := range existing {
			// sub-pages and databases are not part of the published body
			if b.Archived || b.Type == "child_page" || b.Type == "child_database" {
				continue
			}
			if err := ctx.Err(); err != nil {
				return fail(err)
			}
			if err := s.api.DeleteBlock(ctx, b.ID); err != nil {
				return fail(fmt.Errorf("failed to archive block %s: %w", b.ID, err))
			}
			receipt.Archived++
		}
	}

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		if err := s.api.AppendChildren(ctx, receipt.PageID, chunk); err != nil {
			return fail(fmt.Errorf("failed to append chunk %d/%d: %w", i+1, len(chunks), err))
		}
		appended++
		blocksAppended += CountBlocks(chunk)
	}

	log.Printf("✅ Published %d blocks in %d chunks to Notion page %s", receipt.Blocks, receipt.Chunks, receipt.PageID)
	return receipt, nil
}

// resolve finds the target page. found is false when a new page must be
// created under parentID.
func (s *Synchronizer) resolve(ctx context.Context, title string, target Target) (page Page, parentID string, found bool, err error) {
	if target.PageID != "" {
		page, err := s.api.RetrievePage(ctx, target.PageID)
		if err != nil {
			return Page{}, "", false, fmt.Errorf("failed to retrieve page %s: %w", target.PageID, err)
		}
		if page.Archived {
			return Page{}, "", false, fmt.Errorf("%w: %s is archived", ErrPageNotFound, target.PageID)
		}
		return page, "", true, nil
	}

	parentID, err = s.parent(ctx)
	if err != nil {
		return Page{}, "", false, err
	}
	children, err := s.api.ListChildren(ctx, parentID)
	if err != nil {
		return Page{}, "", false, fmt.Errorf("failed to list parent page children: %w", err)
	}
	want := content.NormalizeTitle(title)
	for _, b := range children {
		if b.Archived || b.ChildPage == nil || content.NormalizeTitle(b.ChildPage.Title) != want {
			continue
		}
		page, err := s.api.RetrievePage(ctx, b.ID)
		if err != nil {
			return Page{}, "", false, fmt.Errorf("failed to retrieve page %s: %w", b.ID, err)
		}
		return page, parentID, true, nil
	}
	return Page{}, parentID, false, nil
}

// parent returns the configured parent page id or, without one, the id of the
// first live page whose title matches the reference page title.
func (s *Synchronizer) parent(ctx context.Context) (string, error) {
	if s.parentPageID != "" {
		return s.parentPageID, nil
	}
	if s.referencePage == "" {
		return "", ErrNoParentPage
	}
	pages, err := s.api.Search(ctx, s.referencePage, 100)
	if err != nil {
		return "", fmt.Errorf("failed to search for reference page %q: %w", s.referencePage, err)
	}
	want := content.NormalizeTitle(s.referencePage)
	for _, p := range pages {
		if !p.Archived && content.NormalizeTitle(p.Title) == want {
			log.Printf("📌 Using reference page %q (%s) as parent", p.Title, p.ID)
			return p.ID, nil
		}
	}
	return "", fmt.Errorf("%w: reference page %q not found", ErrNoParentPage, s.referencePage)
}

// Lookup searches the workspace for pages matching query.
func (s *Synchronizer) Lookup(ctx context.Context, query string, limit int) ([]Page, error) {
	pages, err := s.api.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search pages: %w", err)
	}
	return pages, nil
}
