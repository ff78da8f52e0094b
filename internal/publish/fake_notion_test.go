package publish

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type fakeBlock struct {
	ID  string
	Raw json.RawMessage
}

type fakePage struct {
	ID     string
	Title  string
	Parent string
	Blocks []fakeBlock
}

// fakeNotion is an in-memory stand-in for the Notion REST endpoints jotdown uses.
type fakeNotion struct {
	mu        sync.Mutex
	srv       *httptest.Server
	nextID    int
	pages     map[string]*fakePage
	order     []string
	patches   int
	failPatch int // 1-based PATCH call that is rejected, 0 for none
}

func newFakeNotion(t *testing.T) *fakeNotion {
	t.Helper()
	f := &fakeNotion{pages: map[string]*fakePage{}}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeNotion) addPage(id, title, parent string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[id] = &fakePage{ID: id, Title: title, Parent: parent}
	f.order = append(f.order, id)
}

func (f *fakeNotion) blocks(pageID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, b := range f.pages[pageID].Blocks {
		out = append(out, string(b.Raw))
	}
	return out
}

func (f *fakeNotion) pagesUnder(parent string) []*fakePage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*fakePage
	for _, id := range f.order {
		if p := f.pages[id]; p.Parent == parent {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeNotion) id() string {
	f.nextID++
	return fmt.Sprintf("id-%d", f.nextID)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]any{"object": "error", "status": 404, "code": "object_not_found", "message": "not found"})
}

func (f *fakeNotion) pageJSON(p *fakePage) map[string]any {
	return map[string]any{
		"id":  p.ID,
		"url": "https://notion.so/" + p.ID,
		"properties": map[string]any{
			"title": map[string]any{"type": "title", "title": []map[string]any{{"plain_text": p.Title}}},
		},
	}
}

func (f *fakeNotion) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/pages":
		var body struct {
			Parent struct {
				PageID string `json:"page_id"`
			} `json:"parent"`
			Properties struct {
				Title struct {
					Title []struct {
						Text struct {
							Content string `json:"content"`
						} `json:"text"`
					} `json:"title"`
				} `json:"title"`
			} `json:"properties"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"code": "invalid_json", "message": err.Error()})
			return
		}
		var title string
		for _, t := range body.Properties.Title.Title {
			title += t.Text.Content
		}
		p := &fakePage{ID: f.id(), Title: title, Parent: body.Parent.PageID}
		f.pages[p.ID] = p
		f.order = append(f.order, p.ID)
		writeJSON(w, http.StatusOK, f.pageJSON(p))

	case r.Method == http.MethodGet && len(parts) == 2 && parts[0] == "pages":
		p, ok := f.pages[parts[1]]
		if !ok {
			notFound(w)
			return
		}
		writeJSON(w, http.StatusOK, f.pageJSON(p))

	case r.Method == http.MethodGet && len(parts) == 3 && parts[0] == "blocks" && parts[2] == "children":
		var results []map[string]any
		for _, id := range f.order {
			if p := f.pages[id]; p.Parent == parts[1] {
				results = append(results, map[string]any{"id": p.ID, "type": "child_page", "child_page": map[string]any{"title": p.Title}})
			}
		}
		if p, ok := f.pages[parts[1]]; ok {
			for _, b := range p.Blocks {
				results = append(results, map[string]any{"id": b.ID, "type": "paragraph"})
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"object": "list", "results": results, "has_more": false})

	case r.Method == http.MethodPatch && len(parts) == 3 && parts[0] == "blocks" && parts[2] == "children":
		f.patches++
		if f.patches == f.failPatch {
			writeJSON(w, http.StatusBadRequest, map[string]any{"code": "validation_error", "message": "injected failure"})
			return
		}
		p, ok := f.pages[parts[1]]
		if !ok {
			notFound(w)
			return
		}
		var body struct {
			Children []json.RawMessage `json:"children"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"code": "invalid_json", "message": err.Error()})
			return
		}
		for _, raw := range body.Children {
			p.Blocks = append(p.Blocks, fakeBlock{ID: f.id(), Raw: raw})
		}
		writeJSON(w, http.StatusOK, map[string]any{"object": "list", "results": []any{}})

	case r.Method == http.MethodDelete && len(parts) == 2 && parts[0] == "blocks":
		for _, p := range f.pages {
			for i, b := range p.Blocks {
				if b.ID == parts[1] {
					p.Blocks = append(p.Blocks[:i:i], p.Blocks[i+1:]...)
					writeJSON(w, http.StatusOK, map[string]any{"id": b.ID, "archived": true})
					return
				}
			}
		}
		notFound(w)

	case r.Method == http.MethodPost && r.URL.Path == "/search":
		var body struct {
			Query string `json:"query"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		var results []map[string]any
		for _, id := range f.order {
			p := f.pages[id]
			if strings.Contains(strings.ToLower(p.Title), strings.ToLower(body.Query)) {
				results = append(results, f.pageJSON(p))
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"object": "list", "results": results})

	default:
		notFound(w)
	}
}
