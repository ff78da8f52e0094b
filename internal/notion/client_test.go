package notion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("secret-token", Options{
		BaseURL:    srv.URL,
		RetryDelay: time.Millisecond,
		HTTPClient: srv.Client(),
	})
}

func TestClient_SendsAuthAndVersionHeaders(t *testing.T) {
	var got struct {
		auth, version, method, path string
		body                        map[string]any
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got.auth = r.Header.Get("Authorization")
		got.version = r.Header.Get("Notion-Version")
		got.method = r.Method
		got.path = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &got.body)
		_, _ = w.Write([]byte(`{"object":"list","results":[]}`))
	})

	err := c.AppendChildren(context.Background(), "page-1", []Block{{Type: Paragraph, RichText: PlainText("hi")}})
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-token", got.auth)
	assert.Equal(t, DefaultAPIVersion, got.version)
	assert.Equal(t, http.MethodPatch, got.method)
	assert.Equal(t, "/blocks/page-1/children", got.path)
	require.Contains(t, got.body, "children")
	assert.Len(t, got.body["children"], 1)
}

func TestClient_RetriesRateLimitedRequests(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"object":"error","status":429,"code":"rate_limited","message":"slow down"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"p1","url":"https://notion.so/p1","properties":{"Name":{"type":"title","title":[{"plain_text":"Guide"}]}}}`))
	})

	page, err := c.RetrievePage(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, Page{ID: "p1", URL: "https://notion.so/p1", Title: "Guide"}, page)
}

func TestClient_DoesNotRetryValidationErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"object":"error","status":400,"code":"validation_error","message":"body failed validation"}`))
	})

	_, err := c.CreatePage(context.Background(), "parent", "Guide")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "validation_error", apiErr.Code)
	assert.False(t, apiErr.Retryable())
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_GivesUpAfterRetryAttempts(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	err := c.DeleteBlock(context.Background(), "b1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Equal(t, int32(DefaultRetryAttempts), calls.Load())
}

func TestClient_ListChildrenFollowsCursor(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("page_size"))
		if r.URL.Query().Get("start_cursor") == "" {
			_, _ = w.Write([]byte(`{"results":[{"id":"a","type":"paragraph"}],"has_more":true,"next_cursor":"c2"}`))
			return
		}
		assert.Equal(t, "c2", r.URL.Query().Get("start_cursor"))
		_, _ = w.Write([]byte(`{"results":[{"id":"b","type":"child_page","child_page":{"title":"Guide"}}],"has_more":false,"next_cursor":null}`))
	})

	blocks, err := c.ListChildren(context.Background(), "page")
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, "a", blocks[0].ID)
	require.NotNil(t, blocks[1].ChildPage)
	assert.Equal(t, "Guide", blocks[1].ChildPage.Title)
}

func TestClient_SearchParsesTitles(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "guide", body["query"])
		_, _ = w.Write([]byte(`{"results":[{"id":"p1","url":"u1","properties":{"title":{"type":"title","title":[{"plain_text":"Gu"},{"plain_text":"ide"}]}}}]}`))
	})

	pages, err := c.Search(context.Background(), "guide", 5)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "Guide", pages[0].Title)
}

func TestClient_StopsOnCancelledContext(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.DeleteBlock(ctx, "b1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls.Load())
}

func TestClient_RetriesSlowResponse(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(300 * time.Millisecond):
			}
		}
		_, _ = w.Write([]byte(`{"id":"p1","properties":{}}`))
	}))
	t.Cleanup(srv.Close)
	c := NewClient("secret-token", Options{
		BaseURL:    srv.URL,
		Timeout:    50 * time.Millisecond,
		RetryDelay: time.Millisecond,
		HTTPClient: srv.Client(),
	})
	assert.Zero(t, c.httpClient.Timeout)

	page, err := c.RetrievePage(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", page.ID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_TimeoutIsRetryableAPIError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	c := NewClient("secret-token", Options{
		BaseURL:       srv.URL,
		Timeout:       20 * time.Millisecond,
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
		HTTPClient:    srv.Client(),
	})

	err := c.DeleteBlock(context.Background(), "b1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.True(t, apiErr.TimedOut)
	assert.True(t, apiErr.Retryable())
	assert.Contains(t, apiErr.Error(), "timed out")
	assert.Equal(t, int32(2), calls.Load())
}

func TestSynchronizerAgainstHTTPClient(t *testing.T) {
	var appended atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/blocks/parent/children":
			_, _ = w.Write([]byte(`{"results":[],"has_more":false}`))
		case r.Method == http.MethodPost && r.URL.Path == "/pages":
			_, _ = w.Write([]byte(`{"id":"new-page","url":"https://notion.so/new-page"}`))
		case r.Method == http.MethodPatch && r.URL.Path == "/blocks/new-page/children":
			appended.Add(1)
			_, _ = w.Write([]byte(`{"results":[]}`))
		default:
			http.Error(w, `{"code":"object_not_found"}`, http.StatusNotFound)
		}
	})

	r, err := NewSynchronizer(c, "parent").Publish(context.Background(), guide(t), Target{})
	require.NoError(t, err)
	assert.Equal(t, "new-page", r.PageID)
	assert.Equal(t, "https://notion.so/new-page", r.URL)
	assert.True(t, r.Created)
	assert.Equal(t, int32(1), appended.Load())
}
