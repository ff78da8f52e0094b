package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL       = "https://api.notion.com/v1"
	DefaultAPIVersion    = "2022-06-28"
	DefaultTimeout       = 30 * time.Second
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 500 * time.Millisecond
	maxRetryDelay        = 10 * time.Second
)

// Options configure a Client. Zero values fall back to the defaults above.
type Options struct {
	BaseURL       string
	APIVersion    string
	Timeout       time.Duration
	RateLimit     float64 // requests per second, 0 disables limiting
	RetryAttempts uint
	RetryDelay    time.Duration
	HTTPClient    *http.Client
}

// APIError is a failed Notion API call.
type APIError struct {
	Method     string
	Endpoint   string
	Status     int
	Code       string
	Message    string
	RetryAfter time.Duration
	// TimedOut marks an attempt that hit the per-request timeout while the
	// caller's context was still live.
	TimedOut bool
	Err      error
}

func (e *APIError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("notion %s %s: request timed out: %v", e.Method, e.Endpoint, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("notion %s %s: %v", e.Method, e.Endpoint, e.Err)
	}
	msg := fmt.Sprintf("notion %s %s: status %d", e.Method, e.Endpoint, e.Status)
	if e.Code != "" {
		msg += " " + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *APIError) Unwrap() error { return e.Err }

// Retryable reports whether repeating the request may succeed.
func (e *APIError) Retryable() bool {
	if e.TimedOut {
		return true
	}
	if e.Err != nil {
		return !errors.Is(e.Err, context.Canceled) && !errors.Is(e.Err, context.DeadlineExceeded)
	}
	return e.Status == http.StatusTooManyRequests || e.Status == http.StatusConflict || e.Status >= 500
}

// Page is the subset of a Notion page object jotdown reads.
type Page struct {
	ID       string
	URL      string
	Title    string
	Archived bool
}

type pageJSON struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	Archived   bool   `json:"archived"`
	Properties map[string]struct {
		Type  string `json:"type"`
		Title []struct {
			PlainText string `json:"plain_text"`
		} `json:"title"`
	} `json:"properties"`
}

func (p pageJSON) page() Page {
	out := Page{ID: p.ID, URL: p.URL, Archived: p.Archived}
	for _, prop := range p.Properties {
		if prop.Type != "title" {
			continue
		}
		for _, t := range prop.Title {
			out.Title += t.PlainText
		}
	}
	return out
}

// ChildBlock is an existing block as listed under a page.
type ChildBlock struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Archived  bool       `json:"archived"`
	ChildPage *ChildPage `json:"child_page,omitempty"`
}

type ChildPage struct {
	Title string `json:"title"`
}

// API is the slice of the Notion REST API the synchronizer needs.
type API interface {
	CreatePage(ctx context.Context, parentID, title string) (Page, error)
	RetrievePage(ctx context.Context, pageID string) (Page, error)
	ListChildren(ctx context.Context, blockID string) ([]ChildBlock, error)
	AppendChildren(ctx context.Context, blockID string, blocks []Block) error
	DeleteBlock(ctx context.Context, blockID string) error
	Search(ctx context.Context, query string, limit int) ([]Page, error)
}

// Client talks to the Notion REST API with bearer auth, client-side rate
// limiting and retries on 429/5xx.
type Client struct {
	baseURL    string
	apiVersion string
	httpClient *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
	attempts   uint
	delay      time.Duration
}

// NewClient creates a Notion API client authenticated with an integration token.
func NewClient(token string, opts Options) *Client {
	c := &Client{
		baseURL:    opts.BaseURL,
		apiVersion: opts.APIVersion,
		timeout:    opts.Timeout,
		attempts:   opts.RetryAttempts,
		delay:      opts.RetryDelay,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.apiVersion == "" {
		c.apiVersion = DefaultAPIVersion
	}
	if c.attempts == 0 {
		c.attempts = DefaultRetryAttempts
	}
	if c.delay <= 0 {
		c.delay = DefaultRetryDelay
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	ctx := context.Background()
	if opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
	}
	c.httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
	return c
}

func (c *Client) CreatePage(ctx context.Context, parentID, title string) (Page, error) {
	body := map[string]any{
		"parent": map[string]any{"type": "page_id", "page_id": parentID},
		"properties": map[string]any{
			"title": map[string]any{"title": normalizeRichText(PlainText(title))},
		},
	}
	var out pageJSON
	if err := c.do(ctx, http.MethodPost, "/pages", body, &out); err != nil {
		return Page{}, err
	}
	return out.page(), nil
}

func (c *Client) RetrievePage(ctx context.Context, pageID string) (Page, error) {
	var out pageJSON
	if err := c.do(ctx, http.MethodGet, "/pages/"+url.PathEscape(pageID), nil, &out); err != nil {
		return Page{}, err
	}
	return out.page(), nil
}

// ListChildren returns every direct child block, following pagination.
func (c *Client) ListChildren(ctx context.Context, blockID string) ([]ChildBlock, error) {
	var (
		all    []ChildBlock
		cursor string
	)
	for {
		q := url.Values{"page_size": {"100"}}
		if cursor != "" {
			q.Set("start_cursor", cursor)
		}
		var page struct {
			Results    []ChildBlock `json:"results"`
			HasMore    bool         `json:"has_more"`
			NextCursor string       `json:"next_cursor"`
		}
		endpoint := "/blocks/" + url.PathEscape(blockID) + "/children?" + q.Encode()
		if err := c.do(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Results...)
		if !page.HasMore || page.NextCursor == "" {
			return all, nil
		}
		cursor = page.NextCursor
	}
}

func (c *Client) AppendChildren(ctx context.Context, blockID string, blocks []Block) error {
	return c.do(ctx, http.MethodPatch, "/blocks/"+url.PathEscape(blockID)+"/children", map[string]any{"children": blocks}, nil)
}

func (c *Client) DeleteBlock(ctx context.Context, blockID string) error {
	return c.do(ctx, http.MethodDelete, "/blocks/"+url.PathEscape(blockID), nil, nil)
}

func (c *Client) Search(ctx context.Context, query string, limit int) ([]Page, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	body := map[string]any{
		"query":     query,
		"page_size": limit,
		"filter":    map[string]any{"property": "object", "value": "page"},
	}
	var out struct {
		Results []pageJSON `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, "/search", body, &out); err != nil {
		return nil, err
	}
	pages := make([]Page, 0, len(out.Results))
	for _, p := range out.Results {
		pages = append(pages, p.page())
	}
	return pages, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	return retry.Do(
		func() error { return c.once(ctx, method, endpoint, payload, out) },
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.MaxDelay(maxRetryDelay),
		retry.DelayType(retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var apiErr *APIError
			return errors.As(err, &apiErr) && apiErr.Retryable()
		}),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("🔁 Notion %s %s attempt %d failed: %v", method, endpoint, n+1, err)
		}),
	)
}

// retryDelay honours Retry-After when the server sent one.
func retryDelay(n uint, err error, config *retry.Config) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return min(apiErr.RetryAfter, maxRetryDelay)
	}
	return retry.BackOffDelay(n, err, config)
}

func (c *Client) once(ctx context.Context, method, endpoint string, payload []byte, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &APIError{Method: method, Endpoint: endpoint, Err: err}
		}
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	// per-attempt deadline; ctx bounds the call as a whole
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Notion-Version", c.apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(ctx, attemptCtx, method, endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(ctx, attemptCtx, method, endpoint, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Method: method, Endpoint: endpoint, Status: resp.StatusCode}
		var notionErr struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &notionErr) == nil {
			apiErr.Code = notionErr.Code
			apiErr.Message = notionErr.Message
		}
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			apiErr.RetryAfter = time.Duration(secs) * time.Second
		}
		return apiErr
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// transportError tells a cancelled caller apart from an attempt that ran out
// of time. Only the latter is retried.
func transportError(ctx, attemptCtx context.Context, method, endpoint string, err error) *APIError {
	apiErr := &APIError{Method: method, Endpoint: endpoint, Err: err}
	if ctxErr := ctx.Err(); ctxErr != nil {
		apiErr.Err = ctxErr
		return apiErr
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		apiErr.TimedOut = true
	}
	return apiErr
}
