package jotclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"jotdown/internal/content"
	"jotdown/internal/publish"
)

// DefaultServerPath is the server binary started by ConnectCommand when
// JOTDOWN_MCP_SERVER_PATH is not set.
const DefaultServerPath = "./jotdown-mcp-server"

var ErrNotConnected = errors.New("MCP session not connected")

// Client calls jotdown tools over an MCP session.
type Client struct {
	client  *mcp.Client
	session *mcp.ClientSession
}

func New(name, version string) *Client {
	return &Client{
		client: mcp.NewClient(&mcp.Implementation{Name: name, Version: version}, nil),
	}
}

// ServerPath returns the jotdown server binary to launch.
func ServerPath() string {
	if p := os.Getenv("JOTDOWN_MCP_SERVER_PATH"); p != "" {
		return p
	}
	return DefaultServerPath
}

// ConnectCommand starts the server binary as a subprocess and talks to it over stdio.
// env entries are appended to the current environment.
func (c *Client) ConnectCommand(ctx context.Context, serverPath string, env ...string) error {
	log.Printf("🔗 Connecting to jotdown MCP server via stdio: %s", serverPath)
	cmd := exec.CommandContext(ctx, serverPath)
	cmd.Env = append(os.Environ(), env...)
	return c.Connect(ctx, mcp.NewCommandTransport(cmd))
}

// Connect opens a session over an arbitrary transport.
func (c *Client) Connect(ctx context.Context, transport mcp.Transport) error {
	session, err := c.client.Connect(ctx, transport)
	if err != nil {
		return fmt.Errorf("failed to connect to jotdown MCP server: %w", err)
	}
	c.session = session
	log.Printf("✅ Connected to jotdown MCP server")
	return nil
}

func (c *Client) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

// CreateBook calls create_mdbook. An empty directory lets the server derive one
// from the title.
func (c *Client) CreateBook(ctx context.Context, tree content.RawTree, directory string) (publish.ToolResult, error) {
	args, err := treeArgs(tree)
	if err != nil {
		return publish.ToolResult{}, err
	}
	if directory != "" {
		args["directory"] = directory
	}
	log.Printf("📖 Creating book via MCP: %s", tree.Title)
	return c.call(ctx, publish.ToolCreateBook, args)
}

// PublishPage calls publish_notion_page. pageID takes precedence over pageTitle on
// the server; both may be empty.
func (c *Client) PublishPage(ctx context.Context, tree content.RawTree, pageID, pageTitle string) (publish.ToolResult, error) {
	args, err := treeArgs(tree)
	if err != nil {
		return publish.ToolResult{}, err
	}
	if pageID != "" {
		args["pageId"] = pageID
	}
	if pageTitle != "" {
		args["pageTitle"] = pageTitle
	}
	log.Printf("📝 Publishing Notion page via MCP: %s", tree.Title)
	return c.call(ctx, publish.ToolPublishPage, args)
}

// RetrievePage calls retrieve_page. limit <= 0 uses the server default.
func (c *Client) RetrievePage(ctx context.Context, query string, limit int) (publish.ToolResult, error) {
	args := map[string]any{"query": query}
	if limit > 0 {
		args["limit"] = limit
	}
	log.Printf("🔍 Searching Notion via MCP: query='%s'", query)
	return c.call(ctx, publish.ToolRetrievePage, args)
}

// ServeBook starts a preview server for a book directory under the server's book root.
func (c *Client) ServeBook(ctx context.Context, directory string) (publish.ToolResult, error) {
	log.Printf("🌐 Starting book preview via MCP: directory='%s'", directory)
	return c.call(ctx, publish.ToolServeBook, map[string]any{"directory": directory})
}

// call returns an error only when the tool could not be invoked. Tool failures are
// reported in ToolResult.Error.
func (c *Client) call(ctx context.Context, tool string, args map[string]any) (publish.ToolResult, error) {
	if c.session == nil {
		return publish.ToolResult{}, ErrNotConnected
	}

	result, err := c.session.CallTool(ctx, &mcp.CallToolParams{Name: tool, Arguments: args})
	if err != nil {
		log.Printf("❌ MCP %s error: %v", tool, err)
		return publish.ToolResult{}, fmt.Errorf("MCP %s call failed: %w", tool, err)
	}

	var text []string
	for _, item := range result.Content {
		if tc, ok := item.(*mcp.TextContent); ok {
			text = append(text, tc.Text)
		}
	}

	var res publish.ToolResult
	if result.Meta != nil {
		data, err := json.Marshal(result.Meta)
		if err != nil {
			return res, fmt.Errorf("failed to encode %s result meta: %w", tool, err)
		}
		if err := json.Unmarshal(data, &res); err != nil {
			return res, fmt.Errorf("failed to decode %s result meta: %w", tool, err)
		}
	}
	if res.Tool == "" {
		res.Tool = tool
		res.OK = !result.IsError
	}
	if result.IsError && res.Error == nil {
		res.OK = false
		res.Error = &publish.ErrorPayload{Message: strings.Join(text, "\n")}
	}
	return res, nil
}

func treeArgs(tree content.RawTree) (map[string]any, error) {
	data, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("failed to encode content tree: %w", err)
	}
	var args map[string]any
	if err := json.Unmarshal(data, &args); err != nil {
		return nil, fmt.Errorf("failed to encode content tree: %w", err)
	}
	for k, v := range args {
		if v == nil {
			delete(args, k)
		}
	}
	return args, nil
}
