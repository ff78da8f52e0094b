package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ServerName is the MCP implementation name.
const ServerName = "jotdown"

// NewServer creates an MCP server exposing the coordinator's tools.
func NewServer(c *Coordinator, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name: ToolCreateBook,
		Description: "Writes a content tree as a multi-chapter mdBook: one Markdown file per section, " +
			"a SUMMARY.md navigation index and book.toml, then runs the book compiler. " +
			"Publishing the same tree again regenerates identical files.",
		InputSchema: treeSchema(map[string]*jsonschema.Schema{
			"directory": {Type: "string", Description: "book directory relative to the book root (defaults to the slug of the title)"},
		}),
	}, c.handler(ToolCreateBook))

	mcp.AddTool(server, &mcp.Tool{
		Name: ToolPublishPage,
		Description: "Publishes a content tree to a single Notion page. Creates the page under the configured parent " +
			"when it does not exist, otherwise replaces its whole body.",
		InputSchema: treeSchema(map[string]*jsonschema.Schema{
			"pageId":    {Type: "string", Description: "ID of an existing page to replace"},
			"pageTitle": {Type: "string", Description: "title of the page under the parent page (defaults to the tree title)"},
		}),
	}, c.handler(ToolPublishPage))

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolRetrievePage,
		Description: "Searches Notion pages by title and returns their IDs, titles and URLs",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query": {Type: "string", Description: "text to search page titles for (required)"},
				"limit": {Type: "integer", Description: "maximum number of results (default 20, max 100)"},
			},
		},
	}, c.handler(ToolRetrievePage))

	mcp.AddTool(server, &mcp.Tool{
		Name: ToolServeBook,
		Description: "Starts the book compiler's preview server (mdbook serve) in a book directory written by " +
			ToolCreateBook + " and returns its process ID. The server keeps running after the call.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"directory": {Type: "string", Description: "book directory relative to the book root"},
				"title":     {Type: "string", Description: "book title, used as the directory slug when directory is empty"},
			},
		},
	}, c.handler(ToolServeBook))

	log.Printf("📋 Registered 4 tools: %s, %s, %s, %s", ToolCreateBook, ToolPublishPage, ToolRetrievePage, ToolServeBook)
	return server
}

// treeSchema describes a content tree request. Required fields are enforced by
// the coordinator so that missing ones come back as validation errors.
func treeSchema(extra map[string]*jsonschema.Schema) *jsonschema.Schema {
	section := &jsonschema.Schema{
		Type:        "object",
		Description: "a section with a title, a Markdown body and child sections of the same shape",
		Properties: map[string]*jsonschema.Schema{
			"title": {Type: "string", Description: "section title, unique among its siblings (required)"},
			"body":  {Type: "string", Description: "Markdown body"},
			"children": {
				Type:        "array",
				Description: "nested sections, each with title, body and children",
				Items:       &jsonschema.Schema{Type: "object"},
			},
		},
	}
	props := map[string]*jsonschema.Schema{
		"title":    {Type: "string", Description: "document title (required)"},
		"sections": {Type: "array", Description: "top-level sections in order (at least one)", Items: section},
	}
	for k, v := range extra {
		props[k] = v
	}
	return &jsonschema.Schema{Type: "object", Properties: props}
}

func (c *Coordinator) handler(tool string) func(context.Context, *mcp.ServerSession, *mcp.CallToolParamsFor[map[string]any]) (*mcp.CallToolResultFor[any], error) {
	return func(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[map[string]any]) (*mcp.CallToolResultFor[any], error) {
		raw, err := json.Marshal(params.Arguments)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s arguments: %w", tool, err)
		}
		return toCallResult(c.Dispatch(ctx, tool, raw)), nil
	}
}

func toCallResult(res ToolResult) *mcp.CallToolResultFor[any] {
	meta := map[string]interface{}{}
	if data, err := json.Marshal(res); err == nil {
		_ = json.Unmarshal(data, &meta)
	}
	return &mcp.CallToolResultFor[any]{
		IsError: res.Error != nil,
		Content: []mcp.Content{
			&mcp.TextContent{Text: res.Text()},
		},
		Meta: meta,
	}
}
