package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"jotdown/internal/content"
	"jotdown/internal/jotclient"
	"jotdown/internal/publish"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}
	fmt.Println("🧪 Testing jotdown MCP Server")
	fmt.Println("=============================")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	serverPath := jotclient.ServerPath()
	fmt.Println("\n🔗 Connecting to jotdown MCP server...")
	fmt.Println("💡 Make sure the server binary is built:")
	fmt.Println("   go build -o jotdown-mcp-server ./cmd/jotdown-mcp-server")
	fmt.Println("")

	client := jotclient.New("jotdown-smoke-test", "1.0.0")
	if err := client.ConnectCommand(ctx, serverPath, "BOOK_COMPILER="); err != nil {
		fmt.Printf("❌ Connection failed: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()
	fmt.Println("✅ Connected successfully!")

	tree := content.RawTree{
		Title: "jotdown smoke test",
		Sections: []content.RawSection{
			{Title: "Overview", Body: "This document was published through the **jotdown** MCP server.\n\n- books\n- Notion pages"},
			{Title: "Details", Body: "Nested sections become chapters.", Children: []content.RawSection{
				{Title: "Code", Body: "```go\nfmt.Println(\"hello\")\n```"},
			}},
		},
	}

	fmt.Println("\n📖 Testing book creation...")
	report(client.CreateBook(ctx, tree, "jotdown-smoke-test"))

	if os.Getenv("NOTION_TOKEN") == "" {
		fmt.Println("\n⚠️ NOTION_TOKEN is not set, skipping Notion checks")
		fmt.Println("\n🎉 jotdown MCP smoke test completed!")
		return
	}

	fmt.Println("\n📝 Testing Notion page publishing...")
	pageID := os.Getenv("NOTION_TEST_PAGE_ID")
	if pageID != "" {
		fmt.Printf("✅ Using test page ID: %s\n", pageID)
	}
	published, ok := report(client.PublishPage(ctx, tree, pageID, ""))

	fmt.Println("\n🔁 Publishing again to check replace semantics...")
	again, _ := report(client.PublishPage(ctx, tree, pageID, ""))
	if ok && again.PageID != published.PageID {
		fmt.Printf("❌ Second publish targeted a different page: %s != %s\n", again.PageID, published.PageID)
	}

	fmt.Println("\n🔍 Testing page retrieval...")
	report(client.RetrievePage(ctx, tree.Title, 5))

	fmt.Println("\n🎉 jotdown MCP smoke test completed!")
}

func report(res publish.ToolResult, err error) (publish.ToolResult, bool) {
	if err != nil {
		fmt.Printf("❌ Call failed: %v\n", err)
		return res, false
	}
	if res.Error != nil {
		fmt.Printf("❌ %s failed: %s\n", res.Tool, res.Error.Message)
		return res, false
	}
	fmt.Println(res.Text())
	return res, true
}
