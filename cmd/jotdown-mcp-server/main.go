package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/urfave/cli/v2"

	"jotdown/internal/analytics"
	"jotdown/internal/config"
	"jotdown/internal/journal"
	"jotdown/internal/publish"
	"jotdown/internal/scheduler"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "jotdown-mcp-server",
		Usage:   "publish structured notes as mdBooks or Notion pages",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "env-file", Usage: "dotenv files to load", Value: cli.NewStringSlice(".env")},
		},
		Action: serveAction,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the MCP server on stdin/stdout",
				Action: serveAction,
			},
			{
				Name:      "book",
				Usage:     "write a JSON content tree as an mdBook",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Usage: "book directory relative to BOOK_ROOT"},
					&cli.BoolFlag{Name: "json", Usage: "print the result as JSON"},
				},
				Action: bookAction,
			},
			{
				Name:      "notion",
				Usage:     "publish a JSON content tree to a Notion page",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "page-id", Usage: "existing page to replace"},
					&cli.StringFlag{Name: "page-title", Usage: "page title under NOTION_PARENT_PAGE_ID"},
					&cli.BoolFlag{Name: "json", Usage: "print the result as JSON"},
				},
				Action: notionAction,
			},
			{
				Name:      "preview",
				Usage:     "start the book compiler's preview server for a book directory",
				ArgsUsage: "DIR",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "print the result as JSON"},
				},
				Action: previewAction,
			},
			{
				Name:  "stats",
				Usage: "print the daily publish report from the journal",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "date", Usage: "day to report (YYYY-MM-DD, default today in UTC)"},
					&cli.BoolFlag{Name: "json", Usage: "print the report as JSON"},
				},
				Action: statsAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

type deps struct {
	cfg     *config.Config
	journal journal.Recorder
	coord   *publish.Coordinator
}

func setup(c *cli.Context) (*deps, error) {
	cfg, err := config.Load(c.StringSlice("env-file")...)
	if err != nil {
		return nil, err
	}

	var rec journal.Recorder = journal.Nop{}
	if cfg.JournalPath != "" {
		fr, err := journal.NewFileRecorder(cfg.JournalPath)
		if err != nil {
			return nil, err
		}
		rec = fr
	}

	return &deps{cfg: cfg, journal: rec, coord: publish.FromConfig(cfg, rec)}, nil
}

func serveAction(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}

	log.Printf("🚀 Starting jotdown MCP server %s", version)
	log.Printf("📚 Book root: %s", rt.cfg.BookRoot)
	if rt.cfg.NotionEnabled() {
		log.Printf("🔑 Using Notion token: %s", rt.cfg.MaskedToken())
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if rt.cfg.ReportSchedule != "" {
		sched := scheduler.New(rt.cfg.ReportSchedule)
		sched.SetReportFunction(func(context.Context) error {
			return logDailyReport(rt.journal, time.Now().UTC())
		})
		if err := sched.Start(); err != nil {
			log.Printf("⚠️ Report scheduler disabled: %v", err)
		}
		defer sched.Stop()
	}

	server := publish.NewServer(rt.coord, version)
	log.Printf("🔗 Starting server on stdin/stdout...")
	if err := server.Run(ctx, mcp.NewStdioTransport()); err != nil && ctx.Err() == nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func logDailyReport(rec journal.Recorder, day time.Time) error {
	events, err := rec.Load()
	if err != nil {
		return fmt.Errorf("failed to load journal: %w", err)
	}
	stats := analytics.AnalyzeDailyLogs(events, day)
	log.Printf("📊 Daily publish report\n%s", stats.GenerateReportSummary())
	return nil
}

func readTree(c *cli.Context) (json.RawMessage, error) {
	if c.NArg() != 1 {
		return nil, fmt.Errorf("expected exactly one FILE argument, got %d", c.NArg())
	}
	path := c.Args().First()
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func bookAction(c *cli.Context) error {
	raw, err := readTree(c)
	if err != nil {
		return err
	}
	if dir := c.String("dir"); dir != "" {
		if raw, err = withField(raw, "directory", dir); err != nil {
			return err
		}
	}
	rt, err := setup(c)
	if err != nil {
		return err
	}
	return printResult(c, rt.coord.Dispatch(c.Context, publish.ToolCreateBook, raw))
}

func notionAction(c *cli.Context) error {
	raw, err := readTree(c)
	if err != nil {
		return err
	}
	for flag, field := range map[string]string{"page-id": "pageId", "page-title": "pageTitle"} {
		if v := c.String(flag); v != "" {
			if raw, err = withField(raw, field, v); err != nil {
				return err
			}
		}
	}
	rt, err := setup(c)
	if err != nil {
		return err
	}
	return printResult(c, rt.coord.Dispatch(c.Context, publish.ToolPublishPage, raw))
}

func previewAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one DIR argument, got %d", c.NArg())
	}
	raw, err := json.Marshal(map[string]string{"directory": c.Args().First()})
	if err != nil {
		return err
	}
	rt, err := setup(c)
	if err != nil {
		return err
	}
	return printResult(c, rt.coord.Dispatch(c.Context, publish.ToolServeBook, raw))
}

func statsAction(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}

	day := time.Now().UTC()
	if d := c.String("date"); d != "" {
		if day, err = time.Parse("2006-01-02", d); err != nil {
			return fmt.Errorf("invalid --date %q: %w", d, err)
		}
	}

	events, err := rt.journal.Load()
	if err != nil {
		return fmt.Errorf("failed to load journal: %w", err)
	}
	stats := analytics.AnalyzeDailyLogs(events, day)
	if c.Bool("json") {
		out, err := stats.ToJSON()
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}
	fmt.Println(stats.GenerateReportSummary())
	return nil
}

// withField sets a top-level field of a JSON object request.
func withField(raw json.RawMessage, key, value string) (json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		// Let the coordinator report the malformed request.
		return raw, nil
	}
	v, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	obj[key] = v
	return json.Marshal(obj)
}

func printResult(c *cli.Context, res publish.ToolResult) error {
	if c.Bool("json") {
		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	} else {
		fmt.Println(res.Text())
	}
	if res.Error != nil {
		return cli.Exit("", 1)
	}
	return nil
}
