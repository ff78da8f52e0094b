package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	// Notion
	NotionToken         string        `env:"NOTION_TOKEN"`
	NotionParentPageID  string        `env:"NOTION_PARENT_PAGE_ID"`
	NotionReferencePage string        `env:"NOTION_REFERENCE_PAGE" envDefault:"Jot It Down"`
	NotionBaseURL       string        `env:"NOTION_BASE_URL" envDefault:"https://api.notion.com/v1"`
	NotionVersion       string        `env:"NOTION_VERSION" envDefault:"2022-06-28"`
	NotionTimeout       time.Duration `env:"NOTION_TIMEOUT" envDefault:"30s"`
	NotionRateLimit     float64       `env:"NOTION_RATE_LIMIT" envDefault:"3"`
	NotionRetryAttempts uint          `env:"NOTION_RETRY_ATTEMPTS" envDefault:"3"`
	NotionRetryDelay    time.Duration `env:"NOTION_RETRY_DELAY" envDefault:"500ms"`

	// Content
	MaxNestingDepth int `env:"MAX_NESTING_DEPTH" envDefault:"4"`

	// Books
	BookRoot            string        `env:"BOOK_ROOT" envDefault:"books"`
	BookCompiler        string        `env:"BOOK_COMPILER" envDefault:"mdbook"`
	BookCompilerArgs    []string      `env:"BOOK_COMPILER_ARGS" envDefault:"build" envSeparator:","`
	BookCompilerTimeout time.Duration `env:"BOOK_COMPILER_TIMEOUT" envDefault:"2m"`
	BookServeArgs       []string      `env:"BOOK_SERVE_ARGS" envDefault:"serve" envSeparator:","`
	BookLanguage        string        `env:"BOOK_LANGUAGE" envDefault:"en"`

	// Journal and reports
	JournalPath    string `env:"JOURNAL_PATH" envDefault:"data/publish.jsonl"`
	ReportSchedule string `env:"REPORT_SCHEDULE" envDefault:"0 21 * * *"`
}

// Load reads .env files (if any) into the environment and parses the config.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			log.Printf("⚠️ Could not load %s: %v", f, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.MaxNestingDepth < 1 {
		return nil, fmt.Errorf("MAX_NESTING_DEPTH must be at least 1, got %d", cfg.MaxNestingDepth)
	}
	if cfg.BookRoot == "" {
		return nil, fmt.Errorf("BOOK_ROOT must not be empty")
	}
	return cfg, nil
}

// NotionEnabled reports whether Notion tools can run.
func (c *Config) NotionEnabled() bool { return c.NotionToken != "" }

// MaskedToken returns the token in a form safe for logs.
func (c *Config) MaskedToken() string {
	t := c.NotionToken
	if len(t) <= 15 {
		return "***"
	}
	return t[:10] + "..." + t[len(t)-5:]
}
