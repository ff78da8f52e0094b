package analytics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"jotdown/internal/journal"
)

// DailyStats summarises one day of publish activity.
type DailyStats struct {
	Date            string               `json:"date"`
	TotalCalls      int                  `json:"total_calls"`
	Succeeded       int                  `json:"succeeded"`
	Failed          int                  `json:"failed"`
	FilesWritten    int                  `json:"files_written"`
	BlocksPublished int                  `json:"blocks_published"`
	AvgDurationMS   int64                `json:"avg_duration_ms"`
	ByTool          map[string]ToolStats `json:"by_tool"`
	ErrorsByKind    map[string]int       `json:"errors_by_kind"`
}

// ToolStats counts calls of a single tool.
type ToolStats struct {
	Tool      string `json:"tool"`
	Calls     int    `json:"calls"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

// AnalyzeDailyLogs aggregates the events that fall on targetDate, in targetDate's location.
func AnalyzeDailyLogs(events []journal.Event, targetDate time.Time) *DailyStats {
	startOfDay := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 0, 0, 0, 0, targetDate.Location())
	endOfDay := startOfDay.AddDate(0, 0, 1)

	stats := &DailyStats{
		Date:         startOfDay.Format("2006-01-02"),
		ByTool:       make(map[string]ToolStats),
		ErrorsByKind: make(map[string]int),
	}

	var totalDuration int64
	for _, event := range events {
		if event.Timestamp.Before(startOfDay) || !event.Timestamp.Before(endOfDay) {
			continue
		}

		stats.TotalCalls++
		totalDuration += event.DurationMS

		tool := stats.ByTool[event.Tool]
		tool.Tool = event.Tool
		tool.Calls++
		if event.OK {
			stats.Succeeded++
			tool.Succeeded++
			stats.FilesWritten += event.Files
			stats.BlocksPublished += event.Blocks
		} else {
			stats.Failed++
			tool.Failed++
			stats.ErrorsByKind[event.ErrorKind]++
		}
		stats.ByTool[event.Tool] = tool
	}

	if stats.TotalCalls > 0 {
		stats.AvgDurationMS = totalDuration / int64(stats.TotalCalls)
	}
	return stats
}

// GenerateReportSummary renders the stats as a short plain-text report.
func (ds *DailyStats) GenerateReportSummary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "jotdown publish activity for %s:\n\n", ds.Date)
	fmt.Fprintf(&sb, "- Tool calls: %d (%d succeeded, %d failed)\n", ds.TotalCalls, ds.Succeeded, ds.Failed)
	fmt.Fprintf(&sb, "- Book files written: %d\n", ds.FilesWritten)
	fmt.Fprintf(&sb, "- Notion blocks published: %d\n", ds.BlocksPublished)
	fmt.Fprintf(&sb, "- Average duration: %dms\n", ds.AvgDurationMS)

	if len(ds.ByTool) > 0 {
		sb.WriteString("\nBy tool:\n")
		for _, name := range sortedKeys(ds.ByTool) {
			t := ds.ByTool[name]
			fmt.Fprintf(&sb, "- %s: %d calls, %d failed\n", name, t.Calls, t.Failed)
		}
	}
	if len(ds.ErrorsByKind) > 0 {
		sb.WriteString("\nErrors:\n")
		for _, kind := range sortedKeys(ds.ErrorsByKind) {
			fmt.Fprintf(&sb, "- %s: %d\n", kind, ds.ErrorsByKind[kind])
		}
	}
	return sb.String()
}

// ToJSON serialises the stats for detailed inspection.
func (ds *DailyStats) ToJSON() (string, error) {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
