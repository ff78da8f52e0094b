package analytics

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jotdown/internal/journal"
)

func sampleEvents(day time.Time) []journal.Event {
	return []journal.Event{
		{Timestamp: day.Add(2 * time.Hour), Tool: "create_mdbook", OK: true, Files: 5, DurationMS: 100},
		{Timestamp: day.Add(3 * time.Hour), Tool: "create_mdbook", ErrorKind: "CompilerError", DurationMS: 300},
		{Timestamp: day.Add(4 * time.Hour), Tool: "publish_notion_page", OK: true, Blocks: 6, DurationMS: 200},
		{Timestamp: day.Add(5 * time.Hour), Tool: "publish_notion_page", ErrorKind: "PartialPublish", DurationMS: 400},
		// next day, ignored
		{Timestamp: day.AddDate(0, 0, 1), Tool: "create_mdbook", OK: true, Files: 99},
		// previous day, ignored
		{Timestamp: day.Add(-time.Second), Tool: "retrieve_page", OK: true},
	}
}

func TestAnalyzeDailyLogs(t *testing.T) {
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	stats := AnalyzeDailyLogs(sampleEvents(day), day.Add(13*time.Hour))

	assert.Equal(t, "2024-01-15", stats.Date)
	assert.Equal(t, 4, stats.TotalCalls)
	assert.Equal(t, 2, stats.Succeeded)
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, 5, stats.FilesWritten)
	assert.Equal(t, 6, stats.BlocksPublished)
	assert.Equal(t, int64(250), stats.AvgDurationMS)
	assert.Equal(t, ToolStats{Tool: "create_mdbook", Calls: 2, Succeeded: 1, Failed: 1}, stats.ByTool["create_mdbook"])
	assert.Equal(t, map[string]int{"CompilerError": 1, "PartialPublish": 1}, stats.ErrorsByKind)
	assert.NotContains(t, stats.ByTool, "retrieve_page")
}

func TestAnalyzeDailyLogs_EmptyDay(t *testing.T) {
	stats := AnalyzeDailyLogs(nil, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	assert.Zero(t, stats.TotalCalls)
	assert.Zero(t, stats.AvgDurationMS)
	assert.Contains(t, stats.GenerateReportSummary(), "Tool calls: 0")
}

func TestGenerateReportSummary(t *testing.T) {
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	summary := AnalyzeDailyLogs(sampleEvents(day), day).GenerateReportSummary()

	assert.Contains(t, summary, "2024-01-15")
	assert.Contains(t, summary, "Tool calls: 4 (2 succeeded, 2 failed)")
	assert.Contains(t, summary, "- create_mdbook: 2 calls, 1 failed\n- publish_notion_page: 2 calls, 1 failed\n")
	assert.Contains(t, summary, "- CompilerError: 1\n- PartialPublish: 1\n")
}

func TestToJSON(t *testing.T) {
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	data, err := AnalyzeDailyLogs(sampleEvents(day), day).ToJSON()
	require.NoError(t, err)

	var decoded DailyStats
	require.NoError(t, json.Unmarshal([]byte(data), &decoded))
	assert.Equal(t, 4, decoded.TotalCalls)
	assert.Equal(t, 2, decoded.ByTool["publish_notion_page"].Calls)
}
