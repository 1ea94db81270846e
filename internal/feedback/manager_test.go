package feedback

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramez-101/doc-ingestion/internal/storage/models"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	m, err := NewManager(dir, 5, 100)
	require.NoError(t, err)
	return m, dir
}

func submit(t *testing.T, m *Manager, feedbackType, comment string) {
	t.Helper()
	err := m.Submit(
		"What are your opening hours?",
		"We are open nine to six.",
		feedbackType,
		comment,
		models.FeedbackMetadata{SimilarityScore: 0.91, ResponseID: "r1"},
		"session_20260824_120000",
	)
	require.NoError(t, err)
}

func TestManager_RejectsInvalidType(t *testing.T) {
	m, _ := newTestManager(t)

	for _, typ := range []string{"", "neutral", "great", "all"} {
		err := m.Submit("q", "a", typ, "", models.FeedbackMetadata{}, "s1")
		assert.ErrorIs(t, err, ErrInvalidFeedbackType, "type %q must be rejected", typ)
	}
}

func TestManager_TypeIsCaseInsensitive(t *testing.T) {
	m, _ := newTestManager(t)

	require.NoError(t, m.Submit("q", "a", "GOOD", "", models.FeedbackMetadata{}, "s1"))
	require.NoError(t, m.Submit("q", "a", "Bad", "", models.FeedbackMetadata{}, "s1"))

	summary := m.Summary()
	assert.Equal(t, 1, summary.GoodCount)
	assert.Equal(t, 1, summary.BadCount)
}

func TestManager_SummaryCounts(t *testing.T) {
	m, _ := newTestManager(t)

	submit(t, m, TypeGood, "")
	submit(t, m, TypeGood, "")
	submit(t, m, TypeGood, "")
	submit(t, m, TypeBad, "answer was about the wrong day")

	summary := m.Summary()
	assert.Equal(t, 4, summary.TotalFeedback)
	assert.Equal(t, 3, summary.GoodCount)
	assert.Equal(t, 1, summary.BadCount)
	assert.InDelta(t, 75.0, summary.SatisfactionRate, 1e-9)
	assert.Equal(t, summary.GoodCount+summary.BadCount, summary.TotalFeedback)
	assert.NotEmpty(t, summary.LastUpdated)
}

func TestManager_LogLineFormat(t *testing.T) {
	m, dir := newTestManager(t)
	submit(t, m, TypeGood, "spot on")

	data, err := os.ReadFile(filepath.Join(dir, "good_feedback.jsonl"))
	require.NoError(t, err)

	line := strings.TrimSpace(string(data))
	require.NotEmpty(t, line)
	assert.NotContains(t, line, "\n", "each entry is exactly one line")

	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &raw))
	for _, key := range []string{"timestamp", "question", "answer", "feedback_type", "user_comment", "metadata", "session_id"} {
		assert.Contains(t, raw, key)
	}

	meta, ok := raw["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, meta, "similarity_score")
	assert.Contains(t, meta, "response_id")
	assert.Contains(t, meta, "timestamp")

	assert.Equal(t, "good", raw["feedback_type"])
	_, err = time.Parse(time.RFC3339, raw["timestamp"].(string))
	assert.NoError(t, err, "timestamp must be RFC3339")
}

func TestManager_GeneratesSessionID(t *testing.T) {
	m, _ := newTestManager(t)

	require.NoError(t, m.Submit("q", "a", TypeGood, "", models.FeedbackMetadata{}, ""))

	entries, err := m.Recent(TypeGood, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].SessionID, "session_"), "got %q", entries[0].SessionID)
}

func TestManager_FillsMetadataTimestamp(t *testing.T) {
	m, _ := newTestManager(t)

	require.NoError(t, m.Submit("q", "a", TypeGood, "", models.FeedbackMetadata{}, "s1"))

	entries, err := m.Recent(TypeGood, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	_, err = time.Parse("15:04", entries[0].Metadata.Timestamp)
	assert.NoError(t, err, "metadata timestamp must be HH:MM, got %q", entries[0].Metadata.Timestamp)
}

func TestManager_RecentOrderingAndLimit(t *testing.T) {
	m, _ := newTestManager(t)

	// Append entries directly with distinct timestamps so ordering is
	// unambiguous.
	base := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		typ := TypeGood
		if i%2 == 1 {
			typ = TypeBad
		}
		require.NoError(t, m.appendEntry(models.FeedbackEntry{
			Timestamp:    base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
			Question:     "q",
			Answer:       "a",
			FeedbackType: typ,
			SessionID:    "s1",
		}))
	}

	entries, err := m.Recent(TypeAll, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, base.Add(4*time.Minute).Format(time.RFC3339), entries[0].Timestamp)
	assert.Equal(t, base.Add(3*time.Minute).Format(time.RFC3339), entries[1].Timestamp)
	assert.Equal(t, base.Add(2*time.Minute).Format(time.RFC3339), entries[2].Timestamp)
}

func TestManager_RecentByType(t *testing.T) {
	m, _ := newTestManager(t)

	submit(t, m, TypeGood, "")
	submit(t, m, TypeBad, "wrong answer")

	good, err := m.Recent(TypeGood, 10)
	require.NoError(t, err)
	require.Len(t, good, 1)
	assert.Equal(t, TypeGood, good[0].FeedbackType)

	bad, err := m.Recent(TypeBad, 10)
	require.NoError(t, err)
	require.Len(t, bad, 1)
	assert.Equal(t, TypeBad, bad[0].FeedbackType)

	_, err = m.Recent("nonsense", 10)
	assert.ErrorIs(t, err, ErrInvalidFeedbackType)
}

func TestManager_RecentSkipsCorruptLines(t *testing.T) {
	m, dir := newTestManager(t)

	submit(t, m, TypeGood, "")

	logPath := filepath.Join(dir, "good_feedback.jsonl")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("{this is not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	submit(t, m, TypeGood, "")

	entries, err := m.Recent(TypeAll, 10)
	require.NoError(t, err, "a corrupt line must not abort the read")
	assert.Len(t, entries, 2)
}

func TestManager_RebuildConverges(t *testing.T) {
	m, dir := newTestManager(t)

	submit(t, m, TypeGood, "")
	submit(t, m, TypeGood, "")
	submit(t, m, TypeBad, "answer ignored my question about parking")
	want := m.Summary()

	// Corrupt the persisted summary: reopening must recover from the logs.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feedback_analytics.json"), []byte("{broken"), 0644))

	reopened, err := NewManager(dir, 5, 100)
	require.NoError(t, err)

	got := reopened.Summary()
	assert.Equal(t, want.TotalFeedback, got.TotalFeedback)
	assert.Equal(t, want.GoodCount, got.GoodCount)
	assert.Equal(t, want.BadCount, got.BadCount)
	assert.InDelta(t, want.SatisfactionRate, got.SatisfactionRate, 1e-9)
}

func TestManager_RejectsInconsistentSummaryOnLoad(t *testing.T) {
	m, dir := newTestManager(t)
	submit(t, m, TypeGood, "")

	// Counts that do not add up: derived state is replayed, not trusted.
	bogus := `{"total_feedback": 10, "good_feedback_count": 1, "bad_feedback_count": 2, "satisfaction_rate": 10}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feedback_analytics.json"), []byte(bogus), 0644))

	reopened, err := NewManager(dir, 5, 100)
	require.NoError(t, err)

	got := reopened.Summary()
	assert.Equal(t, 1, got.TotalFeedback)
	assert.Equal(t, 1, got.GoodCount)
	assert.Equal(t, 0, got.BadCount)
}

func TestManager_PersistedSummaryFieldNames(t *testing.T) {
	m, dir := newTestManager(t)
	submit(t, m, TypeGood, "")

	data, err := os.ReadFile(filepath.Join(dir, "feedback_analytics.json"))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"total_feedback", "good_feedback_count", "bad_feedback_count", "satisfaction_rate", "last_updated"} {
		assert.Contains(t, raw, key)
	}

	// No temp file left behind after the rename.
	_, err = os.Stat(filepath.Join(dir, "feedback_analytics.json.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestManager_Export(t *testing.T) {
	m, dir := newTestManager(t)

	submit(t, m, TypeGood, "")
	submit(t, m, TypeBad, "wrong answer")

	exportPath := filepath.Join(dir, "export.json")
	n, err := m.Export(exportPath, TypeAll, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(exportPath)
	require.NoError(t, err)

	var dump struct {
		ExportDate   string                 `json:"export_date"`
		FeedbackType string                 `json:"feedback_type"`
		TotalEntries int                    `json:"total_entries"`
		Entries      []models.FeedbackEntry `json:"feedback_entries"`
	}
	require.NoError(t, json.Unmarshal(data, &dump))
	assert.Equal(t, TypeAll, dump.FeedbackType)
	assert.Equal(t, 2, dump.TotalEntries)
	assert.Len(t, dump.Entries, 2)
}

func TestManager_ConcurrentSubmits(t *testing.T) {
	m, _ := newTestManager(t)

	const goroutines = 8
	const perGoroutine = 5

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			typ := TypeGood
			if g%2 == 1 {
				typ = TypeBad
			}
			for i := 0; i < perGoroutine; i++ {
				err := m.Submit("q", "a", typ, "", models.FeedbackMetadata{}, "s1")
				assert.NoError(t, err)
			}
		}(g)
	}
	wg.Wait()

	summary := m.Summary()
	assert.Equal(t, goroutines*perGoroutine, summary.TotalFeedback)
	assert.Equal(t, summary.GoodCount+summary.BadCount, summary.TotalFeedback)

	entries, err := m.Recent(TypeAll, goroutines*perGoroutine)
	require.NoError(t, err)
	assert.Len(t, entries, goroutines*perGoroutine, "no torn or lost log lines")
}
