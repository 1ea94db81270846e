package feedback

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Ramez-101/doc-ingestion/internal/metrics"
	"github.com/Ramez-101/doc-ingestion/internal/storage/models"
	"github.com/Ramez-101/doc-ingestion/pkg/logger"
)

const (
	TypeGood = "good"
	TypeBad  = "bad"
	TypeAll  = "all"

	goodLogName      = "good_feedback.jsonl"
	badLogName       = "bad_feedback.jsonl"
	analyticsName    = "feedback_analytics.json"
	metadataTimeform = "15:04"
)

var ErrInvalidFeedbackType = errors.New("feedback type must be good or bad")

// Manager records user judgments to per-outcome JSONL logs and keeps the
// analytics summary in step with them. Appends are serialized per log file;
// every summary mutation happens under the manager mutex and is persisted
// before Submit returns, so the persisted summary never lags more than the
// write in flight.
type Manager struct {
	dir           string
	goodPath      string
	badPath       string
	analyticsPath string

	goodMu sync.Mutex
	badMu  sync.Mutex

	mu           sync.Mutex
	summary      models.AnalyticsSummary
	topN         int
	recentWindow int
}

func NewManager(dir string, topN, recentWindow int) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create feedback directory: %w", err)
	}
	if topN <= 0 {
		topN = 5
	}
	if recentWindow <= 0 {
		recentWindow = 100
	}

	m := &Manager{
		dir:           dir,
		goodPath:      filepath.Join(dir, goodLogName),
		badPath:       filepath.Join(dir, badLogName),
		analyticsPath: filepath.Join(dir, analyticsName),
		topN:          topN,
		recentWindow:  recentWindow,
	}

	for _, path := range []string{m.goodPath, m.badPath} {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize feedback log: %w", err)
		}
		f.Close()
	}

	if err := m.loadSummary(); err != nil {
		// The summary is derived state: when it is missing or corrupt, replay
		// the logs instead of failing.
		logger.Warn("Analytics summary unreadable, rebuilding from logs", zap.Error(err))
		if err := m.Rebuild(); err != nil {
			return nil, err
		}
	}

	logger.Info("Feedback manager initialized", zap.String("dir", dir))
	return m, nil
}

// Submit validates and durably records one judgment, then updates and
// persists the analytics summary as a single logical transaction.
func (m *Manager) Submit(question, answer, feedbackType, userComment string, meta models.FeedbackMetadata, sessionID string) error {
	feedbackType = strings.ToLower(feedbackType)
	if feedbackType != TypeGood && feedbackType != TypeBad {
		return fmt.Errorf("%w: got %q", ErrInvalidFeedbackType, feedbackType)
	}

	now := time.Now()
	if sessionID == "" {
		sessionID = "session_" + now.Format("20060102_150405")
	}
	if meta.Timestamp == "" {
		meta.Timestamp = now.Format(metadataTimeform)
	}

	entry := models.FeedbackEntry{
		Timestamp:    now.Format(time.RFC3339),
		Question:     question,
		Answer:       answer,
		FeedbackType: feedbackType,
		UserComment:  userComment,
		Metadata:     meta,
		SessionID:    sessionID,
	}

	if err := m.appendEntry(entry); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.summary.TotalFeedback++
	if feedbackType == TypeGood {
		m.summary.GoodCount++
	} else {
		m.summary.BadCount++
	}
	m.summary.SatisfactionRate = satisfactionRate(m.summary.GoodCount, m.summary.TotalFeedback)
	if feedbackType == TypeBad {
		m.summary.CommonIssues = m.deriveCommonIssues()
	}
	m.summary.LastUpdated = now.Format(time.RFC3339)

	if err := m.persistSummary(); err != nil {
		return err
	}

	metrics.FeedbackTotal.WithLabelValues(feedbackType).Inc()
	metrics.SatisfactionRate.Set(m.summary.SatisfactionRate)

	logger.Info("Feedback recorded",
		zap.String("type", feedbackType),
		zap.String("session_id", sessionID),
	)

	return nil
}

// appendEntry writes one record as a single O_APPEND write, so a log never
// holds a partially written line even under concurrent submissions.
func (m *Manager) appendEntry(entry models.FeedbackEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal feedback entry: %w", err)
	}
	line = append(line, '\n')

	path := m.goodPath
	mu := &m.goodMu
	if entry.FeedbackType == TypeBad {
		path = m.badPath
		mu = &m.badMu
	}

	mu.Lock()
	defer mu.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("feedback log unavailable: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("failed to append feedback: %w", err)
	}
	return nil
}

// Summary returns a read-only snapshot of the current analytics.
func (m *Manager) Summary() models.AnalyticsSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.summary
	snapshot.CommonIssues = append([]models.IssuePattern(nil), m.summary.CommonIssues...)
	return snapshot
}

// Recent returns the most recent entries of the given type, most-recent-first.
// Malformed log lines are skipped with a warning and never abort the read.
func (m *Manager) Recent(feedbackType string, limit int) ([]models.FeedbackEntry, error) {
	feedbackType = strings.ToLower(feedbackType)
	if feedbackType != TypeGood && feedbackType != TypeBad && feedbackType != TypeAll {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidFeedbackType, feedbackType)
	}
	if limit <= 0 {
		limit = 10
	}

	var entries []models.FeedbackEntry
	if feedbackType == TypeAll || feedbackType == TypeGood {
		good, err := m.readLog(m.goodPath, &m.goodMu)
		if err != nil {
			return nil, err
		}
		entries = append(entries, good...)
	}
	if feedbackType == TypeAll || feedbackType == TypeBad {
		bad, err := m.readLog(m.badPath, &m.badMu)
		if err != nil {
			return nil, err
		}
		entries = append(entries, bad...)
	}

	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].Timestamp > entries[b].Timestamp
	})

	if limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

// Rebuild reconstructs the analytics summary by replaying both logs. It is
// the recovery path when the persisted summary is lost or corrupt, and
// converges to the same state as incremental updates.
func (m *Manager) Rebuild() error {
	good, err := m.readLog(m.goodPath, &m.goodMu)
	if err != nil {
		return err
	}
	bad, err := m.readLog(m.badPath, &m.badMu)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.summary = models.AnalyticsSummary{
		TotalFeedback:    len(good) + len(bad),
		GoodCount:        len(good),
		BadCount:         len(bad),
		SatisfactionRate: satisfactionRate(len(good), len(good)+len(bad)),
		CommonIssues:     m.deriveCommonIssues(),
		LastUpdated:      time.Now().Format(time.RFC3339),
	}

	return m.persistSummary()
}

// Export writes a readable JSON dump of recent entries to the given path.
func (m *Manager) Export(path, feedbackType string, limit int) (int, error) {
	entries, err := m.Recent(feedbackType, limit)
	if err != nil {
		return 0, err
	}

	dump := struct {
		ExportDate   string                 `json:"export_date"`
		FeedbackType string                 `json:"feedback_type"`
		TotalEntries int                    `json:"total_entries"`
		Entries      []models.FeedbackEntry `json:"feedback_entries"`
	}{
		ExportDate:   time.Now().Format(time.RFC3339),
		FeedbackType: feedbackType,
		TotalEntries: len(entries),
		Entries:      entries,
	}

	data, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("failed to marshal export: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return 0, fmt.Errorf("failed to write export: %w", err)
	}

	logger.Info("Feedback exported", zap.String("path", path), zap.Int("entries", len(entries)))
	return len(entries), nil
}

func (m *Manager) readLog(path string, mu *sync.Mutex) ([]models.FeedbackEntry, error) {
	mu.Lock()
	data, err := os.ReadFile(path)
	mu.Unlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("feedback log unavailable: %w", err)
	}

	var entries []models.FeedbackEntry
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var entry models.FeedbackEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			logger.Warn("Skipping corrupt feedback record",
				zap.String("log", filepath.Base(path)),
				zap.Error(err),
			)
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// deriveCommonIssues clusters recent bad feedback. Called with m.mu held.
func (m *Manager) deriveCommonIssues() []models.IssuePattern {
	bad, err := m.readLog(m.badPath, &m.badMu)
	if err != nil {
		logger.Warn("Failed to read bad feedback for issue analysis", zap.Error(err))
		return m.summary.CommonIssues
	}

	if len(bad) > m.recentWindow {
		bad = bad[len(bad)-m.recentWindow:]
	}

	return clusterIssues(bad, m.topN)
}

// persistSummary overwrites the analytics file via temp-file-then-rename so a
// crash mid-write never leaves a truncated summary. Called with m.mu held.
func (m *Manager) persistSummary() error {
	data, err := json.MarshalIndent(m.summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal analytics: %w", err)
	}

	tmp := m.analyticsPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write analytics: %w", err)
	}
	if err := os.Rename(tmp, m.analyticsPath); err != nil {
		return fmt.Errorf("failed to replace analytics: %w", err)
	}
	return nil
}

func (m *Manager) loadSummary() error {
	data, err := os.ReadFile(m.analyticsPath)
	if err != nil {
		return err
	}

	var summary models.AnalyticsSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return err
	}
	if summary.GoodCount+summary.BadCount != summary.TotalFeedback {
		return fmt.Errorf("analytics counts inconsistent: %d good + %d bad != %d total",
			summary.GoodCount, summary.BadCount, summary.TotalFeedback)
	}

	m.mu.Lock()
	m.summary = summary
	m.mu.Unlock()
	return nil
}

func satisfactionRate(good, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(good) / float64(total) * 100
}
