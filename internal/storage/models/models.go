package models

import "time"

// Document is the raw ingested text plus provenance. Immutable once chunked.
type Document struct {
	ID           string
	SourcePath   string
	SourceFormat string
	RawText      string
	CreatedAt    time.Time
}

// Chunk is one contiguous slice of a document's normalized text. Chunks of a
// document form a non-decreasing offset sequence; overlap between neighbours
// never exceeds the configured overlap.
type Chunk struct {
	ChunkID       string
	DocumentID    string
	Text          string
	StartOffset   int
	EndOffset     int
	SequenceIndex int
}

// VectorRecord pairs a chunk with its embedding. Dimension is fixed per
// collection at first insert.
type VectorRecord struct {
	ChunkID   string
	Embedding []float32
	Text      string
	Metadata  VectorMetadata
}

type VectorMetadata struct {
	DocumentID    string
	SequenceIndex int
	ModelName     string
}

type QueryRecord struct {
	ID         string
	SessionID  string
	QueryText  string
	Answer     string
	Confidence float64
	Cached     bool
	LatencyMS  int
	CreatedAt  time.Time
}

// FeedbackEntry is one user judgment. Append-only; field names and nesting
// match the persisted JSONL format exactly.
type FeedbackEntry struct {
	Timestamp    string           `json:"timestamp"`
	Question     string           `json:"question"`
	Answer       string           `json:"answer"`
	FeedbackType string           `json:"feedback_type"`
	UserComment  string           `json:"user_comment"`
	Metadata     FeedbackMetadata `json:"metadata"`
	SessionID    string           `json:"session_id"`
}

type FeedbackMetadata struct {
	SimilarityScore float64 `json:"similarity_score"`
	ResponseID      string  `json:"response_id"`
	Timestamp       string  `json:"timestamp"`
}

// AnalyticsSummary is derived entirely from the feedback logs and can always
// be reconstructed by replaying them.
type AnalyticsSummary struct {
	TotalFeedback    int           `json:"total_feedback"`
	GoodCount        int           `json:"good_feedback_count"`
	BadCount         int           `json:"bad_feedback_count"`
	SatisfactionRate float64       `json:"satisfaction_rate"`
	CommonIssues     []IssuePattern `json:"common_issues"`
	LastUpdated      string        `json:"last_updated"`
}

type IssuePattern struct {
	Pattern string `json:"pattern"`
	Count   int    `json:"count"`
}
