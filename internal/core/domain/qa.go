package domain

import "time"

type Source string

const (
	SourceCache Source = "cache"
	SourceStore Source = "store"
	SourceRAG   Source = "rag"
	SourceError Source = "error"
)

type QAPair struct {
	ID         int64     `json:"id,omitempty"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Category   string    `json:"category,omitempty"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// QueryLogEntry is append-only.
type QueryLogEntry struct {
	UserID              string    `json:"user_id"`
	SessionID           string    `json:"session_id,omitempty"`
	Query               string    `json:"query"`
	Response            string    `json:"response"`
	Source              Source    `json:"source"`
	ResponseTimeSeconds float64   `json:"response_time_seconds"`
	CreatedAt           time.Time `json:"created_at"`
}

type HotQuery struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

type QAStats struct {
	Total          int64 `json:"total"`
	HighConfidence int64 `json:"high_confidence"`
	AddedToday     int64 `json:"added_today"`
}

type CacheStats struct {
	Entries    int64 `json:"entries"`
	HotQueries int64 `json:"hot_queries"`
}

type SystemStatus struct {
	QA            QAStats    `json:"qa"`
	Cache         CacheStats `json:"cache"`
	VectorBackend string     `json:"vector_backend"`
	Errors        []string   `json:"errors,omitempty"`
}

type ImportReport struct {
	Inserted int      `json:"inserted"`
	Skipped  int      `json:"skipped"`
	Problems []string `json:"problems,omitempty"`
}
