package domain

import "time"

type ResolutionRequest struct {
	Query     string `json:"query"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

const (
	IntentGeneral      = 0
	IntentProfessional = 1
)

type Intent struct {
	ID         int     `json:"intent_id"`
	Label      string  `json:"intent_label"`
	Confidence float64 `json:"confidence"`
	Fallback   bool    `json:"fallback,omitempty"`
}

// IntentPrediction is the raw output of a classifier delegate.
type IntentPrediction struct {
	Label      int     `json:"label"`
	Confidence float64 `json:"confidence"`
}

type RAGPath string

const (
	PathGeneralKnowledge RAGPath = "general_knowledge"
	PathProfessional     RAGPath = "professional_consultation"
	PathFallback         RAGPath = "fallback"
)

type RAGDetails struct {
	Intent       Intent              `json:"intent"`
	Path         RAGPath             `json:"path"`
	Documents    []RetrievedDocument `json:"documents"`
	Optimization *OptimizationResult `json:"optimization,omitempty"`
	Error        string              `json:"error,omitempty"`
}

type Resolution struct {
	Query               string      `json:"query"`
	Reply               string      `json:"reply"`
	Source              Source      `json:"source"`
	ResponseTimeSeconds float64     `json:"response_time"`
	Timestamp           time.Time   `json:"timestamp"`
	UserID              string      `json:"user_id,omitempty"`
	SessionID           string      `json:"session_id,omitempty"`
	RAG                 *RAGDetails `json:"rag_details,omitempty"`
	Error               string      `json:"error,omitempty"`
}
