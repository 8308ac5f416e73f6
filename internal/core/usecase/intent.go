package usecase

import (
	"context"
	"log/slog"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
	"github.com/kirillkom/sports-support-rag/internal/core/ports"
)

const (
	LabelGeneral      = "通用知识"
	LabelProfessional = "专业性咨询"

	fallbackIntentConfidence = 0.5
)

// IntentGate routes queries to the general or professional RAG path.
type IntentGate struct {
	classifier ports.IntentClassifier
	threshold  float64
}

func NewIntentGate(classifier ports.IntentClassifier, threshold float64) *IntentGate {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.7
	}
	return &IntentGate{classifier: classifier, threshold: threshold}
}

// Classify never fails: delegate errors degrade to a general intent with
// Fallback set, and low-confidence professional labels are demoted.
func (g *IntentGate) Classify(ctx context.Context, query string) domain.Intent {
	prediction, err := g.classifier.Classify(ctx, query)
	if err != nil {
		slog.Warn("intent_classification_failed", "error", domain.WrapError(domain.ErrClassification, "classify intent", err))
		return domain.Intent{
			ID:         domain.IntentGeneral,
			Label:      LabelGeneral,
			Confidence: fallbackIntentConfidence,
			Fallback:   true,
		}
	}

	confidence := clamp01(prediction.Confidence)
	if prediction.Label == domain.IntentProfessional && confidence >= g.threshold {
		return domain.Intent{ID: domain.IntentProfessional, Label: LabelProfessional, Confidence: confidence}
	}
	return domain.Intent{ID: domain.IntentGeneral, Label: LabelGeneral, Confidence: confidence}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
