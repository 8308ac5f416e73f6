package ollama

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
)

// IntentClassifier asks the intent model for a binary label.
type IntentClassifier struct {
	client *Client
}

func NewIntentClassifier(client *Client) *IntentClassifier {
	return &IntentClassifier{client: client}
}

func (c *IntentClassifier) Classify(ctx context.Context, text string) (domain.IntentPrediction, error) {
	respText, err := c.client.generateJSON(ctx, c.client.intentModel, buildIntentPrompt(text))
	if err != nil {
		return domain.IntentPrediction{}, err
	}

	var result struct {
		Label      *int     `json:"label"`
		Confidence *float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &result); err != nil {
		return domain.IntentPrediction{}, fmt.Errorf("parse intent json: %w", err)
	}
	if result.Label == nil || (*result.Label != domain.IntentGeneral && *result.Label != domain.IntentProfessional) {
		return domain.IntentPrediction{}, fmt.Errorf("intent label missing or out of range in %q", respText)
	}
	confidence := 0.5
	if result.Confidence != nil {
		confidence = *result.Confidence
	}
	if confidence < 0 || confidence > 1 {
		return domain.IntentPrediction{}, fmt.Errorf("intent confidence %v out of range", confidence)
	}
	return domain.IntentPrediction{Label: *result.Label, Confidence: confidence}, nil
}
