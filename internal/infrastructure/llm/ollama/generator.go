package ollama

import (
	"context"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
)

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

// Complete answers from documents, or from general knowledge when isGeneral is
// set or no documents were retrieved.
func (g *Generator) Complete(ctx context.Context, query string, documents []domain.RetrievedDocument, isGeneral bool) (string, error) {
	var prompt string
	switch {
	case isGeneral:
		prompt = buildGeneralPrompt(query)
	case len(documents) == 0:
		prompt = buildNoContextPrompt(query)
	default:
		prompt = buildAnswerPrompt(query, documents)
	}
	return g.client.generateText(ctx, prompt)
}
