package vocab

import (
	"context"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
)

// Classifier tags documents with product type, sport category and catalog keywords.
type Classifier struct {
	index *TermIndex
}

func NewClassifier(index *TermIndex) *Classifier {
	return &Classifier{index: index}
}

func (c *Classifier) Classify(_ context.Context, text string) (domain.Classification, error) {
	matches := c.index.Matches(text)
	v := c.index.Vocabulary()
	return domain.Classification{
		ProductType:   c.index.lookup(v.ProductTypes, matches),
		SportCategory: c.index.lookup(v.SportCategories, matches),
		Keywords:      c.index.CatalogKeywords(text, v.KeywordLimit),
	}, nil
}
