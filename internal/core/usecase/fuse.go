package usecase

import (
	"sort"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
)

// fuseParentChild joins each child candidate with its parent block. Children
// whose parent is missing are dropped. The result is ordered by combined score
// (stable for ties) and truncated to topM.
func fuseParentChild(children []domain.RetrievedCandidate, parents []domain.DocumentBlock, topM int) []domain.RetrievedDocument {
	byID := make(map[string]domain.DocumentBlock, len(parents))
	for _, p := range parents {
		byID[p.BlockID] = p
	}

	out := make([]domain.RetrievedDocument, 0, len(children))
	for _, child := range children {
		parent, ok := byID[child.ParentID]
		if !ok {
			continue
		}
		title := parent.Title
		if title == "" {
			title = child.Title
		}
		out = append(out, domain.RetrievedDocument{
			BlockID:       child.BlockID,
			ParentID:      child.ParentID,
			Title:         title,
			Content:       parent.Content + "\n\n" + child.Content,
			Category:      child.Category,
			Similarity:    child.Similarity,
			CombinedScore: child.CombinedScore,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CombinedScore > out[j].CombinedScore
	})
	if topM > 0 && len(out) > topM {
		out = out[:topM]
	}
	return out
}
