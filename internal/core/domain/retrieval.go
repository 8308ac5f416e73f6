package domain

type BlockType string

const (
	BlockParent BlockType = "parent"
	BlockChild  BlockType = "child"
)

// DocumentBlock is one granularity of an ingested document. Children always
// reference a parent; parents have no parent.
type DocumentBlock struct {
	BlockID    string    `json:"block_id"`
	ParentID   string    `json:"parent_id,omitempty"`
	DocumentID string    `json:"document_id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Category   string    `json:"category"`
	BlockType  BlockType `json:"block_type"`
	Position   int       `json:"position"`
}

type SparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

func (v SparseVector) Empty() bool {
	return len(v.Indices) == 0
}

// Dot computes the inner product of two sparse vectors with sorted indices.
func (v SparseVector) Dot(other SparseVector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(v.Indices) && j < len(other.Indices) {
		switch {
		case v.Indices[i] == other.Indices[j]:
			sum += float64(v.Values[i]) * float64(other.Values[j])
			i++
			j++
		case v.Indices[i] < other.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// RetrievedCandidate is a child block hit from the hybrid index.
type RetrievedCandidate struct {
	BlockID       string  `json:"block_id"`
	ParentID      string  `json:"parent_id"`
	Title         string  `json:"title"`
	Content       string  `json:"content"`
	Category      string  `json:"category"`
	Similarity    float64 `json:"similarity"`
	CombinedScore float64 `json:"combined_score"`
}

// RetrievedDocument is a child candidate fused with its parent block.
type RetrievedDocument struct {
	BlockID       string  `json:"doc_id"`
	ParentID      string  `json:"parent_id"`
	Title         string  `json:"title"`
	Content       string  `json:"content"`
	Category      string  `json:"category"`
	Similarity    float64 `json:"similarity"`
	CombinedScore float64 `json:"combined_score"`
}

// HybridWeights blends dense similarity with max-normalized sparse scores.
type HybridWeights struct {
	Dense  float64
	Sparse float64
}

func DefaultHybridWeights() HybridWeights {
	return HybridWeights{Dense: 0.7, Sparse: 0.3}
}

// Combine returns the fused score for one candidate. maxSparse is the highest
// sparse score within the same result set.
func (w HybridWeights) Combine(dense, sparse, maxSparse float64) float64 {
	normalized := 0.0
	if maxSparse > 0 {
		normalized = sparse / maxSparse
	}
	return w.Dense*dense + w.Sparse*normalized
}
