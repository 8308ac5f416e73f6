package domain

type Strategy string

const (
	StrategyAuto       Strategy = "auto"
	StrategyDirect     Strategy = "direct"
	StrategySubquery   Strategy = "subquery"
	StrategyBacktrack  Strategy = "backtrack"
	StrategyHypothesis Strategy = "hypothesis"
	StrategyFallback   Strategy = "fallback"
)

type OptimizationResult struct {
	Strategy       Strategy `json:"strategy"`
	OriginalQuery  string   `json:"original_query"`
	OptimizedQuery string   `json:"optimized_query"`
	SubQueries     []string `json:"sub_queries"`
	Confidence     float64  `json:"confidence"`
	Explanation    string   `json:"explanation"`
}

type QueryFeatures struct {
	Length            int  `json:"length"`
	TokenCount        int  `json:"token_count"`
	HasQuestionMarker bool `json:"has_question_marker"`
	HasDomainTerm     bool `json:"has_domain_term"`
}

// Token is a segmented word with its part-of-speech tag.
type Token struct {
	Text string
	POS  string
}
