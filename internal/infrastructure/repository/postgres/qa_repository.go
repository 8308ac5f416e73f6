package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
)

// Tokenizer splits a question into search terms. Postgres has no Chinese
// parser, so terms are precomputed and indexed with the 'simple' config.
type Tokenizer func(text string) []string

type QARepository struct {
	db       *sql.DB
	tokenize Tokenizer
}

func NewQARepository(db *sql.DB, tokenize Tokenizer) *QARepository {
	if tokenize == nil {
		tokenize = strings.Fields
	}
	return &QARepository{db: db, tokenize: tokenize}
}

// Search returns the best pair whose question shares a term with query.
// Ranking is confidence DESC then updated_at DESC; nil means no match.
func (r *QARepository) Search(ctx context.Context, query string, minConfidence float64) (*domain.QAPair, error) {
	tsquery := r.buildTSQuery(query)
	if tsquery == "" {
		return nil, nil
	}

	row := r.db.QueryRowContext(ctx, `
SELECT id, question, answer, category, confidence, created_at, updated_at
FROM qa_pairs
WHERE question_tsv @@ to_tsquery('simple', $1)
  AND confidence >= $2
ORDER BY confidence DESC, updated_at DESC
LIMIT 1
`, tsquery, minConfidence)

	var pair domain.QAPair
	err := row.Scan(&pair.ID, &pair.Question, &pair.Answer, &pair.Category, &pair.Confidence, &pair.CreatedAt, &pair.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("search qa pairs: %w", err)
	}
	return &pair, nil
}

func (r *QARepository) Insert(ctx context.Context, pair domain.QAPair) (*domain.QAPair, error) {
	terms := strings.Join(r.terms(pair.Question), " ")
	row := r.db.QueryRowContext(ctx, `
INSERT INTO qa_pairs (question, question_terms, answer, category, confidence)
VALUES ($1,$2,$3,$4,$5)
RETURNING id, created_at, updated_at
`, pair.Question, terms, pair.Answer, pair.Category, pair.Confidence)

	if err := row.Scan(&pair.ID, &pair.CreatedAt, &pair.UpdatedAt); err != nil {
		return nil, fmt.Errorf("insert qa pair: %w", err)
	}
	return &pair, nil
}

func (r *QARepository) Log(ctx context.Context, entry domain.QueryLogEntry) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO query_logs (user_id, session_id, query, response, source, response_time, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, entry.UserID, entry.SessionID, entry.Query, entry.Response, string(entry.Source), entry.ResponseTimeSeconds, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert query log: %w", err)
	}
	return nil
}

func (r *QARepository) Stats(ctx context.Context) (domain.QAStats, error) {
	var stats domain.QAStats
	err := r.db.QueryRowContext(ctx, `
SELECT
	COUNT(*),
	COUNT(*) FILTER (WHERE confidence >= 0.8),
	COUNT(*) FILTER (WHERE created_at >= date_trunc('day', now()))
FROM qa_pairs
`).Scan(&stats.Total, &stats.HighConfidence, &stats.AddedToday)
	if err != nil {
		return domain.QAStats{}, fmt.Errorf("qa stats: %w", err)
	}
	return stats, nil
}

func (r *QARepository) terms(text string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, tok := range r.tokenize(strings.ToLower(text)) {
		tok = strings.TrimSpace(tok)
		if !hasWordRune(tok) {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// buildTSQuery ORs the quoted query terms, mirroring natural-language match.
func (r *QARepository) buildTSQuery(query string) string {
	terms := r.terms(query)
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ReplaceAll(t, `\`, `\\`)
		t = strings.ReplaceAll(t, "'", "''")
		quoted = append(quoted, "'"+t+"'")
	}
	return strings.Join(quoted, " | ")
}

func hasWordRune(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
