package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
	"github.com/kirillkom/sports-support-rag/internal/core/ports"
)

const (
	maxAnswerRunes   = 5000
	defaultHotLimit  = 10
	maxHotLimit      = 100
	manualConfidence = 1.0
)

type QAAdminUseCase struct {
	store         ports.QAStore
	cache         ports.AnswerCache
	cacheTTL      time.Duration
	vectorBackend string
}

func NewQAAdminUseCase(store ports.QAStore, cache ports.AnswerCache, cacheTTL time.Duration, vectorBackend string) *QAAdminUseCase {
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	return &QAAdminUseCase{
		store:         store,
		cache:         cache,
		cacheTTL:      cacheTTL,
		vectorBackend: vectorBackend,
	}
}

func (uc *QAAdminUseCase) AddQAPair(ctx context.Context, question, answer, category string) (*domain.QAPair, error) {
	pair, err := validatePair(domain.QAPair{
		Question:   question,
		Answer:     answer,
		Category:   category,
		Confidence: manualConfidence,
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "add qa pair", err)
	}

	saved, err := uc.store.Insert(ctx, pair)
	if err != nil {
		return nil, fmt.Errorf("insert qa pair: %w", err)
	}

	if err := uc.cache.Set(ctx, domain.Fingerprint(saved.Question), *saved, uc.cacheTTL); err != nil {
		slog.Warn("qa_cache_write_failed", "qa_id", saved.ID, "error", err)
		return saved, nil
	}
	if _, err := uc.cache.IncrementCount(ctx, domain.NormalizeQuery(saved.Question)); err != nil {
		slog.Warn("hot_query_increment_failed", "qa_id", saved.ID, "error", err)
	}
	return saved, nil
}

func (uc *QAAdminUseCase) HotQueries(ctx context.Context, limit int) ([]domain.HotQuery, error) {
	if limit <= 0 {
		limit = defaultHotLimit
	}
	if limit > maxHotLimit {
		limit = maxHotLimit
	}
	hot, err := uc.cache.HotQueries(ctx, limit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTierLookup, "hot queries", err)
	}
	return hot, nil
}

// Status reports whatever statistics are reachable; failures are listed in Errors.
func (uc *QAAdminUseCase) Status(ctx context.Context) domain.SystemStatus {
	status := domain.SystemStatus{VectorBackend: uc.vectorBackend}

	qa, err := uc.store.Stats(ctx)
	if err != nil {
		status.Errors = append(status.Errors, "store: "+err.Error())
	} else {
		status.QA = qa
	}

	cache, err := uc.cache.Stats(ctx)
	if err != nil {
		status.Errors = append(status.Errors, "cache: "+err.Error())
	} else {
		status.Cache = cache
	}
	return status
}

// ImportQAPairs inserts valid rows and reports the rest without aborting.
func (uc *QAAdminUseCase) ImportQAPairs(ctx context.Context, pairs []domain.QAPair) (domain.ImportReport, error) {
	var report domain.ImportReport
	for i, pair := range pairs {
		if pair.Confidence == 0 {
			pair.Confidence = manualConfidence
		}
		valid, err := validatePair(pair)
		if err != nil {
			report.Skipped++
			report.Problems = append(report.Problems, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		if _, err := uc.store.Insert(ctx, valid); err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.Skipped++
			report.Problems = append(report.Problems, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		report.Inserted++
	}
	return report, nil
}

func validatePair(pair domain.QAPair) (domain.QAPair, error) {
	pair.Question = strings.TrimSpace(pair.Question)
	pair.Answer = strings.TrimSpace(pair.Answer)
	pair.Category = strings.TrimSpace(pair.Category)
	switch {
	case pair.Question == "":
		return pair, errors.New("question is required")
	case pair.Answer == "":
		return pair, errors.New("answer is required")
	case utf8.RuneCountInString(pair.Question) > maxQueryRunes:
		return pair, fmt.Errorf("question exceeds %d characters", maxQueryRunes)
	case utf8.RuneCountInString(pair.Answer) > maxAnswerRunes:
		return pair, fmt.Errorf("answer exceeds %d characters", maxAnswerRunes)
	case pair.Confidence < 0 || pair.Confidence > 1:
		return pair, fmt.Errorf("confidence %v out of range", pair.Confidence)
	}
	return pair, nil
}
