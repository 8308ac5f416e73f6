package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
	"github.com/kirillkom/sports-support-rag/internal/core/ports"
)

type ProcessDocumentUseCase struct {
	repo       ports.DocumentRepository
	blocks     ports.BlockRepository
	extractor  ports.TextExtractor
	classifier ports.DocumentClassifier
	splitter   ports.BlockSplitter
	embedder   ports.Embedder
	index      ports.VectorIndex
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	blocks ports.BlockRepository,
	extractor ports.TextExtractor,
	classifier ports.DocumentClassifier,
	splitter ports.BlockSplitter,
	embedder ports.Embedder,
	index ports.VectorIndex,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		repo:       repo,
		blocks:     blocks,
		extractor:  extractor,
		classifier: classifier,
		splitter:   splitter,
		embedder:   embedder,
		index:      index,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.markStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	if err := uc.processPipeline(ctx, documentID); err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.markStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, documentID string) error {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}

	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("empty extracted text"))
	}

	classification, err := uc.classifier.Classify(ctx, text)
	if err != nil {
		return fmt.Errorf("classify document: %w", err)
	}

	category := doc.Category
	if category == "" {
		category = classification.ProductType
	}

	blocks, err := uc.splitter.Split(doc.ID, doc.Title, category, text)
	if err != nil {
		return fmt.Errorf("split blocks: %w", err)
	}

	if err := uc.blocks.ReplaceBlocks(ctx, doc.ID, blocks); err != nil {
		return fmt.Errorf("persist blocks: %w", err)
	}

	dense, sparse, err := uc.embed(ctx, blocks)
	if err != nil {
		return err
	}

	if err := uc.index.IndexBlocks(ctx, blocks, dense, sparse); err != nil {
		return fmt.Errorf("index blocks: %w", err)
	}

	if err := uc.repo.SaveClassification(ctx, doc.ID, classification, category, len(blocks)); err != nil {
		return fmt.Errorf("save classification: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) embed(ctx context.Context, blocks []domain.DocumentBlock) ([][]float32, []domain.SparseVector, error) {
	texts := make([]string, len(blocks))
	for i, b := range blocks {
		texts[i] = b.Title + "\n" + b.Content
	}

	dense, err := uc.embedder.DenseBatch(ctx, texts)
	if err != nil {
		return nil, nil, fmt.Errorf("embed blocks: %w", err)
	}
	if len(dense) != len(blocks) {
		return nil, nil, domain.WrapError(
			domain.ErrInvalidInput,
			"embed blocks",
			fmt.Errorf("vectors/blocks mismatch: %d/%d", len(dense), len(blocks)),
		)
	}

	sparse := make([]domain.SparseVector, len(blocks))
	for i, text := range texts {
		v, err := uc.embedder.Sparse(ctx, text)
		if err != nil {
			return nil, nil, fmt.Errorf("sparse embed block %s: %w", blocks[i].BlockID, err)
		}
		sparse[i] = v
	}
	return dense, sparse, nil
}

func (uc *ProcessDocumentUseCase) markStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, documentID, status, errMessage)
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, documentID, domain.StatusFailed, processErr.Error())
}
