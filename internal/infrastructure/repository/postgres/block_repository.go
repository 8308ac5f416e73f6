package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
)

type BlockRepository struct {
	db *sql.DB
}

func NewBlockRepository(db *sql.DB) *BlockRepository {
	return &BlockRepository{db: db}
}

// ReplaceBlocks swaps a document's blocks in one transaction. Parents are
// written before children so the parent_id reference always resolves.
func (r *BlockRepository) ReplaceBlocks(ctx context.Context, documentID string, blocks []domain.DocumentBlock) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin blocks tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_blocks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete old blocks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO document_blocks (block_id, document_id, parent_id, title, content, category, block_type, position)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`)
	if err != nil {
		return fmt.Errorf("prepare block insert: %w", err)
	}
	defer stmt.Close()

	for _, kind := range []domain.BlockType{domain.BlockParent, domain.BlockChild} {
		for _, b := range blocks {
			if b.BlockType != kind {
				continue
			}
			var parentID sql.NullString
			if b.ParentID != "" {
				parentID = sql.NullString{String: b.ParentID, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, b.BlockID, documentID, parentID, b.Title, b.Content, b.Category, string(b.BlockType), b.Position); err != nil {
				return fmt.Errorf("insert block %s: %w", b.BlockID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit blocks tx: %w", err)
	}
	return nil
}
