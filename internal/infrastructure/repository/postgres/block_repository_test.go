package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
)

func TestReplaceBlocksInsertsParentsFirst(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBlockRepository(db)

	blocks := []domain.DocumentBlock{
		{BlockID: "doc_child_0", ParentID: "doc_parent", Title: "护膝 - 段落1", Content: "c", BlockType: domain.BlockChild},
		{BlockID: "doc_parent", Title: "护膝", Content: "p", BlockType: domain.BlockParent},
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM document_blocks").WithArgs("doc").WillReturnResult(sqlmock.NewResult(0, 0))
	prep := mock.ExpectPrepare("INSERT INTO document_blocks")
	prep.ExpectExec().WithArgs("doc_parent", "doc", nil, "护膝", "p", "", "parent", 0).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs("doc_child_0", "doc", "doc_parent", "护膝 - 段落1", "c", "", "child", 0).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.ReplaceBlocks(context.Background(), "doc", blocks); err != nil {
		t.Fatalf("ReplaceBlocks() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReplaceBlocksRollsBackOnInsertError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBlockRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM document_blocks").WillReturnResult(sqlmock.NewResult(0, 2))
	prep := mock.ExpectPrepare("INSERT INTO document_blocks")
	prep.ExpectExec().WillReturnError(errors.New("fk violation"))
	mock.ExpectRollback()

	err := repo.ReplaceBlocks(context.Background(), "doc", []domain.DocumentBlock{{BlockID: "doc_parent", BlockType: domain.BlockParent}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
