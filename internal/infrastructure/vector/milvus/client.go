package milvus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
)

const (
	fieldBlockID    = "block_id"
	fieldParentID   = "parent_id"
	fieldDocumentID = "document_id"
	fieldTitle      = "title"
	fieldContent    = "content"
	fieldCategory   = "category"
	fieldBlockType  = "block_type"
	fieldPosition   = "position"
	fieldSparse     = "sparse_terms"
	fieldDense      = "dense"

	maxVarChar = 65535
)

var outputFields = []string{
	fieldBlockID, fieldParentID, fieldDocumentID, fieldTitle,
	fieldContent, fieldCategory, fieldBlockType, fieldPosition, fieldSparse,
}

type Options struct {
	Address    string
	Username   string
	Password   string
	Database   string
	Collection string
	Timeout    time.Duration
	Weights    domain.HybridWeights
	// CandidateFactor widens the dense search so sparse rescoring has more to reorder.
	CandidateFactor int
}

// Index keeps blocks in a Milvus collection. Dense similarity comes from the
// ANN search; the sparse score is computed client-side from the stored terms.
type Index struct {
	client          *milvusclient.Client
	collection      string
	weights         domain.HybridWeights
	candidateFactor int

	ensureMu sync.Mutex
	ensured  bool
}

func New(ctx context.Context, opts Options) (*Index, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Collection == "" {
		opts.Collection = "catalog_blocks"
	}
	if opts.Weights == (domain.HybridWeights{}) {
		opts.Weights = domain.DefaultHybridWeights()
	}
	if opts.CandidateFactor <= 0 {
		opts.CandidateFactor = 3
	}

	connectCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	c, err := milvusclient.New(connectCtx, &milvusclient.ClientConfig{
		Address:  opts.Address,
		Username: opts.Username,
		Password: opts.Password,
		DBName:   opts.Database,
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "connect milvus", err)
	}
	return &Index{
		client:          c,
		collection:      opts.Collection,
		weights:         opts.Weights,
		candidateFactor: opts.CandidateFactor,
	}, nil
}

func (x *Index) Name() string {
	return "milvus"
}

func (x *Index) Close(ctx context.Context) error {
	return x.client.Close(ctx)
}

// EnsureCollection creates, indexes and loads the collection if it is missing.
func (x *Index) EnsureCollection(ctx context.Context, dim int) error {
	x.ensureMu.Lock()
	defer x.ensureMu.Unlock()
	if x.ensured {
		return nil
	}

	exists, err := x.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(x.collection))
	if err != nil {
		return fmt.Errorf("check milvus collection: %w", err)
	}
	if !exists {
		if err := x.createCollection(ctx, dim); err != nil {
			return err
		}
		slog.Info("milvus_collection_created", "collection", x.collection, "dim", dim)
	}

	if err := x.load(ctx); err != nil {
		return err
	}
	x.ensured = true
	return nil
}

func (x *Index) createCollection(ctx context.Context, dim int) error {
	schema := entity.NewSchema().
		WithName(x.collection).
		WithDescription("catalog parent/child blocks").
		WithAutoID(false)

	schema.WithField(entity.NewField().
		WithName(fieldBlockID).
		WithDataType(entity.FieldTypeVarChar).
		WithMaxLength(256).
		WithIsPrimaryKey(true))
	for _, f := range []struct {
		name   string
		maxLen int64
	}{
		{fieldParentID, 256},
		{fieldDocumentID, 128},
		{fieldTitle, 1024},
		{fieldContent, maxVarChar},
		{fieldCategory, 128},
		{fieldBlockType, 16},
		{fieldSparse, maxVarChar},
	} {
		schema.WithField(entity.NewField().
			WithName(f.name).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(f.maxLen))
	}
	schema.WithField(entity.NewField().WithName(fieldPosition).WithDataType(entity.FieldTypeInt64))
	schema.WithField(entity.NewField().
		WithName(fieldDense).
		WithDataType(entity.FieldTypeFloatVector).
		WithDim(int64(dim)))

	if err := x.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(x.collection, schema)); err != nil {
		return fmt.Errorf("create milvus collection: %w", err)
	}

	task, err := x.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(x.collection, fieldDense, index.NewIvfFlatIndex(entity.COSINE, 128)))
	if err != nil {
		return fmt.Errorf("create milvus index: %w", err)
	}
	if err := task.Await(ctx); err != nil {
		return fmt.Errorf("wait for milvus index: %w", err)
	}
	return nil
}

func (x *Index) load(ctx context.Context) error {
	task, err := x.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(x.collection))
	if err != nil {
		return fmt.Errorf("load milvus collection: %w", err)
	}
	if err := task.Await(ctx); err != nil {
		return fmt.Errorf("wait for milvus load: %w", err)
	}
	return nil
}
