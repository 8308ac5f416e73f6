package extractor

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
	"github.com/kirillkom/sports-support-rag/internal/core/ports"
)

// ByMime dispatches extraction on the document mime type, falling back to
// the file extension when the upload carried a generic type.
type ByMime struct {
	byType   map[string]ports.TextExtractor
	fallback ports.TextExtractor
}

func NewByMime(fallback ports.TextExtractor) *ByMime {
	return &ByMime{byType: make(map[string]ports.TextExtractor), fallback: fallback}
}

// Register binds an extractor to a mime type and its file extensions.
func (r *ByMime) Register(extractor ports.TextExtractor, mimeType string, extensions ...string) *ByMime {
	r.byType[strings.ToLower(mimeType)] = extractor
	for _, ext := range extensions {
		r.byType[strings.ToLower(ext)] = extractor
	}
	return r
}

func (r *ByMime) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	return r.resolve(doc).Extract(ctx, doc)
}

func (r *ByMime) resolve(doc *domain.Document) ports.TextExtractor {
	mimeType := strings.ToLower(strings.TrimSpace(doc.MimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if ex, ok := r.byType[mimeType]; ok {
		return ex
	}
	if ex, ok := r.byType[strings.ToLower(filepath.Ext(doc.Filename))]; ok {
		return ex
	}
	return r.fallback
}
