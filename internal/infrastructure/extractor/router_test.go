package extractor

import (
	"context"
	"testing"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
)

type namedExtractor string

func (n namedExtractor) Extract(context.Context, *domain.Document) (string, error) {
	return string(n), nil
}

func TestByMimeRouting(t *testing.T) {
	router := NewByMime(namedExtractor("text")).
		Register(namedExtractor("pdf"), "application/pdf", ".pdf")

	cases := []struct {
		name string
		doc  domain.Document
		want string
	}{
		{name: "mime", doc: domain.Document{MimeType: "application/pdf", Filename: "a.bin"}, want: "pdf"},
		{name: "mime params", doc: domain.Document{MimeType: "Application/PDF; charset=binary"}, want: "pdf"},
		{name: "extension", doc: domain.Document{MimeType: "application/octet-stream", Filename: "Catalog.PDF"}, want: "pdf"},
		{name: "fallback", doc: domain.Document{MimeType: "text/plain", Filename: "notes.txt"}, want: "text"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := router.Extract(context.Background(), &tc.doc)
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("Extract() routed to %q, want %q", got, tc.want)
			}
		})
	}
}
