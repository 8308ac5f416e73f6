package chunking

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
)

const defaultMinChildChars = 10

// BlockSplitter cuts a document into one parent block (title plus the
// leading paragraphs) and one child block per sufficiently long paragraph.
type BlockSplitter struct {
	MinChildChars int
}

func NewBlockSplitter(minChildChars int) *BlockSplitter {
	if minChildChars <= 0 {
		minChildChars = defaultMinChildChars
	}
	return &BlockSplitter{MinChildChars: minChildChars}
}

func (s *BlockSplitter) Split(documentID, title, category, text string) ([]domain.DocumentBlock, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "split document", fmt.Errorf("document id is required"))
	}

	paragraphs := Paragraphs(text)
	if len(paragraphs) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "split document", fmt.Errorf("document %s has no paragraphs", documentID))
	}

	parentID := documentID + "_parent"
	parentContent := title + "\n\n" + paragraphs[0]
	if len(paragraphs) > 1 {
		parentContent += "\n\n" + paragraphs[1]
	}

	blocks := make([]domain.DocumentBlock, 0, len(paragraphs)+1)
	blocks = append(blocks, domain.DocumentBlock{
		BlockID:    parentID,
		DocumentID: documentID,
		Title:      title,
		Content:    parentContent,
		Category:   category,
		BlockType:  domain.BlockParent,
	})

	for i, paragraph := range paragraphs {
		if utf8.RuneCountInString(paragraph) < s.MinChildChars {
			continue
		}
		blocks = append(blocks, domain.DocumentBlock{
			BlockID:    fmt.Sprintf("%s_child_%d", documentID, i),
			ParentID:   parentID,
			DocumentID: documentID,
			Title:      fmt.Sprintf("%s - 段落%d", title, i+1),
			Content:    paragraph,
			Category:   category,
			BlockType:  domain.BlockChild,
			Position:   i,
		})
	}
	return blocks, nil
}

// Paragraphs splits text on newlines and returns the cleaned, non-empty lines.
func Paragraphs(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		cleaned := cleanParagraph(line)
		if cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}

const keptPunctuation = ".,!?;:()（）【】\"“”'‘’、，。！？；：-"

func cleanParagraph(line string) string {
	var b strings.Builder
	b.Grow(len(line))
	space := false
	for _, r := range line {
		switch {
		case unicode.IsSpace(r):
			space = true
			continue
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', unicode.Is(unicode.Han, r), strings.ContainsRune(keptPunctuation, r):
		default:
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}
