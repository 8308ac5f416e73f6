package xlsx

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
)

var headerNames = map[string]bool{
	"question": true,
	"问题":       true,
	"问":        true,
}

// ReadQAPairs reads question, answer, category and an optional confidence
// from the named sheet (the first sheet when empty). A header row is skipped
// when its first cell names the question column.
func ReadQAPairs(r io.Reader, sheet string) ([]domain.QAPair, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open workbook", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, domain.WrapError(domain.ErrInvalidInput, "open workbook", fmt.Errorf("workbook has no sheets"))
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read sheet "+sheet, err)
	}

	pairs := make([]domain.QAPair, 0, len(rows))
	for i, cells := range rows {
		if i == 0 && len(cells) > 0 && headerNames[strings.ToLower(strings.TrimSpace(cells[0]))] {
			continue
		}
		if isBlank(cells) {
			continue
		}
		pairs = append(pairs, domain.QAPair{
			Question:   cell(cells, 0),
			Answer:     cell(cells, 1),
			Category:   cell(cells, 2),
			Confidence: confidence(cell(cells, 3)),
		})
	}
	return pairs, nil
}

func cell(cells []string, i int) string {
	if i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}

// confidence returns 0 (default) for an empty cell and -1 for an unreadable
// one, which validation rejects as out of range.
func confidence(raw string) float64 {
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return -1
	}
	return v
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
