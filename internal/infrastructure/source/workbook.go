package source

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/campus-assistant/internal/core/knowledge"
)

// readWorkbook reads the first sheet. The first row names the columns;
// list columns are separated by commas, semicolons or pipes.
func readWorkbook(path string) ([]knowledge.DirectRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	columns := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := columns["question"]; !ok {
		return nil, fmt.Errorf("workbook %s has no question column", path)
	}
	if _, ok := columns["answer"]; !ok {
		return nil, fmt.Errorf("workbook %s has no answer column", path)
	}

	cell := func(row []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	out := make([]knowledge.DirectRecord, 0, len(rows)-1)
	for n, row := range rows[1:] {
		rec := knowledge.DirectRecord{
			Question:           cell(row, "question"),
			Answer:             cell(row, "answer"),
			Keywords:           splitList(cell(row, "keywords")),
			Categories:         splitList(cell(row, "categories")),
			QuestionVariations: splitList(cell(row, "question_variations")),
		}
		if raw := cell(row, "confidence_score"); raw != "" {
			score, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				slog.Warn("direct_record_bad_confidence", "path", path, "row", n+2, "value", raw)
			} else {
				rec.ConfidenceScore = &score
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == '|'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
