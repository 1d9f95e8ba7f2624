package ingest

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ParseWorkbook reads the first sheet of an .xlsx workbook. The header row
// supplies record keys, so a sheet with columns question,a,b,c,d,ans resolves
// through the same aliases as a JSON record batch. Candidate and rejection
// indexes count data rows from 0 (sheet row 2), blank rows included.
func ParseWorkbook(r io.Reader) ([]Candidate, []Rejection, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open workbook: %v", ErrMalformedBatch, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("%w: workbook has no sheets", ErrMalformedBatch)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read rows: %v", ErrMalformedBatch, err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%w: sheet is empty", ErrMalformedBatch)
	}

	header := make([]string, len(rows[0]))
	hasPrompt := false
	for i, h := range rows[0] {
		header[i] = canonicalHeader(h)
		for _, key := range promptFields {
			if header[i] == key {
				hasPrompt = true
			}
		}
	}
	if !hasPrompt {
		return nil, nil, fmt.Errorf("%w: missing question column", ErrMalformedBatch)
	}

	items := make([]any, 0, len(rows)-1)
	rowIndex := make([]int, 0, len(rows)-1)
	for n, row := range rows[1:] {
		rec := make(map[string]any, len(header))
		empty := true
		for i, key := range header {
			if key == "" || i >= len(row) {
				continue
			}
			v := strings.TrimSpace(row[i])
			if v != "" {
				empty = false
			}
			rec[key] = v
		}
		if empty {
			continue
		}
		if raw, ok := rec["options"].(string); ok {
			if raw == "" {
				delete(rec, "options")
			} else {
				rec["options"] = splitCellOptions(raw)
			}
		}
		items = append(items, rec)
		rowIndex = append(rowIndex, n)
	}

	candidates, rejected, err := ParseRecordValues(items)
	if err != nil {
		return nil, nil, err
	}
	for i := range candidates {
		candidates[i].Index = rowIndex[candidates[i].Index]
	}
	for i := range rejected {
		rejected[i].Index = rowIndex[rejected[i].Index]
	}
	return candidates, rejected, nil
}

// canonicalHeader maps a header cell onto the record key it stands for.
// Headers are matched case-insensitively against every known alias.
func canonicalHeader(h string) string {
	h = strings.TrimSpace(h)
	for _, group := range [][]string{promptFields, optionListFields, optionDiscrete, correctFields, explanationFields, difficultyFields, categoryFields, tagFields, idFields} {
		for _, key := range group {
			if strings.EqualFold(h, key) {
				return key
			}
		}
	}
	return strings.ToLower(h)
}

// splitCellOptions splits a single "options" cell on "|" or newlines.
func splitCellOptions(raw string) []any {
	sep := "|"
	if !strings.Contains(raw, sep) {
		sep = "\n"
	}
	parts := strings.Split(raw, sep)
	out := make([]any, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
