package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Accepted field names per logical field, in priority order.
var (
	promptFields      = []string{"question", "q"}
	optionListFields  = []string{"options", "opts"}
	optionDiscrete    = []string{"a", "b", "c", "d"}
	correctFields     = []string{"correctIndex", "correct", "ans"}
	explanationFields = []string{"explanation", "exp"}
	difficultyFields  = []string{"difficulty"}
	categoryFields    = []string{"categoryId", "category"}
	tagFields         = []string{"tags"}
	idFields          = []string{"id"}
)

// ParseRecords decodes raw as a JSON array of loosely-typed records.
func ParseRecords(raw []byte) ([]Candidate, []Rejection, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var container any
	if err := dec.Decode(&container); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedBatch, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("%w: trailing data after records", ErrMalformedBatch)
	}
	items, ok := container.([]any)
	if !ok {
		return nil, nil, fmt.Errorf("%w: expected an array of records", ErrMalformedBatch)
	}
	return ParseRecordValues(items)
}

// ParseRecordValues resolves each record's fields through the alias lists.
// Records that do not resolve a prompt and two options are rejected; the
// batch itself only fails when it is empty.
func ParseRecordValues(items []any) ([]Candidate, []Rejection, error) {
	if len(items) == 0 {
		return nil, nil, ErrNoQuestionsFound
	}

	candidates := make([]Candidate, 0, len(items))
	rejected := make([]Rejection, 0)
	for i, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			rejected = append(rejected, Rejection{Index: i, Reason: "record is not an object"})
			continue
		}
		c, reason := candidateFromRecord(i, rec)
		if reason != "" {
			rejected = append(rejected, Rejection{Index: i, Reason: reason})
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates, rejected, nil
}

func candidateFromRecord(index int, rec map[string]any) (Candidate, string) {
	c := Candidate{
		Index:       index,
		ID:          stringField(rec, idFields),
		CategoryID:  stringField(rec, categoryFields),
		Prompt:      stringField(rec, promptFields),
		Explanation: stringField(rec, explanationFields),
		Difficulty:  stringField(rec, difficultyFields),
		Tags:        stringListField(rec, tagFields),
	}
	if c.Prompt == "" {
		return Candidate{}, "missing question text"
	}

	c.Options = optionsFromRecord(rec)
	if len(c.Options) < 2 {
		return Candidate{}, fmt.Sprintf("need at least 2 options, got %d", len(c.Options))
	}

	// Missing or non-numeric answers default to the first option.
	c.CorrectIndex, _ = intField(rec, correctFields)
	return c, ""
}

func optionsFromRecord(rec map[string]any) []string {
	for _, key := range optionListFields {
		v, ok := rec[key]
		if !ok || v == nil {
			continue
		}
		// Blank entries stay in place so the correct index keeps pointing at
		// the same option; validation rejects them later.
		list := toStringList(v)
		if len(list) == 0 {
			continue
		}
		out := make([]string, len(list))
		for i, s := range list {
			out[i] = strings.TrimSpace(s)
		}
		return out
	}

	out := make([]string, 0, len(optionDiscrete))
	for _, key := range optionDiscrete {
		if s := scalarString(rec[key]); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func stringField(rec map[string]any, keys []string) string {
	for _, key := range keys {
		if s := scalarString(rec[key]); s != "" {
			return s
		}
	}
	return ""
}

func stringListField(rec map[string]any, keys []string) []string {
	for _, key := range keys {
		v, ok := rec[key]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			return cleanStrings(strings.Split(s, ","))
		}
		return cleanStrings(toStringList(v))
	}
	return nil
}

func intField(rec map[string]any, keys []string) (int, bool) {
	for _, key := range keys {
		v, ok := rec[key]
		if !ok || v == nil {
			continue
		}
		if n, ok := toInt(v); ok {
			return n, true
		}
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n), true
		}
		if f, err := t.Float64(); err == nil && f == math.Trunc(f) {
			return int(f), true
		}
	case float64:
		if t == math.Trunc(t) {
			return int(t), true
		}
	case int:
		return t, true
	case int64:
		return int(t), true
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n, true
		}
	}
	return 0, false
}

func toStringList(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, it := range t {
			out = append(out, scalarString(it))
		}
		return out
	default:
		return nil
	}
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func cleanStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
