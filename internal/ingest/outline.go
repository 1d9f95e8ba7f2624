package ingest

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	minOutlineLines   = 6
	maxOutlineOptions = 4
)

var (
	blankLinePattern   = regexp.MustCompile(`\n[ \t]*\n`)
	promptNumberPrefix = regexp.MustCompile(`^\d+\.\s*`)
	optionLinePattern  = regexp.MustCompile(`(?i)^(?:\([0-9a-z]\)|[0-9a-z][.)])\s*(.*)$`)
	answerLinePattern  = regexp.MustCompile(`(?i)^ans(?:wer)?\s*[:.]?\s*([0-9])`)
	explainLinePattern = regexp.MustCompile(`(?i)^(?:explanation|exp)\s*[:.]\s*(.*)$`)
)

// ParseOutline splits free text into blank-line separated blocks and turns
// each block into a Candidate. Blocks with fewer than six non-empty lines are
// reported as rejections and never become candidates. A leading "1." on the
// prompt line is stripped.
//
//	What is 2+2?
//	a) 3
//	b) 4
//	c) 5
//	d) 6
//	Ans: 2
func ParseOutline(text string) ([]Candidate, []Rejection, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	candidates := make([]Candidate, 0)
	rejected := make([]Rejection, 0)

	index := 0
	for _, block := range blankLinePattern.Split(text, -1) {
		lines := nonEmptyLines(block)
		if len(lines) == 0 {
			continue
		}
		if len(lines) < minOutlineLines {
			rejected = append(rejected, Rejection{Index: index, Reason: "block has fewer than 6 lines"})
			index++
			continue
		}
		candidates = append(candidates, parseOutlineBlock(index, lines))
		index++
	}

	if len(candidates) == 0 {
		return nil, rejected, ErrNoQuestionsFound
	}
	return candidates, rejected, nil
}

func parseOutlineBlock(index int, lines []string) Candidate {
	c := Candidate{
		Index:  index,
		Prompt: strings.TrimSpace(promptNumberPrefix.ReplaceAllString(lines[0], "")),
	}

	for _, line := range lines[1:] {
		if m := answerLinePattern.FindStringSubmatch(line); m != nil {
			n, _ := strconv.Atoi(m[1])
			c.CorrectIndex = n - 1
			continue
		}
		if m := explainLinePattern.FindStringSubmatch(line); m != nil {
			c.Explanation = strings.TrimSpace(m[1])
			continue
		}
		if m := optionLinePattern.FindStringSubmatch(line); m != nil {
			if len(c.Options) < maxOutlineOptions {
				c.Options = append(c.Options, strings.TrimSpace(m[1]))
			}
		}
	}
	return c
}

func nonEmptyLines(block string) []string {
	raw := strings.Split(block, "\n")
	out := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
