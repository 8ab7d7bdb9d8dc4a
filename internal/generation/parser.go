package generation

import (
	"regexp"
	"strings"

	"crisis-quiz-service/internal/domain"
)

var (
	fenceLine    = regexp.MustCompile("(?m)^\\s*```[A-Za-z0-9_+-]*\\s*$")
	questionLine = regexp.MustCompile(`(?i)^question(?:\s*\d+)?(?:\s*[:.)\-]\s*|\s+|$)(.*)$`)
	optionLine   = regexp.MustCompile(`^([A-Za-z])\s*[).:\-]\s*(.*)$`)
	headingMarks = regexp.MustCompile(`^#+\s*`)
)

// Parser turns free text from the text-generation service into a QuestionSet.
// The zero value is not usable; start from DefaultParser.
type Parser struct {
	QuestionCount      int
	OptionsPerQuestion int
	Score              Scorer
}

// DefaultParser expects five questions of four options scored by position.
func DefaultParser() Parser {
	return Parser{
		QuestionCount:      domain.DefaultQuestionCount,
		OptionsPerQuestion: domain.DefaultOptionsPerQuestion,
		Score:              PointsForPosition,
	}
}

// ParserFor sizes a parser from the request that produced the prompt.
func ParserFor(req domain.ScenarioRequest) Parser {
	p := DefaultParser()
	if req.QuestionCount > 0 {
		p.QuestionCount = req.QuestionCount
	}
	if req.OptionsPerQuestion > 0 {
		p.OptionsPerQuestion = req.OptionsPerQuestion
	}
	return p
}

// Parse runs the default parser over raw.
func Parse(raw, label string) (domain.QuestionSet, error) {
	return DefaultParser().Parse(raw, label)
}

// Parse extracts questions from raw. Input that is blank once fences and
// emphasis are stripped yields domain.ErrEmptyResponse. When fewer questions than requested survive, the
// recovered set is returned with a *domain.PartialResultError. Questions whose
// option count is not exactly OptionsPerQuestion are dropped, never padded.
func (p Parser) Parse(raw, label string) (domain.QuestionSet, error) {
	set := domain.QuestionSet{Label: label, Questions: []domain.QuestionRecord{}}
	if strings.TrimSpace(raw) == "" {
		return set, domain.ErrEmptyResponse
	}

	score := p.Score
	if score == nil {
		score = PointsForPosition
	}

	var (
		current    string
		inQuestion bool
		pending    []string
	)
	flush := func() {
		if inQuestion && current != "" && len(pending) == p.OptionsPerQuestion {
			set.Questions = append(set.Questions, newQuestionRecord(current, pending, score))
		}
	}

	lines := splitLines(raw)
	if len(lines) == 0 {
		return set, domain.ErrEmptyResponse
	}
	for _, line := range lines {
		if m := questionLine.FindStringSubmatch(line); m != nil {
			flush()
			current = strings.TrimSpace(m[1])
			inQuestion = true
			pending = pending[:0]
			continue
		}
		if m := optionLine.FindStringSubmatch(line); m != nil {
			letter := strings.ToUpper(m[1])[0]
			text := strings.TrimSpace(m[2])
			if int(letter-'A') < p.OptionsPerQuestion && text != "" {
				pending = append(pending, text)
			}
			continue
		}
		// A bare "Question 3:" header may carry its body on the following line.
		if inQuestion && current == "" && len(pending) == 0 {
			current = line
		}
	}
	flush()

	if len(set.Questions) > p.QuestionCount {
		set.Questions = set.Questions[:p.QuestionCount]
	}
	if len(set.Questions) < p.QuestionCount {
		return set, &domain.PartialResultError{Requested: p.QuestionCount, Recovered: len(set.Questions)}
	}
	return set, nil
}

func newQuestionRecord(prompt string, texts []string, score Scorer) domain.QuestionRecord {
	options := make([]domain.OptionRecord, len(texts))
	for i, text := range texts {
		options[i] = domain.OptionRecord{Text: text, Points: score(i)}
	}
	return domain.QuestionRecord{Prompt: prompt, Options: options}
}

// splitLines strips code fences and emphasis markers, trims every line and
// drops the blank ones.
func splitLines(raw string) []string {
	raw = fenceLine.ReplaceAllString(raw, "")
	raw = strings.ReplaceAll(raw, "```", "")

	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = stripEmphasis(line)
		line = headingMarks.ReplaceAllString(strings.TrimSpace(line), "")
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func stripEmphasis(s string) string {
	return strings.ReplaceAll(s, "**", "")
}
