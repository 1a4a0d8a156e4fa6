package app

import (
	"regexp"
	"strings"
)

var (
	questionsBlockRe = regexp.MustCompile(`(?is)\[QUESTIONS_START\](.*?)\[QUESTIONS_END\]`)
	questionItemRe   = regexp.MustCompile(`(?i)Q\d+:`)
	numberedLineRe   = regexp.MustCompile(`^\d+\.\s*`)
	interpretationRe = regexp.MustCompile(`(?is)\[INTERPRETATION_START\](.*?)\[INTERPRETATION_END\]`)
)

// parseQuestions extracts clarifying questions from a stage response.
// Preferred format is the marker block with Qn: items; a plain numbered list
// is accepted as fallback. At most max questions are returned.
func parseQuestions(response string, max int) []string {
	var questions []string

	if m := questionsBlockRe.FindStringSubmatch(response); m != nil {
		parts := questionItemRe.Split(m[1], -1)
		for _, part := range parts[1:] {
			if q := strings.TrimSpace(part); validQuestion(q) {
				questions = append(questions, q)
			}
		}
	}

	if len(questions) == 0 {
		for _, line := range strings.Split(response, "\n") {
			line = strings.TrimSpace(line)
			if numberedLineRe.MatchString(line) && strings.Contains(line, "?") {
				q := numberedLineRe.ReplaceAllString(line, "")
				if validQuestion(q) {
					questions = append(questions, q)
				}
			}
		}
	}

	if max > 0 && len(questions) > max {
		questions = questions[:max]
	}
	return questions
}

func validQuestion(q string) bool {
	if len(q) < 10 || len(q) > 500 {
		return false
	}
	return strings.Contains(q, "?")
}

// parseInterpretation extracts the final reading from between its markers,
// falling back to the whole response when the model skipped them.
func parseInterpretation(response string) string {
	if m := interpretationRe.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(response)
}
