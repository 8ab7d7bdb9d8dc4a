package generation

import (
	"fmt"
	"strings"

	"crisis-quiz-service/internal/domain"
)

// DefaultTopic replaces an empty topic so the prompt is never malformed.
const DefaultTopic = "crisis management"

// BuildPrompt renders the instruction sent to the text-generation service.
// The output depends only on req.
func BuildPrompt(req domain.ScenarioRequest) string {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		topic = DefaultTopic
	}
	count := req.QuestionCount
	if count <= 0 {
		count = domain.DefaultQuestionCount
	}
	options := req.OptionsPerQuestion
	if options <= 0 {
		options = domain.DefaultOptionsPerQuestion
	}
	labels := optionLabels(options)

	var b strings.Builder
	fmt.Fprintf(&b, "Generate exactly %d multiple-choice quiz questions about a %s scenario.\n", count, topic)
	fmt.Fprintf(&b, "Each question must have exactly %d answer options labeled %s.\n", options, strings.Join(labels, ", "))
	b.WriteString("Order the options from the most effective and safe response to the least effective and safe response.\n")
	b.WriteString("Make the options similar in length and tone so the best one is not obvious.\n\n")
	b.WriteString("Format STRICTLY like this example:\n")
	b.WriteString("Question 1: What should you do first in this situation?\n")
	for i, label := range labels {
		fmt.Fprintf(&b, "%s Option %d\n", label, i+1)
	}
	fmt.Fprintf(&b, "\nFollow this structure for all %d questions. ", count)
	b.WriteString("Do NOT add headings, scenario descriptions, explanations, answer keys or any other commentary. Output only the questions and their options.")
	return b.String()
}

func optionLabels(n int) []string {
	labels := make([]string, n)
	for i := range labels {
		labels[i] = string(rune('A'+i)) + ")"
	}
	return labels
}
