// Package prompt renders the generation prompts shared by every model
// backend.
package prompt

import (
	"fmt"
	"strings"
)

type Kind string

const (
	KindProgramming Kind = "programming"
	KindCalculation Kind = "calculation"
	KindGeneral     Kind = "general"
)

// Classify picks the template for question by keyword.
func Classify(question string) Kind {
	q := strings.ToLower(question)
	switch {
	case strings.Contains(q, "python") || strings.Contains(q, "code"):
		return KindProgramming
	case strings.Contains(q, "calculate") || strings.Contains(q, "math"):
		return KindCalculation
	default:
		return KindGeneral
	}
}

// Build renders the prompt for question. Knowledge-base context is only
// used by the general template.
func Build(assistant, question, kbContext string) string {
	if strings.TrimSpace(assistant) == "" {
		assistant = "the university"
	}
	switch Classify(question) {
	case KindProgramming:
		return fmt.Sprintf(`You are a helpful programming assistant for %s students.

Question: %s

Please provide a clear, well-commented Python code solution. Include explanations and best practices.

Answer:`, assistant, question)
	case KindCalculation:
		return fmt.Sprintf(`You are a helpful assistant specializing in calculations and mathematics.

Question: %s

Please provide a step-by-step solution with clear explanations.

Answer:`, question)
	default:
		return fmt.Sprintf(`You are a helpful assistant for %s.

Context from knowledge base:
%s

User Question: %s

Please provide a helpful, accurate answer. If this is about programming or technical topics, include relevant code examples when appropriate.

Answer:`, assistant, kbContext, question)
	}
}
