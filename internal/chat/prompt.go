package chat

import (
	"strings"

	"github.com/halcyon0/halcyon/internal/companion"
	"github.com/halcyon0/halcyon/internal/knowledge"
)

// buildPrompt assembles the single prompt string for one generation call:
// persona preamble, archival snippets when present, the chronological
// transcript (oldest first), then the user's input restated as the line to
// answer.
func buildPrompt(comp *companion.Companion, transcript []string, snippets []knowledge.Result, input string) string {
	var b strings.Builder

	b.WriteString("You are ")
	b.WriteString(comp.Name)
	b.WriteString(". ")
	b.WriteString(comp.Description)
	b.WriteString("\n\n")
	b.WriteString(comp.Instructions)
	b.WriteString("\n\nReply with a single plain sentence, without a speaker prefix.\n")

	if len(snippets) > 0 {
		b.WriteString("\nRelevant details about ")
		b.WriteString(comp.Name)
		b.WriteString("'s past:\n")
		for _, s := range snippets {
			b.WriteString(s.Content)
			b.WriteString("\n")
		}
	}

	b.WriteString("\nBelow is the conversation so far between ")
	b.WriteString(comp.Name)
	b.WriteString(" and the user:\n")
	for _, line := range transcript {
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\nUser: ")
	b.WriteString(input)
	b.WriteString("\n")
	b.WriteString(comp.Name)
	b.WriteString(":")

	return b.String()
}

// firstLine returns text up to the first newline, trimmed. Anything after
// the first line is model rambling and is discarded.
func firstLine(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	return strings.TrimSpace(line)
}
