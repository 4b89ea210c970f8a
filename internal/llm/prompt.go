package llm

import (
	"fmt"
	"strings"
)

const (
	reasoningMarker = "REASONING:"
	answerMarker    = "ANSWER:"

	// NoReasoning is reported when the model ignores the requested format.
	NoReasoning = "no explicit reasoning provided"
)

const promptTemplate = `You are a personal knowledge assistant. Answer the question using only the context below, which was captured from web pages the user saved. If the context does not contain the answer, say so instead of guessing.

Context:
%s

Question: %s

Respond in exactly this format:
REASONING: <which sources you used and how they support the answer>
ANSWER: <the answer>`

func BuildPrompt(context, question string) string {
	return fmt.Sprintf(promptTemplate, context, question)
}

// ParseResponse splits a completion into reasoning and answer. Output that
// lacks either marker becomes the answer as a whole.
func ParseResponse(raw string) (reasoning, answer string) {
	if !strings.Contains(raw, reasoningMarker) || !strings.Contains(raw, answerMarker) {
		return NoReasoning, strings.TrimSpace(raw)
	}

	parts := strings.SplitN(raw, answerMarker, 2)
	reasoning = strings.TrimSpace(strings.Replace(parts[0], reasoningMarker, "", 1))
	answer = strings.TrimSpace(parts[1])
	return reasoning, answer
}
