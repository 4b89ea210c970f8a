package text

import (
	"strings"
)

const (
	// DefaultChunkSize is the character budget for a single chunk.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the character budget for sentences carried into the next chunk.
	DefaultChunkOverlap = 200

	sentenceDelimiter = ". "
)

// Chunk splits text into sentence-aligned chunks of at most targetSize characters.
// Consecutive chunks share trailing whole sentences whose combined length fits
// within overlap. A sentence longer than targetSize is emitted whole.
func Chunk(text string, targetSize, overlap int) []string {
	if len(text) <= targetSize {
		return []string{text}
	}

	var chunks []string
	var current []string
	currentLen := 0

	for _, sentence := range SplitSentences(text) {
		if len(current) > 0 && joinedLen(currentLen, sentence) > targetSize {
			chunks = append(chunks, strings.Join(current, " "))
			current = overlapTail(current, overlap)
			currentLen = lengthOf(current)
		}
		currentLen = joinedLen(currentLen, sentence)
		current = append(current, sentence)
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// SplitSentences splits on period-space and guarantees every unit ends with a period.
// Abbreviations and quoted periods are not special-cased.
func SplitSentences(text string) []string {
	parts := strings.Split(text, sentenceDelimiter)
	for i, p := range parts {
		if !strings.HasSuffix(p, ".") {
			parts[i] = p + "."
		}
	}
	return parts
}

// overlapTail walks sentences backwards and keeps the longest suffix of whole
// sentences whose joined length stays within budget.
func overlapTail(sentences []string, budget int) []string {
	start := len(sentences)
	collected := 0
	for i := len(sentences) - 1; i >= 0; i-- {
		next := joinedLen(collected, sentences[i])
		if next > budget {
			break
		}
		collected = next
		start = i
	}

	tail := make([]string, len(sentences)-start)
	copy(tail, sentences[start:])
	return tail
}

// joinedLen is the length of a run of sentences after appending s with a single space separator.
func joinedLen(runLen int, s string) int {
	if runLen == 0 {
		return len(s)
	}
	return runLen + 1 + len(s)
}

func lengthOf(sentences []string) int {
	n := 0
	for _, s := range sentences {
		n = joinedLen(n, s)
	}
	return n
}
