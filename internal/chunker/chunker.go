// Package chunker splits a document into translation-sized segments while
// preserving paragraph and sentence integrity. Segments are the unit of
// work for the two-stage translation pipeline and are never reordered or
// merged downstream.
package chunker

import "strings"

// DefaultMaxChars is the per-request character limit of the machine
// translation provider.
const DefaultMaxChars = 4500

// Split divides text into chunks of at most maxChars unicode code points.
// Paragraphs (blank-line separated) are accumulated greedily into a chunk
// until adding the next one would exceed the ceiling. A single paragraph
// longer than the ceiling is re-split on sentence boundaries (". ") with
// the trailing period re-appended to each emitted piece; a sentence that
// still exceeds the ceiling is emitted oversized rather than cut
// mid-word, and the provider must tolerate or reject it.
//
// Splitting is deterministic and has no side effects. Empty or
// whitespace-only input returns no chunks. If maxChars ≤ 0,
// DefaultMaxChars is used.
func Split(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []string
	var current []string
	currentLen := 0

	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n\n"))
			current = current[:0]
			currentLen = 0
		}
	}

	for _, paragraph := range paragraphs(text) {
		plen := runeLen(paragraph)
		if currentLen+plen > maxChars {
			flush()
			if plen > maxChars {
				chunks = append(chunks, splitSentences(paragraph, maxChars)...)
				continue
			}
		}
		current = append(current, paragraph)
		currentLen += plen + 2 // account for the rejoined blank line
	}
	flush()

	return chunks
}

// paragraphs splits on blank lines. The empty strings produced by runs of
// more than one blank line are kept so that joining chunks with "\n\n"
// reconstructs the original spacing.
func paragraphs(text string) []string {
	return strings.Split(text, "\n\n")
}

// splitSentences breaks an oversized paragraph on ". " boundaries,
// greedily accumulating sentences under maxChars. Each emitted piece gets
// its terminating period back.
func splitSentences(paragraph string, maxChars int) []string {
	sentences := strings.Split(paragraph, ". ")

	var out []string
	var current []string
	currentLen := 0

	for _, sentence := range sentences {
		slen := runeLen(sentence)
		if currentLen+slen > maxChars && len(current) > 0 {
			out = append(out, strings.Join(current, ". ")+".")
			current = current[:0]
			currentLen = 0
		}
		current = append(current, sentence)
		currentLen += slen + 2 // account for the ". " separator
	}
	if len(current) > 0 {
		out = append(out, strings.Join(current, ". ")+".")
	}

	return out
}

func runeLen(s string) int {
	return len([]rune(s))
}
