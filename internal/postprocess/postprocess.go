// Package postprocess strips common LLM artifacts from refined chunk
// text before it enters the accumulated translation.
package postprocess

import (
	"regexp"
	"strings"
)

// thinkingRe matches complete reasoning blocks that some models emit
// despite the instruction to return only the improved text. Go's RE2
// engine has no backreferences, so each tag variant is listed.
var thinkingRe = regexp.MustCompile(
	`(?is)<think>.*?</think>|<thinking>.*?</thinking>|<reasoning>.*?</reasoning>`,
)

// openThinkingRe matches a reasoning block whose closing tag never
// arrived (generation cut off mid-thought).
var openThinkingRe = regexp.MustCompile(`(?is)(?:<think>|<thinking>|<reasoning>).*$`)

// preambleRe matches a prepended announcement line such as "Here is the
// improved text:". Anchored to the start and requiring a colon to avoid
// eating legitimate content.
var preambleRe = regexp.MustCompile(
	`(?i)^(?:certainly[,.]? |sure[,.]? )?here(?:'s| is)(?: the)? (?:improved |refined |polished )?(?:text|translation|version)\s*:\s*`,
)

// Clean removes reasoning blocks, announcement preambles, and whole-text
// quote wrapping, then trims whitespace.
func Clean(text string) string {
	text = thinkingRe.ReplaceAllString(text, "")
	text = openThinkingRe.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	text = preambleRe.ReplaceAllString(text, "")
	text = unwrapQuotes(strings.TrimSpace(text))
	return strings.TrimSpace(text)
}

// unwrapQuotes strips one matching pair of outer quotes when the whole
// text is wrapped in them.
func unwrapQuotes(text string) string {
	runes := []rune(text)
	if len(runes) < 2 {
		return text
	}
	first, last := runes[0], runes[len(runes)-1]
	switch {
	case first == '"' && last == '"',
		first == '«' && last == '»',
		first == '“' && last == '”',
		first == '‘' && last == '’':
		return string(runes[1 : len(runes)-1])
	}
	return text
}
