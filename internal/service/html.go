package service

import (
	"fmt"
	"strings"
)

const fence = "```"

// StripCodeFence unwraps a markdown code block such as "```html ... ```",
// including blocks nested inside one another. Input that does not start
// with a fence is returned unchanged, so applying it twice is the same as
// applying it once.
func StripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, fence) {
		return s
	}

	for strings.HasPrefix(t, fence) {
		t = strings.TrimSpace(dropLangTag(t[len(fence):]))
		t = strings.TrimSpace(strings.TrimSuffix(t, fence))
	}
	return t
}

// dropLangTag removes the info string after an opening fence. A run of tag
// characters only counts as a tag when whitespace follows it or it is
// "html", so "```Hello</p>" keeps its text.
func dropLangTag(t string) string {
	i := 0
	for i < len(t) && isLangTagByte(t[i]) {
		i++
	}
	if i == 0 {
		return t
	}
	if i == len(t) || isSpace(t[i]) || strings.EqualFold(t[:i], "html") {
		return t[i:]
	}
	return t
}

func isLangTagByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case b == '_', b == '+', b == '-':
		return true
	}
	return false
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// ImprovementPrompt folds user feedback and the previous page into one
// instruction for the backend.
func ImprovementPrompt(feedback, currentHTML string) string {
	return fmt.Sprintf("Improve this website based on the following feedback: %s. Current website: %s", feedback, currentHTML)
}
