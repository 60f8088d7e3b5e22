package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripCodeFence(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"html fence", "```html\n<h1>Hi</h1>\n```", "<h1>Hi</h1>"},
		{"bare fence", "```\n<p>x</p>\n```", "<p>x</p>"},
		{"leading whitespace", "  \n```HTML\n<main></main>\n```\n", "<main></main>"},
		{"no closing fence", "```html\n<div></div>", "<div></div>"},
		{"tag glued to content", "```html<!DOCTYPE html><html></html>```", "<!DOCTYPE html><html></html>"},
		{"unfenced", "<!DOCTYPE html>\n<html></html>", "<!DOCTYPE html>\n<html></html>"},
		{"only fences", "```html\n```", ""},
		{"text glued to fence", "```Hello</p>```", "Hello</p>"},
		{"tag then newline", "```go\nfmt.Println()\n```", "fmt.Println()"},
		{"nested fences", "```html\n```html\n<p>x</p>\n```\n```", "<p>x</p>"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StripCodeFence(tc.in))
		})
	}
}

func TestStripCodeFence_Idempotent(t *testing.T) {
	inputs := []string{
		"```html\n<h1>Hi</h1>\n```",
		"<section>plain</section>",
		"  <p>padded</p>  ",
		"```\ncode\n```",
		"```Hello</p>```",
		"```html\n```html\n<p>x</p>\n```\n```",
	}
	for _, in := range inputs {
		once := StripCodeFence(in)
		assert.Equal(t, once, StripCodeFence(once), "input %q", in)
	}
}

func TestImprovementPrompt(t *testing.T) {
	assert.Equal(t,
		"Improve this website based on the following feedback: make it blue. Current website: <html></html>",
		ImprovementPrompt("make it blue", "<html></html>"))
}
