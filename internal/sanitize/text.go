// Package sanitize strips markup from aggregator record fields before they
// are embedded in wikitext. Provider metadata frequently carries stray HTML
// (descriptions pasted from CMSes), which must never reach a page title or
// description document.
package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strictPolicy removes all HTML tags and attributes.
var strictPolicy = bluemonday.StrictPolicy()

// Text strips all HTML from input and collapses runs of whitespace to a
// single space.
func Text(input string) string {
	return strings.Join(strings.Fields(strictPolicy.Sanitize(input)), " ")
}

// TextSlice sanitizes each string in a slice.
func TextSlice(inputs []string) []string {
	if inputs == nil {
		return nil
	}
	sanitized := make([]string, len(inputs))
	for i, input := range inputs {
		sanitized[i] = Text(input)
	}
	return sanitized
}
