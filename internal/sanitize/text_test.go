package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text unchanged", "A Photograph of Boston", "A Photograph of Boston"},
		{"tags stripped", "<p>A <b>Photograph</b></p>", "A Photograph"},
		{"script removed", `<script>alert("x")</script>title`, "title"},
		{"whitespace collapsed", "a\n\n  b\t c", "a b c"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.input))
		})
	}
}

func TestTextSlice(t *testing.T) {
	got := TextSlice([]string{"<i>one</i>", "two  three"})
	assert.Equal(t, []string{"one", "two three"}, got)

	assert.Nil(t, TextSlice(nil))
}
