package wikimedia

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dpla/ingest-wikimedia/internal/dpla"
	"github.com/dpla/ingest-wikimedia/internal/sanitize"
)

// titleMaxLen caps the display-title portion of a page title. The repository
// enforces a byte limit on full titles; truncating the free-text part leaves
// room for the record id, page suffix, and extension.
const titleMaxLen = 181

// titleReplacer substitutes characters that are reserved in page titles.
var titleReplacer = strings.NewReplacer(
	"[", "(",
	"]", ")",
	"{", "(",
	"}", ")",
	"|", "-",
	"#", "-",
	"<", "-",
	">", "-",
	":", "-",
	"/", "-",
)

// fieldReplacer escapes wikitext tokens inside template field values.
var fieldReplacer = strings.NewReplacer(
	"|", "{{!}}",
	"[[", "(",
	"]]", ")",
	"{{", "(",
	"}}", ")",
	"=", "{{=}}",
)

// EscapeTitle strips markup and replaces title-reserved characters.
func EscapeTitle(s string) string {
	return strings.Join(strings.Fields(titleReplacer.Replace(sanitize.Text(s))), " ")
}

// EscapeField strips markup and escapes wikitext-reserved tokens for use as
// a template parameter value.
func EscapeField(s string) string {
	return fieldReplacer.Replace(sanitize.Text(s))
}

// PageTitle derives the deterministic page title for one asset. The display
// title is escaped and truncated; records with more than one asset get a
// page-ordinal suffix so sibling pages sort and number correctly.
func PageTitle(displayTitle, recordID, ext string, ordinal, totalAssets int) string {
	title := EscapeTitle(displayTitle)
	if title == "" {
		title = "Untitled"
	}
	if len(title) > titleMaxLen {
		cut := titleMaxLen
		for cut > 0 && !utf8.RuneStart(title[cut]) {
			cut--
		}
		title = strings.TrimSpace(title[:cut])
	}
	ext = strings.TrimPrefix(ext, ".")

	if totalAssets > 1 {
		return fmt.Sprintf("%s - DPLA - %s (page %d).%s", title, recordID, ordinal, ext)
	}
	return fmt.Sprintf("%s - DPLA - %s.%s", title, recordID, ext)
}

// Description builds the wikitext description document for an upload from
// the record's descriptive fields, each individually escaped.
func Description(rec *dpla.Record) string {
	var b strings.Builder
	b.WriteString("== {{int:filedesc}} ==\n")
	b.WriteString("{{DPLA\n")
	writeField(&b, "title", rec.Title)
	writeField(&b, "description", rec.Description)
	writeField(&b, "date", rec.Date)
	writeField(&b, "author", rec.Creator)
	writeField(&b, "institution", rec.DataProvider)
	writeField(&b, "permission", rec.RightsURI)
	writeField(&b, "dpla_id", rec.ID)
	writeField(&b, "local_id", rec.Identifier)
	if rec.IsShownAt != "" {
		fmt.Fprintf(&b, "| source = [%s View original record]\n", rec.IsShownAt)
	}
	b.WriteString("}}\n")
	return b.String()
}

func writeField(b *strings.Builder, name, value string) {
	escaped := EscapeField(value)
	if escaped == "" {
		return
	}
	fmt.Fprintf(b, "| %s = %s\n", name, escaped)
}
