package epub

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"OEBPS/../Text/ch1.xhtml": "Text/ch1.xhtml",
		"Text/ch1.xhtml":          "Text/ch1.xhtml",
		"./Text/ch1.xhtml":        "Text/ch1.xhtml",
		"Text%20Files/ch1.xhtml":  "Text Files/ch1.xhtml",
		"Text\\ch1.xhtml":         "Text/ch1.xhtml",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizePath(in), "input %q", in)
	}
}

func TestNormalizePath_Idempotent(t *testing.T) {
	inputs := []string{
		"Text/ch1.xhtml",
		"OEBPS/../Text/ch1.xhtml",
		"Text Files/ch1.xhtml",
	}
	for _, in := range inputs {
		once := normalizePath(in)
		assert.Equal(t, once, normalizePath(once), "input %q", in)
	}
}

func TestResolveHref(t *testing.T) {
	assert.Equal(t, "OEBPS/Text/ch1.xhtml", resolveHref("OEBPS", "Text/ch1.xhtml"))
	assert.Equal(t, "Text/ch1.xhtml", resolveHref("OEBPS", "../Text/ch1.xhtml"))
	assert.Equal(t, "OEBPS/ch1.xhtml#sec2", resolveHref("OEBPS", "ch1.xhtml#sec2"))
	// Fragment-only hrefs resolve to the base document itself.
	assert.Equal(t, "OEBPS#intro", resolveHref("OEBPS", "#intro"))
	assert.Equal(t, "ch1.xhtml", resolveHref("", "ch1.xhtml"))
}

func TestHrefPath(t *testing.T) {
	assert.Equal(t, "ch1.xhtml", hrefPath("ch1.xhtml#sec2"))
	assert.Equal(t, "ch1.xhtml", hrefPath("ch1.xhtml"))
}
