package epub

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// excludePatterns mark spine hrefs that are almost certainly not body
// content (matched case-insensitively as substrings).
var excludePatterns = []string{"cover", "toc", "copyright", "nav"}

// FileCharStat is the visible-text volume of one spine content file.
type FileCharStat struct {
	Path    string `json:"path"`
	Chars   int    `json:"chars"`
	HasText bool   `json:"has_text"`
}

// isExcluded reports whether the href matches an exclusion pattern.
func isExcluded(href string) bool {
	lower := strings.ToLower(href)
	for _, p := range excludePatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// CharStats walks the spine in reading order, skipping excluded hrefs, and
// returns the visible-text character count of every remaining content file.
func CharStats(a *Archive, pkg *Package) ([]FileCharStat, error) {
	stats := make([]FileCharStat, 0, len(pkg.Spine))
	for _, idref := range pkg.Spine {
		item, ok := pkg.Manifest[idref]
		if !ok || item.Href == "" {
			continue
		}
		if isExcluded(item.Href) {
			continue
		}
		p := hrefPath(pkg.Resolve(item.Href))
		data, err := a.Read(p)
		if err != nil {
			return nil, err
		}
		text := extractText(data)
		n := utf8.RuneCountInString(text)
		stats = append(stats, FileCharStat{Path: p, Chars: n, HasText: n > 0})
	}
	return stats, nil
}

// skipTags are elements whose content never contributes visible text.
var skipTags = map[atom.Atom]bool{
	atom.Script: true,
	atom.Style:  true,
}

// extractText strips markup from XHTML content and returns the visible text
// with whitespace-normalized single-space separators.
func extractText(data []byte) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(data))

	var parts []string
	skipDepth := 0
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			if errors.Is(tokenizer.Err(), io.EOF) {
				return strings.Join(parts, " ")
			}
			// Malformed markup past this point; keep what was extracted.
			return strings.Join(parts, " ")

		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			if skipTags[atom.Lookup(tn)] {
				skipDepth++
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if skipTags[atom.Lookup(tn)] && skipDepth > 0 {
				skipDepth--
			}

		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			if t := collapseSpace(string(tokenizer.Text())); t != "" {
				parts = append(parts, t)
			}
		}
	}
}
