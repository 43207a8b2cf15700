package llm

import (
	"strings"

	"epubinspect/internal/epub"
)

// TocStat is one table-of-contents row merged with the character count of the
// file it points at.
type TocStat struct {
	Order int    `json:"order"`
	Title string `json:"title"`
	Href  string `json:"href"`
	Depth int    `json:"depth"`
	Chars int    `json:"chars"`
}

// Input is the structural metadata handed to the model.
type Input struct {
	Toc       []TocStat      `json:"table_of_contents_with_stats"`
	FileStats map[string]int `json:"file_stats"`
}

// BuildInput merges the flattened TOC with per-file character counts. With
// useFullToc false and 7 or more entries, the TOC is cut to the first half,
// never below 5 rows: front matter sits at the start, so the tail rarely
// matters for finding it.
func BuildInput(analysis epub.Analysis, useFullToc bool) Input {
	chars := make(map[string]int, len(analysis.Files))
	for _, f := range analysis.Files {
		chars[f.Path] = f.Chars
	}

	toc := make([]TocStat, 0, len(analysis.Toc))
	for i, e := range analysis.Toc {
		path := e.Href
		if idx := strings.IndexByte(path, '#'); idx >= 0 {
			path = path[:idx]
		}
		toc = append(toc, TocStat{
			Order: i + 1,
			Title: e.Title,
			Href:  e.Href,
			Depth: e.Depth,
			Chars: chars[path],
		})
	}

	if !useFullToc && len(toc) >= 7 {
		limit := (len(toc) + 1) / 2
		if limit < 5 {
			limit = 5
		}
		toc = toc[:limit]
	}

	return Input{Toc: toc, FileStats: chars}
}
