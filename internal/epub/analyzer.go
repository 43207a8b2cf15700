package epub

import (
	"fmt"
	"log"
)

// Analysis is the structural metadata extracted from one decrypted EPUB:
// the flattened TOC in reading order and per-file text statistics. It is
// the artifact handed to the start-point heuristic.
type Analysis struct {
	Toc       []TocEntry     `json:"toc"`
	Files     []FileCharStat `json:"file_char_counts"`
	FileCount int            `json:"file_count"`
}

// Analyze parses a decrypted EPUB and extracts its table of contents and
// per-file character statistics. A book without a navigable TOC is rejected
// with ErrMissingToc before any statistics are computed.
func Analyze(decrypted []byte) (*Analysis, error) {
	a, err := OpenArchive(decrypted)
	if err != nil {
		return nil, err
	}
	pkg, err := ParsePackage(a)
	if err != nil {
		return nil, err
	}

	toc := Flatten(ResolveToc(a, pkg))
	if len(toc) == 0 {
		return nil, fmt.Errorf("%w: neither nav document nor ncx yields entries", ErrMissingToc)
	}

	files, err := CharStats(a, pkg)
	if err != nil {
		return nil, err
	}

	log.Printf("epub analyzed: toc=%d files=%d", len(toc), len(files))
	return &Analysis{Toc: toc, Files: files, FileCount: a.FileCount()}, nil
}
