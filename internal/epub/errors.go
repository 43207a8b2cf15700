package epub

import "errors"

var (
	// ErrFormat indicates a structurally invalid EPUB: missing or malformed
	// container.xml, package document, or a referenced entry that does not
	// exist in the archive.
	ErrFormat = errors.New("epub: invalid container structure")

	// ErrMissingToc indicates the EPUB is structurally valid but has no
	// navigable table of contents in either the EPUB 3 nav document or the
	// legacy NCX form. This is a business rejection, not a parse failure.
	ErrMissingToc = errors.New("epub: no table of contents")
)
