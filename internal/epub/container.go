package epub

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
)

// containerPath is the well-known location of the bootstrap descriptor that
// points at the package document.
const containerPath = "META-INF/container.xml"

// Archive is a read-only view over a decrypted EPUB zip. Lookups tolerate
// entries whose stored name differs from the requested path only by
// normalization (URL encoding, separators, dot segments).
type Archive struct {
	files  []*zip.File
	byName map[string]*zip.File
	byNorm map[string]*zip.File
}

// OpenArchive opens decrypted EPUB bytes as an Archive.
func OpenArchive(data []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: open archive: %v", ErrFormat, err)
	}
	a := &Archive{
		files:  zr.File,
		byName: make(map[string]*zip.File, len(zr.File)),
		byNorm: make(map[string]*zip.File, len(zr.File)),
	}
	for _, f := range zr.File {
		a.byName[f.Name] = f
		a.byNorm[normalizePath(f.Name)] = f
	}
	return a, nil
}

// FileCount reports the number of entries in the archive.
func (a *Archive) FileCount() int { return len(a.files) }

// Read returns the contents of the entry at path. The exact stored name is
// tried first, then the normalized form as a fallback; ErrFormat is returned
// only when neither matches.
func (a *Archive) Read(p string) ([]byte, error) {
	f, ok := a.byName[p]
	if !ok {
		f, ok = a.byNorm[normalizePath(p)]
	}
	if !ok {
		return nil, fmt.Errorf("%w: entry %s not found", ErrFormat, p)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open entry %s: %v", ErrFormat, p, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: read entry %s: %v", ErrFormat, p, err)
	}
	return data, nil
}

// xmlContainer models META-INF/container.xml.
type xmlContainer struct {
	XMLName   xml.Name      `xml:"container"`
	RootFiles []xmlRootFile `xml:"rootfiles>rootfile"`
}

type xmlRootFile struct {
	FullPath string `xml:"full-path,attr"`
}

// findPackagePath parses the bootstrap descriptor and returns the normalized
// path of the package document. ErrFormat if the descriptor or its full-path
// attribute is missing.
func (a *Archive) findPackagePath() (string, error) {
	data, err := a.Read(containerPath)
	if err != nil {
		return "", fmt.Errorf("%w: missing %s", ErrFormat, containerPath)
	}
	var c xmlContainer
	if err := xml.Unmarshal(data, &c); err != nil {
		return "", fmt.Errorf("%w: parse %s: %v", ErrFormat, containerPath, err)
	}
	for _, rf := range c.RootFiles {
		if rf.FullPath != "" {
			return normalizePath(rf.FullPath), nil
		}
	}
	return "", fmt.Errorf("%w: %s has no rootfile full-path", ErrFormat, containerPath)
}
