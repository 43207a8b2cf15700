package epub

import (
	"encoding/xml"
	"fmt"
	"path"
	"strings"
)

// ncxMediaType marks the legacy (EPUB 2) table-of-contents format.
const ncxMediaType = "application/x-dtbncx+xml"

// ManifestItem is one entry of the package manifest.
type ManifestItem struct {
	ID         string
	Href       string
	MediaType  string
	Properties string
}

// Package is the parsed package document: the manifest keyed by item id, the
// spine in reading order, and the directory the document lives in (hrefs
// resolve against it). Read-only after parsing.
type Package struct {
	Dir      string
	Manifest map[string]ManifestItem
	// Items preserves manifest document order so property scans are
	// deterministic.
	Items []ManifestItem
	Spine []string
	TocID string
}

// xml decoding structs for the package document.
type xmlPackage struct {
	XMLName  xml.Name    `xml:"package"`
	Manifest xmlManifest `xml:"manifest"`
	Spine    xmlSpine    `xml:"spine"`
}

type xmlManifest struct {
	Items []xmlManifestItem `xml:"item"`
}

type xmlManifestItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

type xmlSpine struct {
	Toc      string       `xml:"toc,attr"`
	ItemRefs []xmlItemRef `xml:"itemref"`
}

type xmlItemRef struct {
	IDRef string `xml:"idref,attr"`
}

// ParsePackage locates and parses the package document of the archive.
func ParsePackage(a *Archive) (*Package, error) {
	opfPath, err := a.findPackagePath()
	if err != nil {
		return nil, err
	}
	data, err := a.Read(opfPath)
	if err != nil {
		return nil, err
	}

	var doc xmlPackage
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse package document %s: %v", ErrFormat, opfPath, err)
	}

	pkg := &Package{
		Dir:      path.Dir(opfPath),
		Manifest: make(map[string]ManifestItem, len(doc.Manifest.Items)),
		Spine:    make([]string, 0, len(doc.Spine.ItemRefs)),
		TocID:    doc.Spine.Toc,
	}
	if pkg.Dir == "." {
		pkg.Dir = ""
	}
	for _, item := range doc.Manifest.Items {
		if item.ID == "" || item.Href == "" {
			continue
		}
		mi := ManifestItem{
			ID:         item.ID,
			Href:       item.Href,
			MediaType:  item.MediaType,
			Properties: item.Properties,
		}
		pkg.Manifest[item.ID] = mi
		pkg.Items = append(pkg.Items, mi)
	}
	for _, ref := range doc.Spine.ItemRefs {
		if ref.IDRef != "" {
			pkg.Spine = append(pkg.Spine, ref.IDRef)
		}
	}
	return pkg, nil
}

// Resolve maps a manifest href to its archive-internal path, preserving any
// #fragment suffix.
func (p *Package) Resolve(href string) string {
	return resolveHref(p.Dir, href)
}

// navItem returns the manifest item whose properties mark it as the EPUB 3
// navigation document, if any.
func (p *Package) navItem() (ManifestItem, bool) {
	for _, item := range p.Items {
		for _, prop := range strings.Fields(item.Properties) {
			if prop == "nav" {
				return item, true
			}
		}
	}
	return ManifestItem{}, false
}

// ncxItem returns the legacy TOC manifest item: the one referenced by the
// spine's toc attribute, or failing that any item with the NCX media type.
func (p *Package) ncxItem() (ManifestItem, bool) {
	if p.TocID != "" {
		if item, ok := p.Manifest[p.TocID]; ok {
			return item, true
		}
	}
	for _, item := range p.Items {
		if item.MediaType == ncxMediaType {
			return item, true
		}
	}
	return ManifestItem{}, false
}
